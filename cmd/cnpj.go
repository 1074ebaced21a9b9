package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/olv-group/prospect-intel/internal/cnpj"
)

var cnpjStrict bool

var cnpjCmd = &cobra.Command{
	Use:   "cnpj",
	Short: "CNPJ utilities",
}

var cnpjNormalizeCmd = &cobra.Command{
	Use:   "normalize <value>",
	Short: "Print the digits of a CNPJ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cnpj.Normalize(args[0]))
		return nil
	},
}

var cnpjValidateCmd = &cobra.Command{
	Use:   "validate <value>",
	Short: "Exit non-zero when the CNPJ is invalid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict := cnpjStrict || cfg.Features.StrictCNPJ
		if !(cnpj.Validator{Strict: strict}).Valid(args[0]) {
			return eris.Errorf("invalid cnpj %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), "valid")
		return nil
	},
}

var cnpjFormatCmd = &cobra.Command{
	Use:   "format <value>",
	Short: "Print a CNPJ as NN.NNN.NNN/NNNN-NN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cnpj.Format(args[0]))
		return nil
	},
}

func init() {
	cnpjValidateCmd.Flags().BoolVar(&cnpjStrict, "strict", false, "also verify check digits")
	cnpjCmd.AddCommand(cnpjNormalizeCmd, cnpjValidateCmd, cnpjFormatCmd)
	rootCmd.AddCommand(cnpjCmd)
}
