package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olv-group/prospect-intel/internal/analysis"
	"github.com/olv-group/prospect-intel/internal/cnpj"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run and persist a full analysis for one company",
	Long: `Normalize the CNPJ, detect the web stack, score propensity and maturity,
recommend vendor offers and store the result.

Flags override the matching fields of --input.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("input", "", "request file (YAML or JSON, - for stdin)")
	f.String("cnpj", "", "company CNPJ")
	f.String("vendor", "", "vendor to recommend for (TOTVS, OLV or custom)")
	f.String("domain", "", "company website")
	f.String("name", "", "legal name")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	var req analysis.Request
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		if err := readInput(input, &req); err != nil {
			return err
		}
	}
	overrideString(cmd, "cnpj", &req.CNPJ)
	overrideString(cmd, "vendor", &req.Vendor)
	overrideString(cmd, "domain", &req.Domain)
	overrideString(cmd, "name", &req.Name)

	env, err := initEnv(cmd.Context(), "analyze")
	if err != nil {
		return err
	}
	defer env.Close()

	a, err := env.Analysis.Analyze(cmd.Context(), req)
	if err != nil {
		return err
	}
	zap.L().Info("analysis stored",
		zap.String("cnpj", cnpj.Format(a.CNPJ)),
		zap.String("analysis_id", a.ID),
		zap.Int("score", a.Scoring.Total),
	)
	return printJSON(cmd.OutOrStdout(), a)
}

func overrideString(cmd *cobra.Command, flag string, dst *string) {
	if cmd.Flags().Changed(flag) {
		*dst, _ = cmd.Flags().GetString(flag)
	}
}
