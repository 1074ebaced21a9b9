package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/ptbr"
	"github.com/olv-group/prospect-intel/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the propensity score for a company profile",
	Long: `Compute the six-pillar propensity score from a YAML or JSON profile.

Examples:
  # Score a profile as of today
  score --input empresa.yaml

  # Score as of a fixed date, human readable
  score --input empresa.yaml --as-of 2025-06-30 --format text`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "profile file (YAML or JSON, - for stdin)")
	f.String("as-of", "", "reference date YYYY-MM-DD (default today)")
	f.String("format", "json", "output format: json or text")
	_ = scoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("score"); err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")
	asOfRaw, _ := cmd.Flags().GetString("as-of")
	format, _ := cmd.Flags().GetString("format")

	asOf, err := parseAsOf(asOfRaw)
	if err != nil {
		return err
	}

	var in model.ScoringInput
	if err := readInput(input, &in); err != nil {
		return err
	}

	out := scorer.Calculate(in, asOf)
	switch format {
	case "json":
		return printJSON(cmd.OutOrStdout(), out)
	case "text":
		printScore(cmd.OutOrStdout(), out)
		return nil
	default:
		return eris.Errorf("unsupported format %q", format)
	}
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --as-of %q", s)
	}
	return t, nil
}

func printScore(w io.Writer, out model.ScoringOutput) {
	fmt.Fprintf(w, "Score: %d (%s)\n", out.Total, out.Classification)
	for _, p := range out.Pillars {
		fmt.Fprintf(w, "  %-22s %6s  peso %s  %s\n",
			p.Label, ptbr.FormatNumber(p.Score, 1), ptbr.FormatPercent(p.Weight, true), p.Rationale)
	}
	if out.Justification != "" {
		fmt.Fprintf(w, "%s\n", out.Justification)
	}
}
