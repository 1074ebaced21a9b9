package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/olv-group/prospect-intel/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Run alert sweeps and manage mute windows",
}

var alertsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate recent analyses once and deliver alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "alerts")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var alertsMuteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Mute alerts for a rule, company or vendor",
	Long: `Mute alerts until a deadline. Omitted scope flags match anything, so a
mute without --rule, --company or --vendor silences every alert.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := muteFromFlags(cmd, time.Now().UTC())
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), "alerts")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.CreateMute(cmd.Context(), m); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), m)
	},
}

var alertsUnmuteCmd = &cobra.Command{
	Use:   "unmute <id>",
	Short: "Delete a mute window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "alerts")
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Store.DeleteMute(cmd.Context(), args[0])
	},
}

var alertsMutesCmd = &cobra.Command{
	Use:   "mutes",
	Short: "List active mute windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "alerts")
		if err != nil {
			return err
		}
		defer env.Close()

		mutes, err := env.Store.ListActiveMutes(cmd.Context(), time.Now().UTC())
		if err != nil {
			return err
		}
		printMutes(cmd, mutes)
		return nil
	},
}

func muteFromFlags(cmd *cobra.Command, now time.Time) (*model.AlertMute, error) {
	f := cmd.Flags()
	rule, _ := f.GetString("rule")
	company, _ := f.GetString("company")
	vendor, _ := f.GetString("vendor")
	reason, _ := f.GetString("reason")
	dur, _ := f.GetDuration("for")
	if dur <= 0 {
		return nil, eris.New("--for must be a positive duration")
	}

	return &model.AlertMute{
		RuleName:  nonEmpty(rule),
		CompanyID: nonEmpty(company),
		Vendor:    nonEmpty(strings.ToUpper(vendor)),
		Until:     now.Add(dur),
		Reason:    reason,
		CreatedBy: "cli",
		CreatedAt: now,
	}, nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func printMutes(cmd *cobra.Command, mutes []model.AlertMute) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRULE\tCOMPANY\tVENDOR\tUNTIL\tREASON")
	for _, m := range mutes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, orAny(m.RuleName), orAny(m.CompanyID), orAny(m.Vendor),
			m.Until.Format(time.RFC3339), m.Reason)
	}
	_ = tw.Flush()
}

func orAny(p *string) string {
	if p == nil {
		return "*"
	}
	return *p
}

func init() {
	f := alertsMuteCmd.Flags()
	f.String("rule", "", "rule name (high_propensity, erp_displacement, low_maturity)")
	f.String("company", "", "company ID")
	f.String("vendor", "", "vendor name")
	f.String("reason", "", "free-text reason")
	f.Duration("for", 24*time.Hour, "mute duration")

	alertsCmd.AddCommand(alertsSweepCmd, alertsMuteCmd, alertsUnmuteCmd, alertsMutesCmd)
	rootCmd.AddCommand(alertsCmd)
}
