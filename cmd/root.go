package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olv-group/prospect-intel/internal/config"
)

var (
	cfg      *config.Config
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "prospect-intel",
	Short: "Sales intelligence for Brazilian companies",
	Long: `Normalizes CNPJs, scores purchase propensity, measures technology maturity,
recommends vendor offers and raises alerts on promising accounts.

Configuration is read from --config, or config.yaml in the working directory
when the flag is omitted. Every key can be overridden with a PROSPECT_ env
variable, e.g. PROSPECT_STORE_DATABASE_URL.`,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// loadRuntime loads configuration and installs the global logger before any
// subcommand runs.
func loadRuntime(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	zap.L().Debug("config loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", cfgFile),
		zap.String("store_driver", cfg.Store.Driver),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
