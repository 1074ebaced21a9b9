package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olv-group/prospect-intel/internal/alerts"
	"github.com/olv-group/prospect-intel/internal/api"
	"github.com/olv-group/prospect-intel/internal/guard"
)

const shutdownTimeout = 15 * time.Second

var (
	servePort    int
	serveNoSweep bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the alert scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		handler, err := buildHandler(env)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		if !serveNoSweep {
			sched, err := alerts.NewScheduler(cfg.Alerts.Schedule, env.Sweeper)
			if err != nil {
				return err
			}
			g.Go(func() error { return sched.Run(gctx) })
		}

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

// buildHandler wires the guards and services into the HTTP router.
func buildHandler(env *appEnv) (http.Handler, error) {
	mode, err := guard.ParseAdminMode(cfg.Guard.AdminMode)
	if err != nil {
		return nil, err
	}
	rl := cfg.Guard.RateLimit
	limiter, err := guard.NewRateLimiter(rl.Burst, rl.RefillPerSec, rl.MaxBuckets)
	if err != nil {
		return nil, err
	}

	return api.NewRouter(api.Deps{
		Analyzer: env.Analysis,
		Alerts:   env.Store,
		Sweeper:  env.Sweeper,
		Health:   env.Store,
		Admin:    guard.NewAdmin(mode, cfg.Guard.AdminSecret, cfg.Guard.AdminHeader),
		Limiter:  limiter,
		Metrics:  env.Metrics,
		Features: cfg.Features,
	}), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSweep, "no-sweep", false, "do not run the alert scheduler")
	rootCmd.AddCommand(serveCmd)
}
