package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olv-group/prospect-intel/internal/alerts"
	"github.com/olv-group/prospect-intel/internal/analysis"
	"github.com/olv-group/prospect-intel/internal/db"
	"github.com/olv-group/prospect-intel/internal/detect"
	"github.com/olv-group/prospect-intel/internal/guard"
	"github.com/olv-group/prospect-intel/internal/metrics"
	"github.com/olv-group/prospect-intel/internal/store"
)

// appEnv holds the store and services shared by the serve, analyze and
// alerts commands.
type appEnv struct {
	Store    store.Store
	Metrics  *metrics.Metrics
	Analysis *analysis.Service
	Sweeper  *alerts.Sweeper
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// wires the services. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := metrics.New()

	var detector detect.Detector
	if !cfg.Features.FastMode {
		detector = detect.NewHeaderDetector(detect.OptionsFromConfig(cfg.Detect, cfg.Features))
	}
	svc := analysis.New(st, guard.NewLocker(st), detector, nil, cfg.Features, m)

	notifiers := alerts.NotifiersFromConfig(cfg.Alerts.WebhookURL, cfg.Alerts.SlackWebhookURL, cfg.Alerts.SlackChannel)
	sweeper := alerts.NewSweeper(st, guard.NewMuter(st), alerts.RulesFromConfig(cfg.Alerts),
		time.Duration(cfg.Alerts.LookbackHours)*time.Hour, m, notifiers...)

	return &appEnv{Store: st, Metrics: m, Analysis: svc, Sweeper: sweeper}, nil
}

// initStore opens the store selected by store.driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospect.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, db.PoolConfig{
			URL:      cfg.Store.DatabaseURL,
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
