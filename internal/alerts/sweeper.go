package alerts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olv-group/prospect-intel/internal/metrics"
	"github.com/olv-group/prospect-intel/internal/model"
)

// SweepStore is the persistence the sweeper needs.
type SweepStore interface {
	ListAnalysesSince(ctx context.Context, since time.Time) ([]model.Analysis, error)
	AlertEventExists(ctx context.Context, dedupKey string) (bool, error)
	RecordAlertEvents(ctx context.Context, events []model.AlertEvent) error
}

// MuteChecker answers mute lookups.
type MuteChecker interface {
	IsMuted(ctx context.Context, scope model.MuteScope) (bool, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Triggered int `json:"triggered"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Muted     int `json:"muted"`
	Skipped   int `json:"skipped"`
}

// Sweeper evaluates analyses created within the lookback window and delivers
// the resulting notifications.
type Sweeper struct {
	store     SweepStore
	muter     MuteChecker
	rules     Rules
	lookback  time.Duration
	notifiers []Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSweeper creates a Sweeper. m may be nil.
func NewSweeper(st SweepStore, muter MuteChecker, rules Rules, lookback time.Duration, m *metrics.Metrics, notifiers ...Notifier) *Sweeper {
	return &Sweeper{
		store:     st,
		muter:     muter,
		rules:     rules,
		lookback:  lookback,
		notifiers: notifiers,
		metrics:   m,
		now:       time.Now,
	}
}

// Sweep runs one evaluation pass. Alerts already recorded under the same
// dedup key are skipped without a new record. A mute lookup failure aborts
// the sweep after persisting the events handled so far.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	log := zap.L().With(zap.String("component", "alerts.sweeper"))
	now := s.now().UTC()

	var res SweepResult
	analyses, err := s.store.ListAnalysesSince(ctx, now.Add(-s.lookback))
	if err != nil {
		return res, eris.Wrap(err, "alerts: list analyses")
	}

	var events []model.AlertEvent
	var sweepErr error

loop:
	for _, a := range analyses {
		res.Evaluated++
		for _, n := range s.rules.Evaluate(a, now) {
			if err := ctx.Err(); err != nil {
				sweepErr = eris.Wrap(err, "alerts: sweep cancelled")
				break loop
			}
			res.Triggered++

			exists, err := s.store.AlertEventExists(ctx, n.DedupKey())
			if err != nil {
				sweepErr = eris.Wrapf(err, "alerts: check dedup %s", n.DedupKey())
				break loop
			}
			if exists {
				res.Skipped++
				continue
			}

			muted, err := s.muter.IsMuted(ctx, n.Scope())
			if err != nil {
				sweepErr = eris.Wrapf(err, "alerts: check mute for %s", n.DedupKey())
				break loop
			}

			ev := newEvent(n, now)
			switch {
			case muted:
				ev.Status = model.AlertStatusMuted
				res.Muted++
			case len(s.notifiers) == 0:
				ev.Status = model.AlertStatusSkipped
				res.Skipped++
			default:
				s.deliver(ctx, n, &ev)
				if ev.Status == model.AlertStatusSent {
					res.Sent++
				} else {
					res.Failed++
					log.Warn("alert delivery failed",
						zap.String("rule", n.Rule),
						zap.String("analysis_id", n.AnalysisID),
						zap.String("error", ev.Error),
					)
				}
			}
			s.metrics.IncAlert(n.Rule, string(ev.Status))
			events = append(events, ev)
		}
	}

	if len(events) > 0 {
		if err := s.store.RecordAlertEvents(context.WithoutCancel(ctx), events); err != nil {
			return res, eris.Wrap(err, "alerts: record events")
		}
	}

	log.Info("alert sweep complete",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("triggered", res.Triggered),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("muted", res.Muted),
		zap.Int("skipped", res.Skipped),
	)
	return res, sweepErr
}

// deliver sends n on every notifier. The event is sent when at least one
// channel accepted it.
func (s *Sweeper) deliver(ctx context.Context, n Notification, ev *model.AlertEvent) {
	var ok, failed []string
	var errs []string
	for _, nt := range s.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			failed = append(failed, nt.Name())
			errs = append(errs, nt.Name()+": "+err.Error())
			continue
		}
		ok = append(ok, nt.Name())
	}

	if len(ok) > 0 {
		ev.Status = model.AlertStatusSent
		ev.Channel = strings.Join(ok, ",")
	} else {
		ev.Status = model.AlertStatusFailed
		ev.Channel = strings.Join(failed, ",")
	}
	ev.Error = strings.Join(errs, "; ")
}

func newEvent(n Notification, now time.Time) model.AlertEvent {
	return model.AlertEvent{
		ID:         uuid.NewString(),
		RuleName:   n.Rule,
		CompanyID:  n.CompanyID,
		AnalysisID: n.AnalysisID,
		Vendor:     n.Vendor,
		Severity:   n.Severity,
		Message:    n.Message,
		DedupKey:   n.DedupKey(),
		CreatedAt:  now,
	}
}
