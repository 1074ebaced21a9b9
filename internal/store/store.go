// Package store persists companies, analyses, maturity snapshots, alert
// mutes, alert events and ingestion locks.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olv-group/prospect-intel/internal/model"
)

// DefaultListLimit caps list queries that were given no limit.
const DefaultListLimit = 100

// Store defines the persistence interface. Implementations return
// model.ErrNotFound (possibly wrapped) for missing single records.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error)
	GetCompanyByCNPJ(ctx context.Context, cnpj string) (*model.Company, error)

	// Analyses
	SaveAnalysis(ctx context.Context, a *model.Analysis) error
	LatestAnalysis(ctx context.Context, companyID string) (*model.Analysis, error)
	ListAnalysesSince(ctx context.Context, since time.Time) ([]model.Analysis, error)

	// Tech maturity
	UpsertTechMaturity(ctx context.Context, tm model.TechMaturity) error
	GetTechMaturity(ctx context.Context, companyID string) (*model.TechMaturity, error)

	// Alert mutes
	CreateMute(ctx context.Context, m *model.AlertMute) error
	DeleteMute(ctx context.Context, id string) error
	ListActiveMutes(ctx context.Context, at time.Time) ([]model.AlertMute, error)
	HasActiveMute(ctx context.Context, scope model.MuteScope, at time.Time) (bool, error)

	// Alert events
	RecordAlertEvents(ctx context.Context, events []model.AlertEvent) error
	AlertEventExists(ctx context.Context, dedupKey string) (bool, error)
	ListAlertEvents(ctx context.Context, limit int) ([]model.AlertEvent, error)

	// Ingestion locks
	InsertLock(ctx context.Context, companyID string, at time.Time) error
	DeleteLock(ctx context.Context, companyID string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// analysisDoc holds the JSON-encoded parts of an analysis.
type analysisDoc struct {
	scoring, maturity, fit, stack []byte
}

func encodeAnalysis(a *model.Analysis) (analysisDoc, error) {
	var (
		d   analysisDoc
		err error
	)
	if d.scoring, err = json.Marshal(a.Scoring); err != nil {
		return d, eris.Wrap(err, "marshal scoring")
	}
	if d.maturity, err = json.Marshal(a.Maturity); err != nil {
		return d, eris.Wrap(err, "marshal maturity")
	}
	if d.fit, err = json.Marshal(a.Fit); err != nil {
		return d, eris.Wrap(err, "marshal fit")
	}
	if d.stack, err = json.Marshal(a.Stack); err != nil {
		return d, eris.Wrap(err, "marshal stack")
	}
	return d, nil
}

func (d analysisDoc) decodeInto(a *model.Analysis) error {
	if err := json.Unmarshal(d.scoring, &a.Scoring); err != nil {
		return eris.Wrap(err, "unmarshal scoring")
	}
	if err := json.Unmarshal(d.maturity, &a.Maturity); err != nil {
		return eris.Wrap(err, "unmarshal maturity")
	}
	if err := json.Unmarshal(d.fit, &a.Fit); err != nil {
		return eris.Wrap(err, "unmarshal fit")
	}
	if err := json.Unmarshal(d.stack, &a.Stack); err != nil {
		return eris.Wrap(err, "unmarshal stack")
	}
	return nil
}

// nullable maps "" to NULL so that an unspecified scope field never
// equals a stored value.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}

type scannable interface {
	Scan(dest ...any) error
}
