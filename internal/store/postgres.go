package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/olv-group/prospect-intel/internal/db"
	"github.com/olv-group/prospect-intel/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to the database described by cfg.
func NewPostgres(ctx context.Context, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	cnpj       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	trade_name TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	cnpj           TEXT NOT NULL,
	total          INTEGER NOT NULL,
	classification TEXT NOT NULL,
	scoring        JSONB NOT NULL,
	maturity       JSONB NOT NULL,
	fit            JSONB NOT NULL,
	stack          JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_company_created ON analyses(company_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

CREATE TABLE IF NOT EXISTS company_tech_maturity (
	company_id TEXT PRIMARY KEY REFERENCES companies(id),
	scores     JSONB NOT NULL,
	stack      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alert_mutes (
	id         TEXT PRIMARY KEY,
	rule_name  TEXT,
	company_id TEXT,
	vendor     TEXT,
	until      TIMESTAMPTZ NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alert_mutes_until ON alert_mutes(until);

CREATE TABLE IF NOT EXISTS alert_events (
	id          TEXT PRIMARY KEY,
	rule_name   TEXT NOT NULL,
	company_id  TEXT NOT NULL,
	analysis_id TEXT NOT NULL,
	vendor      TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL,
	message     TEXT NOT NULL,
	status      TEXT NOT NULL,
	channel     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	dedup_key   TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alert_events_created ON alert_events(created_at DESC);

CREATE TABLE IF NOT EXISTS ingestion_locks (
	company_id TEXT PRIMARY KEY,
	locked_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Companies ---

const pgCompanyColumns = `id, cnpj, name, trade_name, domain, state, city, created_at, updated_at`

func (s *PostgresStore) UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, cnpj, name, trade_name, domain, state, city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (cnpj) DO UPDATE SET
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), companies.name),
			trade_name = COALESCE(NULLIF(EXCLUDED.trade_name, ''), companies.trade_name),
			domain     = COALESCE(NULLIF(EXCLUDED.domain, ''), companies.domain),
			state      = COALESCE(NULLIF(EXCLUDED.state, ''), companies.state),
			city       = COALESCE(NULLIF(EXCLUDED.city, ''), companies.city),
			updated_at = EXCLUDED.updated_at
		RETURNING `+pgCompanyColumns,
		c.ID, c.CNPJ, c.Name, c.TradeName, c.Domain, c.State, c.City, now,
	)
	out, err := scanCompany(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", c.CNPJ)
	}
	return out, nil
}

func (s *PostgresStore) GetCompanyByCNPJ(ctx context.Context, cnpj string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgCompanyColumns+` FROM companies WHERE cnpj = $1`, cnpj)
	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: company %s", cnpj)
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", cnpj)
	}
	return c, nil
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.CNPJ, &c.Name, &c.TradeName, &c.Domain, &c.State, &c.City, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Analyses ---

const pgAnalysisColumns = `id, company_id, cnpj, scoring, maturity, fit, stack, created_at`

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc, err := encodeAnalysis(a)
	if err != nil {
		return eris.Wrap(err, "postgres: save analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, company_id, cnpj, total, classification, scoring, maturity, fit, stack, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.CompanyID, a.CNPJ, a.Scoring.Total, a.Scoring.Classification,
		doc.scoring, doc.maturity, doc.fit, doc.stack, a.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert analysis %s", a.ID)
}

func (s *PostgresStore) LatestAnalysis(ctx context.Context, companyID string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgAnalysisColumns+` FROM analyses WHERE company_id = $1 ORDER BY created_at DESC LIMIT 1`,
		companyID,
	)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: analysis for company %s", companyID)
		}
		return nil, eris.Wrapf(err, "postgres: latest analysis %s", companyID)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalysesSince(ctx context.Context, since time.Time) ([]model.Analysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgAnalysisColumns+` FROM analyses WHERE created_at >= $1 ORDER BY created_at`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate analyses")
}

func scanAnalysis(row scannable) (*model.Analysis, error) {
	var (
		a   model.Analysis
		doc analysisDoc
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.CNPJ, &doc.scoring, &doc.maturity, &doc.fit, &doc.stack, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := doc.decodeInto(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- Tech maturity ---

func (s *PostgresStore) UpsertTechMaturity(ctx context.Context, tm model.TechMaturity) error {
	if tm.UpdatedAt.IsZero() {
		tm.UpdatedAt = time.Now().UTC()
	}
	scores, err := json.Marshal(tm.Scores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal maturity scores")
	}
	stack, err := json.Marshal(tm.Stack)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal maturity stack")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_tech_maturity (company_id, scores, stack, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (company_id) DO UPDATE SET scores = EXCLUDED.scores, stack = EXCLUDED.stack, updated_at = EXCLUDED.updated_at`,
		tm.CompanyID, scores, stack, tm.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert tech maturity %s", tm.CompanyID)
}

func (s *PostgresStore) GetTechMaturity(ctx context.Context, companyID string) (*model.TechMaturity, error) {
	var (
		tm            model.TechMaturity
		scores, stack []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT company_id, scores, stack, updated_at FROM company_tech_maturity WHERE company_id = $1`,
		companyID,
	).Scan(&tm.CompanyID, &scores, &stack, &tm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: tech maturity %s", companyID)
		}
		return nil, eris.Wrapf(err, "postgres: get tech maturity %s", companyID)
	}
	if err := json.Unmarshal(scores, &tm.Scores); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal maturity scores")
	}
	if err := json.Unmarshal(stack, &tm.Stack); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal maturity stack")
	}
	return &tm, nil
}

// --- Alert mutes ---

func (s *PostgresStore) CreateMute(ctx context.Context, m *model.AlertMute) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_mutes (id, rule_name, company_id, vendor, until, reason, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.RuleName, m.CompanyID, m.Vendor, m.Until.UTC(), m.Reason, m.CreatedBy, m.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert mute")
}

func (s *PostgresStore) DeleteMute(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_mutes WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete mute %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: mute %s", id)
	}
	return nil
}

func (s *PostgresStore) ListActiveMutes(ctx context.Context, at time.Time) ([]model.AlertMute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rule_name, company_id, vendor, until, reason, created_by, created_at
		 FROM alert_mutes WHERE until > $1 ORDER BY until`,
		at.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mutes")
	}
	defer rows.Close()

	var out []model.AlertMute
	for rows.Next() {
		var m model.AlertMute
		if err := rows.Scan(&m.ID, &m.RuleName, &m.CompanyID, &m.Vendor, &m.Until, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mute")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate mutes")
}

func (s *PostgresStore) HasActiveMute(ctx context.Context, scope model.MuteScope, at time.Time) (bool, error) {
	var muted bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alert_mutes
			WHERE until > $1
			  AND (rule_name IS NULL OR rule_name = $2)
			  AND (company_id IS NULL OR company_id = $3)
			  AND (vendor IS NULL OR vendor = $4)
		)`,
		at.UTC(), nullable(scope.RuleName), nullable(scope.CompanyID), nullable(scope.Vendor),
	).Scan(&muted)
	if err != nil {
		return false, eris.Wrap(err, "postgres: query active mute")
	}
	return muted, nil
}

// --- Alert events ---

var alertEventColumns = []string{
	"id", "rule_name", "company_id", "analysis_id", "vendor", "severity",
	"message", "status", "channel", "error", "dedup_key", "created_at",
}

// RecordAlertEvents bulk-inserts events. Events whose dedup key already
// exists are left untouched.
func (s *PostgresStore) RecordAlertEvents(ctx context.Context, events []model.AlertEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			e.ID, e.RuleName, e.CompanyID, e.AnalysisID, e.Vendor, e.Severity,
			e.Message, string(e.Status), e.Channel, e.Error, e.DedupKey, e.CreatedAt,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:           "alert_events",
		Columns:         alertEventColumns,
		ConflictKeys:    []string{"dedup_key"},
		IgnoreConflicts: true,
	}, rows)
	return eris.Wrap(err, "postgres: record alert events")
}

func (s *PostgresStore) AlertEventExists(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM alert_events WHERE dedup_key = $1)`, dedupKey,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: query alert event")
	}
	return exists, nil
}

func (s *PostgresStore) ListAlertEvents(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rule_name, company_id, analysis_id, vendor, severity, message, status, channel, error, dedup_key, created_at
		 FROM alert_events ORDER BY created_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alert events")
	}
	defer rows.Close()

	var out []model.AlertEvent
	for rows.Next() {
		var (
			e      model.AlertEvent
			status string
		)
		if err := rows.Scan(&e.ID, &e.RuleName, &e.CompanyID, &e.AnalysisID, &e.Vendor, &e.Severity,
			&e.Message, &status, &e.Channel, &e.Error, &e.DedupKey, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert event")
		}
		e.Status = model.AlertStatus(status)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate alert events")
}

// --- Ingestion locks ---

// InsertLock fails when a lock row for companyID already exists.
func (s *PostgresStore) InsertLock(ctx context.Context, companyID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_locks (company_id, locked_at) VALUES ($1, $2)`,
		companyID, at.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert lock %s", companyID)
}

func (s *PostgresStore) DeleteLock(ctx context.Context, companyID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ingestion_locks WHERE company_id = $1`, companyID)
	return eris.Wrapf(err, "postgres: delete lock %s", companyID)
}
