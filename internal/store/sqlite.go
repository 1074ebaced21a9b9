package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/olv-group/prospect-intel/internal/model"
)

// sqliteTimeLayout is fixed width so that TEXT comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	cnpj       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	trade_name TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	cnpj           TEXT NOT NULL,
	total          INTEGER NOT NULL,
	classification TEXT NOT NULL,
	scoring        TEXT NOT NULL,
	maturity       TEXT NOT NULL,
	fit            TEXT NOT NULL,
	stack          TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_company_created ON analyses(company_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

CREATE TABLE IF NOT EXISTS company_tech_maturity (
	company_id TEXT PRIMARY KEY REFERENCES companies(id),
	scores     TEXT NOT NULL,
	stack      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_mutes (
	id         TEXT PRIMARY KEY,
	rule_name  TEXT,
	company_id TEXT,
	vendor     TEXT,
	until      TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
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
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_events_created ON alert_events(created_at);

CREATE TABLE IF NOT EXISTS ingestion_locks (
	company_id TEXT PRIMARY KEY,
	locked_at  TEXT NOT NULL
);
`

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Companies ---

const sqliteCompanyColumns = `id, cnpj, name, trade_name, domain, state, city, created_at, updated_at`

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	now := sqlTime(time.Now())
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO companies (id, cnpj, name, trade_name, domain, state, city, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cnpj) DO UPDATE SET
			name       = COALESCE(NULLIF(excluded.name, ''), companies.name),
			trade_name = COALESCE(NULLIF(excluded.trade_name, ''), companies.trade_name),
			domain     = COALESCE(NULLIF(excluded.domain, ''), companies.domain),
			state      = COALESCE(NULLIF(excluded.state, ''), companies.state),
			city       = COALESCE(NULLIF(excluded.city, ''), companies.city),
			updated_at = excluded.updated_at
		RETURNING `+sqliteCompanyColumns,
		c.ID, c.CNPJ, c.Name, c.TradeName, c.Domain, c.State, c.City, now, now,
	)
	out, err := scanSQLiteCompany(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %s", c.CNPJ)
	}
	return out, nil
}

func (s *SQLiteStore) GetCompanyByCNPJ(ctx context.Context, cnpj string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCompanyColumns+` FROM companies WHERE cnpj = ?`, cnpj)
	c, err := scanSQLiteCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: company %s", cnpj)
		}
		return nil, eris.Wrapf(err, "sqlite: get company %s", cnpj)
	}
	return c, nil
}

func scanSQLiteCompany(row scannable) (*model.Company, error) {
	var (
		c                    model.Company
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.CNPJ, &c.Name, &c.TradeName, &c.Domain, &c.State, &c.City, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = parseSQLTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseSQLTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Analyses ---

const sqliteAnalysisColumns = `id, company_id, cnpj, scoring, maturity, fit, stack, created_at`

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc, err := encodeAnalysis(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: save analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, company_id, cnpj, total, classification, scoring, maturity, fit, stack, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.CNPJ, a.Scoring.Total, a.Scoring.Classification,
		string(doc.scoring), string(doc.maturity), string(doc.fit), string(doc.stack), sqlTime(a.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: insert analysis %s", a.ID)
}

func (s *SQLiteStore) LatestAnalysis(ctx context.Context, companyID string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAnalysisColumns+` FROM analyses WHERE company_id = ? ORDER BY created_at DESC LIMIT 1`,
		companyID,
	)
	a, err := scanSQLiteAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: analysis for company %s", companyID)
		}
		return nil, eris.Wrapf(err, "sqlite: latest analysis %s", companyID)
	}
	return a, nil
}

func (s *SQLiteStore) ListAnalysesSince(ctx context.Context, since time.Time) ([]model.Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAnalysisColumns+` FROM analyses WHERE created_at >= ? ORDER BY created_at`,
		sqlTime(since),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Analysis
	for rows.Next() {
		a, err := scanSQLiteAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate analyses")
}

func scanSQLiteAnalysis(row scannable) (*model.Analysis, error) {
	var (
		a                            model.Analysis
		scoring, mat, fit, stack, at string
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.CNPJ, &scoring, &mat, &fit, &stack, &at); err != nil {
		return nil, err
	}
	doc := analysisDoc{scoring: []byte(scoring), maturity: []byte(mat), fit: []byte(fit), stack: []byte(stack)}
	if err := doc.decodeInto(&a); err != nil {
		return nil, err
	}
	var err error
	if a.CreatedAt, err = parseSQLTime(at); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- Tech maturity ---

func (s *SQLiteStore) UpsertTechMaturity(ctx context.Context, tm model.TechMaturity) error {
	if tm.UpdatedAt.IsZero() {
		tm.UpdatedAt = time.Now().UTC()
	}
	scores, err := json.Marshal(tm.Scores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal maturity scores")
	}
	stack, err := json.Marshal(tm.Stack)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal maturity stack")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_tech_maturity (company_id, scores, stack, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET scores = excluded.scores, stack = excluded.stack, updated_at = excluded.updated_at`,
		tm.CompanyID, string(scores), string(stack), sqlTime(tm.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert tech maturity %s", tm.CompanyID)
}

func (s *SQLiteStore) GetTechMaturity(ctx context.Context, companyID string) (*model.TechMaturity, error) {
	var (
		tm                   model.TechMaturity
		scores, stack, updAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT company_id, scores, stack, updated_at FROM company_tech_maturity WHERE company_id = ?`,
		companyID,
	).Scan(&tm.CompanyID, &scores, &stack, &updAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: tech maturity %s", companyID)
		}
		return nil, eris.Wrapf(err, "sqlite: get tech maturity %s", companyID)
	}
	if err := json.Unmarshal([]byte(scores), &tm.Scores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal maturity scores")
	}
	if err := json.Unmarshal([]byte(stack), &tm.Stack); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal maturity stack")
	}
	if tm.UpdatedAt, err = parseSQLTime(updAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse maturity timestamp")
	}
	return &tm, nil
}

// --- Alert mutes ---

func (s *SQLiteStore) CreateMute(ctx context.Context, m *model.AlertMute) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_mutes (id, rule_name, company_id, vendor, until, reason, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, sqlNull(m.RuleName), sqlNull(m.CompanyID), sqlNull(m.Vendor), sqlTime(m.Until), m.Reason, m.CreatedBy, sqlTime(m.CreatedAt),
	)
	return eris.Wrap(err, "sqlite: insert mute")
}

func (s *SQLiteStore) DeleteMute(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_mutes WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete mute %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "sqlite: mute %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListActiveMutes(ctx context.Context, at time.Time) ([]model.AlertMute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rule_name, company_id, vendor, until, reason, created_by, created_at
		 FROM alert_mutes WHERE until > ? ORDER BY until`,
		sqlTime(at),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mutes")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AlertMute
	for rows.Next() {
		var (
			m                     model.AlertMute
			rule, company, vendor sql.NullString
			until, createdAt      string
		)
		if err := rows.Scan(&m.ID, &rule, &company, &vendor, &until, &m.Reason, &m.CreatedBy, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mute")
		}
		m.RuleName, m.CompanyID, m.Vendor = fromNull(rule), fromNull(company), fromNull(vendor)
		if m.Until, err = parseSQLTime(until); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse mute until")
		}
		if m.CreatedAt, err = parseSQLTime(createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse mute created_at")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate mutes")
}

func (s *SQLiteStore) HasActiveMute(ctx context.Context, scope model.MuteScope, at time.Time) (bool, error) {
	var muted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alert_mutes
			WHERE until > ?
			  AND (rule_name IS NULL OR rule_name = ?)
			  AND (company_id IS NULL OR company_id = ?)
			  AND (vendor IS NULL OR vendor = ?)
		)`,
		sqlTime(at), sqlNull(nullable(scope.RuleName)), sqlNull(nullable(scope.CompanyID)), sqlNull(nullable(scope.Vendor)),
	).Scan(&muted)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: query active mute")
	}
	return muted, nil
}

// --- Alert events ---

// RecordAlertEvents inserts events in one transaction. Events whose dedup
// key already exists are skipped.
func (s *SQLiteStore) RecordAlertEvents(ctx context.Context, events []model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alert_events (id, rule_name, company_id, analysis_id, vendor, severity, message, status, channel, error, dedup_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedup_key) DO NOTHING`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare alert event insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.RuleName, e.CompanyID, e.AnalysisID, e.Vendor, e.Severity,
			e.Message, string(e.Status), e.Channel, e.Error, e.DedupKey, sqlTime(e.CreatedAt),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert alert event %s", e.DedupKey)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit alert events")
}

func (s *SQLiteStore) AlertEventExists(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM alert_events WHERE dedup_key = ?)`, dedupKey,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: query alert event")
	}
	return exists, nil
}

func (s *SQLiteStore) ListAlertEvents(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rule_name, company_id, analysis_id, vendor, severity, message, status, channel, error, dedup_key, created_at
		 FROM alert_events ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alert events")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AlertEvent
	for rows.Next() {
		var (
			e          model.AlertEvent
			status, at string
		)
		if err := rows.Scan(&e.ID, &e.RuleName, &e.CompanyID, &e.AnalysisID, &e.Vendor, &e.Severity,
			&e.Message, &status, &e.Channel, &e.Error, &e.DedupKey, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert event")
		}
		e.Status = model.AlertStatus(status)
		if e.CreatedAt, err = parseSQLTime(at); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse alert event timestamp")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate alert events")
}

// --- Ingestion locks ---

// InsertLock fails when a lock row for companyID already exists.
func (s *SQLiteStore) InsertLock(ctx context.Context, companyID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_locks (company_id, locked_at) VALUES (?, ?)`,
		companyID, sqlTime(at),
	)
	return eris.Wrapf(err, "sqlite: insert lock %s", companyID)
}

func (s *SQLiteStore) DeleteLock(ctx context.Context, companyID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingestion_locks WHERE company_id = ?`, companyID)
	return eris.Wrapf(err, "sqlite: delete lock %s", companyID)
}

func sqlTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}

func sqlNull(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
