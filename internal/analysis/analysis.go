// Package analysis runs the end-to-end enrichment of one company: identifier
// validation, ingestion lock, stack detection, scoring, maturity, vendor fit
// and persistence.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olv-group/prospect-intel/internal/cnpj"
	"github.com/olv-group/prospect-intel/internal/config"
	"github.com/olv-group/prospect-intel/internal/detect"
	"github.com/olv-group/prospect-intel/internal/maturity"
	"github.com/olv-group/prospect-intel/internal/metrics"
	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/scorer"
	"github.com/olv-group/prospect-intel/internal/vendorfit"
)

// Store is the persistence the service needs.
type Store interface {
	UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error)
	GetCompanyByCNPJ(ctx context.Context, cnpj string) (*model.Company, error)
	SaveAnalysis(ctx context.Context, a *model.Analysis) error
	LatestAnalysis(ctx context.Context, companyID string) (*model.Analysis, error)
	UpsertTechMaturity(ctx context.Context, tm model.TechMaturity) error
}

// Locker serializes ingestion per company. Analyze passes the normalized
// CNPJ as the key, since the company id is only known after the upsert.
type Locker interface {
	TryLockCompany(ctx context.Context, key string) bool
	ReleaseLock(ctx context.Context, key string)
}

// Request is the input to Analyze. Scoring and Stack carry whatever the
// caller already knows; detected technologies are merged into Stack.
type Request struct {
	CNPJ      string              `json:"cnpj" yaml:"cnpj"`
	Name      string              `json:"name,omitempty" yaml:"name,omitempty"`
	TradeName string              `json:"trade_name,omitempty" yaml:"trade_name,omitempty"`
	Domain    string              `json:"domain,omitempty" yaml:"domain,omitempty"`
	State     string              `json:"state,omitempty" yaml:"state,omitempty"`
	City      string              `json:"city,omitempty" yaml:"city,omitempty"`
	Vendor    string              `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Scoring   model.ScoringInput  `json:"scoring" yaml:"scoring"`
	Stack     model.DetectedStack `json:"stack" yaml:"stack"`
	Signals   map[string]any      `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Report is a company together with its most recent analysis, if any.
type Report struct {
	Company  *model.Company  `json:"company"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
}

// Service orchestrates analyses.
type Service struct {
	store    Store
	locker   Locker
	detector detect.Detector
	scorer   *scorer.Scorer
	features config.Features
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a Service. detector may be nil, which disables detection.
func New(st Store, locker Locker, detector detect.Detector, sc *scorer.Scorer, features config.Features, m *metrics.Metrics) *Service {
	if sc == nil {
		sc, _ = scorer.New(scorer.DefaultWeights())
	}
	return &Service{
		store:    st,
		locker:   locker,
		detector: detector,
		scorer:   sc,
		features: features,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Analyze validates req, takes the company's ingestion lock and produces a
// persisted analysis. It returns a *model.ValidationError for a bad CNPJ and
// model.ErrLocked when another ingestion holds the lock.
func (s *Service) Analyze(ctx context.Context, req Request) (*model.Analysis, error) {
	id, err := s.normalize(req.CNPJ)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "analysis"), zap.String("cnpj", id))

	if !s.locker.TryLockCompany(ctx, id) {
		return nil, eris.Wrapf(model.ErrLocked, "analysis: company %s", id)
	}
	defer s.locker.ReleaseLock(context.WithoutCancel(ctx), id)

	company, err := s.store.UpsertCompany(ctx, model.Company{
		CNPJ:      id,
		Name:      req.Name,
		TradeName: req.TradeName,
		Domain:    cnpj.NormalizeDomain(req.Domain),
		State:     req.State,
		City:      req.City,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: upsert company")
	}

	stack := req.Stack
	if !s.features.FastMode && s.detector != nil && company.Domain != "" {
		detected, err := s.detector.Detect(ctx, company.Domain)
		if err != nil {
			log.Warn("analysis: stack detection failed, continuing with supplied stack",
				zap.String("domain", company.Domain), zap.Error(err))
		} else {
			stack = detect.Merge(stack, detected)
		}
	}

	asOf := s.now()
	var (
		scoring model.ScoringOutput
		scores  model.MaturityScores
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		scoring = s.scorer.Calculate(req.Scoring, asOf)
		return nil
	})
	g.Go(func() error {
		scores = maturity.Compute(maturity.Input{Stack: stack, Signals: req.Signals})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analysis: compute")
	}

	a := &model.Analysis{
		CompanyID: company.ID,
		CNPJ:      id,
		Scoring:   scoring,
		Maturity:  scores,
		Fit:       vendorfit.Suggest(vendorfit.Input{Vendor: req.Vendor, Stack: stack, Scores: scores}),
		Stack:     stack,
		CreatedAt: asOf,
	}
	if err := s.store.SaveAnalysis(ctx, a); err != nil {
		return nil, eris.Wrap(err, "analysis: save analysis")
	}
	if err := s.store.UpsertTechMaturity(ctx, model.TechMaturity{
		CompanyID: company.ID,
		Scores:    scores,
		Stack:     stack,
		UpdatedAt: asOf,
	}); err != nil {
		return nil, eris.Wrap(err, "analysis: upsert tech maturity")
	}

	s.metrics.IncAnalysis(scoring.Classification)
	log.Info("analysis: complete",
		zap.String("analysis_id", a.ID),
		zap.Int("total", scoring.Total),
		zap.String("classification", scoring.Classification),
		zap.Int("maturity", scores.Overall),
	)
	return a, nil
}

// Get returns the company identified by raw and its latest analysis.
func (s *Service) Get(ctx context.Context, raw string) (*Report, error) {
	id, err := s.normalize(raw)
	if err != nil {
		return nil, err
	}
	company, err := s.store.GetCompanyByCNPJ(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: get company")
	}

	latest, err := s.store.LatestAnalysis(ctx, company.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, eris.Wrap(err, "analysis: latest analysis")
	}
	return &Report{Company: company, Analysis: latest}, nil
}

func (s *Service) normalize(raw string) (string, error) {
	id := cnpj.Normalize(raw)
	if (cnpj.Validator{Strict: s.features.StrictCNPJ}).Valid(id) {
		return id, nil
	}
	if s.features.StrictCNPJ && cnpj.IsValid(id) {
		return "", model.NewValidationError("cnpj", "check digits do not match")
	}
	return "", model.NewValidationError("cnpj", "must have 14 digits and not be a repeated sequence")
}
