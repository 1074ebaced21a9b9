package analysis

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/olv-group/prospect-intel/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) GetCompanyByCNPJ(ctx context.Context, cnpj string) (*model.Company, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) SaveAnalysis(ctx context.Context, a *model.Analysis) error {
	args := m.Called(ctx, a)
	if a.ID == "" {
		a.ID = "analysis-1"
	}
	return args.Error(0)
}

func (m *mockStore) LatestAnalysis(ctx context.Context, companyID string) (*model.Analysis, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

func (m *mockStore) UpsertTechMaturity(ctx context.Context, tm model.TechMaturity) error {
	args := m.Called(ctx, tm)
	return args.Error(0)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Detect(ctx context.Context, domain string) (model.DetectedStack, error) {
	args := m.Called(ctx, domain)
	return args.Get(0).(model.DetectedStack), args.Error(1)
}

// memLocker records lock activity in memory.
type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryLockCompany(_ context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return false
	}
	l.held[id] = true
	return true
}

func (l *memLocker) ReleaseLock(_ context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
	l.released = append(l.released, id)
}
