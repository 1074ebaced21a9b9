package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/olv-group/prospect-intel/internal/alerts"
	"github.com/olv-group/prospect-intel/internal/analysis"
	"github.com/olv-group/prospect-intel/internal/model"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*model.Analysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Analysis), args.Error(1)
}

func (m *mockAnalyzer) Get(ctx context.Context, raw string) (*analysis.Report, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Report), args.Error(1)
}

type mockAlertStore struct {
	mock.Mock
}

func (m *mockAlertStore) CreateMute(ctx context.Context, mute *model.AlertMute) error {
	args := m.Called(ctx, mute)
	if mute.ID == "" {
		mute.ID = "mute-1"
	}
	return args.Error(0)
}

func (m *mockAlertStore) DeleteMute(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAlertStore) ListActiveMutes(ctx context.Context, at time.Time) ([]model.AlertMute, error) {
	args := m.Called(ctx, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AlertMute), args.Error(1)
}

func (m *mockAlertStore) ListAlertEvents(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AlertEvent), args.Error(1)
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Sweep(ctx context.Context) (alerts.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(alerts.SweepResult), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }
