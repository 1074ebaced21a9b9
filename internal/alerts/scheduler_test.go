package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olv-group/prospect-intel/internal/model"
)

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler("every minute", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse schedule")

	_, err = NewScheduler("*/15 * * * *", nil)
	require.NoError(t, err)
}

func TestScheduler_Run(t *testing.T) {
	t.Parallel()

	st := &fakeSweepStore{analyses: []model.Analysis{testAnalysis(90, 50)}}
	hook := &fakeNotifier{name: ChannelWebhook}
	sched, err := NewScheduler("@every 1s", newTestSweeper(st, fakeMuter{}, nil, hook))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool { return len(st.events()) == 1 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
