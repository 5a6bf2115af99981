package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/dashboard"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
)

type fakeSource struct {
	mu       sync.Mutex
	settings *settings.Manager
	result   dashboard.RefreshResult
	err      error
	runs     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{settings: settings.NewManager(storage.New(storage.NewMemoryBackend(0)))}
}

func (f *fakeSource) RefreshFavorites(context.Context) (dashboard.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.result, f.err
}

func (f *fakeSource) Settings() *settings.Manager { return f.settings }

func (f *fakeSource) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestRunOnce_RefreshesWhenAutoRefreshOn(t *testing.T) {
	src := newFakeSource()
	src.result = dashboard.RefreshResult{
		Refreshed: 2,
		Triggered: []alerts.TriggeredAlert{{Message: "Delhi: temperature is above 32°C (Current: 34°C)"}},
	}

	var got []dashboard.RefreshResult
	s := New(src, time.Minute, nil, func(r dashboard.RefreshResult) { got = append(got, r) })

	assert.True(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, src.runCount())
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Refreshed)
}

func TestRunOnce_SkipsWhenAutoRefreshOff(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	require.NoError(t, src.settings.Set(ctx, settings.KeyAutoRefresh, false))

	s := New(src, time.Minute, nil, nil)

	assert.False(t, s.RunOnce(ctx))
	assert.Zero(t, src.runCount())
}

func TestRunOnce_NoCallbackWithoutTriggers(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("provider down")

	called := false
	s := New(src, time.Minute, nil, func(dashboard.RefreshResult) { called = true })

	assert.True(t, s.RunOnce(context.Background()))
	assert.False(t, called)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	src := newFakeSource()
	s := New(src, time.Hour, nil, nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return src.runCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
