package searches

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-dashboard/internal/storage"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) advance() {
	c.now = c.now.Add(time.Second)
}

func newTestManager(max int) (*Manager, *clock) {
	c := &clock{now: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	store := storage.New(storage.NewMemoryBackend(0), storage.WithClock(c.Now))
	return NewManager(store, max), c
}

func TestManager_AddSameLocationTwice(t *testing.T) {
	ctx := context.Background()
	m, c := newTestManager(10)

	_, err := m.Add(ctx, Search{Location: "Delhi"})
	require.NoError(t, err)
	c.advance()
	second, err := m.Add(ctx, Search{Location: "Delhi"})
	require.NoError(t, err)

	list := m.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "Delhi", list[0].Location)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, c.now, list[0].Timestamp)
}

func TestManager_AddIsRecencyStack(t *testing.T) {
	ctx := context.Background()
	m, c := newTestManager(10)

	for _, loc := range []string{"Delhi", "Mumbai", "Pune", "delhi"} {
		_, err := m.Add(ctx, Search{Location: loc})
		require.NoError(t, err)
		c.advance()
	}

	var got []string
	for _, r := range m.List(ctx) {
		got = append(got, r.Location)
	}
	assert.Equal(t, []string{"delhi", "Pune", "Mumbai"}, got)
}

func TestManager_AddEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(3)

	for i := 1; i <= 5; i++ {
		_, err := m.Add(ctx, Search{Location: fmt.Sprintf("City %d", i)})
		require.NoError(t, err)
	}

	list := m.List(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, "City 5", list[0].Location)
	assert.Equal(t, "City 3", list[2].Location)
}

func TestManager_AddDefaultsQuery(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(10)

	r, err := m.Add(ctx, Search{Location: "Jaipur", Coordinates: &Coordinates{Lat: 26.91, Lon: 75.78}})
	require.NoError(t, err)
	assert.Equal(t, "Jaipur", r.Query)
	assert.Equal(t, &Coordinates{Lat: 26.91, Lon: 75.78}, m.List(ctx)[0].Coordinates)

	r, err = m.Add(ctx, Search{Location: "Surat", Query: "surat, in"})
	require.NoError(t, err)
	assert.Equal(t, "surat, in", r.Query)

	_, err = m.Add(ctx, Search{Location: "  "})
	assert.ErrorIs(t, err, ErrEmptySearch)
}

func TestManager_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(10)

	a, err := m.Add(ctx, Search{Location: "Chennai"})
	require.NoError(t, err)
	_, err = m.Add(ctx, Search{Location: "Kolkata"})
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, a.ID))
	assert.Len(t, m.List(ctx), 1)
	assert.ErrorIs(t, m.Remove(ctx, a.ID), ErrNotFound)

	require.NoError(t, m.Clear(ctx))
	assert.Empty(t, m.List(ctx))
}

func TestManager_ReplaceDedupesAndCaps(t *testing.T) {
	ctx := context.Background()
	m, c := newTestManager(2)

	imported := []RecentSearch{
		{ID: "1", Location: "Delhi", Timestamp: c.now},
		{ID: "2", Location: "DELHI", Timestamp: c.now},
		{ID: "3", Location: "Pune", Query: "pune", Timestamp: c.now},
		{ID: "4", Location: "Goa", Timestamp: c.now},
	}
	require.NoError(t, m.Replace(ctx, imported))

	list := m.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "Delhi", list[0].Query)
	assert.Equal(t, "3", list[1].ID)
}

func TestManager_ReplaceRejects(t *testing.T) {
	tests := []struct {
		name     string
		searches []RecentSearch
		wantErr  error
	}{
		{"empty location", []RecentSearch{{ID: "1", Location: " "}}, ErrEmptySearch},
		{"missing id", []RecentSearch{{Location: "Delhi"}}, ErrInvalidSearch},
		{"repeated id", []RecentSearch{{ID: "1", Location: "Delhi"}, {ID: "1", Location: "Pune"}}, ErrInvalidSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, _ := newTestManager(10)
			existing, err := m.Add(ctx, Search{Location: "Chennai"})
			require.NoError(t, err)

			assert.ErrorIs(t, m.Replace(ctx, tt.searches), tt.wantErr)
			assert.Equal(t, []RecentSearch{existing}, m.List(ctx))
		})
	}
}
