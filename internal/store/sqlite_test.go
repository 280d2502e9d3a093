package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bison808/civix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxAge time.Duration) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "results.db"), maxAge)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResolution(zip string, at time.Time) *civix.Resolution {
	return &civix.Resolution{
		ZIP:        zip,
		State:      "CA",
		City:       "Bodega",
		County:     "Sonoma",
		Districts:  civix.Districts{Congressional: 2, StateSenate: 2, Assembly: 12},
		Source:     civix.SourceGeocoder,
		Sources:    []civix.Source{civix.SourceGeocoder},
		Confidence: civix.ConfidenceMedium,
		Warnings:   []string{"districts placed from coordinates via nearest ZIP 94923"},
		ResolvedAt: at,
	}
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, sampleResolution("94922", at)))

	got, ok, err := s.Get(ctx, "94922")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sonoma", got.County)
	assert.Equal(t, 2, got.Districts.Congressional)
	assert.Equal(t, civix.ConfidenceMedium, got.Confidence)
	assert.Equal(t, []string{"districts placed from coordinates via nearest ZIP 94923"}, got.Warnings)
	assert.True(t, at.Equal(got.ResolvedAt))
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, 0)
	got, ok, err := s.Get(context.Background(), "99999")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestPutReplaces(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	first := sampleResolution("94922", time.Now())
	require.NoError(t, s.Put(ctx, first))

	second := sampleResolution("94922", time.Now())
	second.Districts.Assembly = 2
	require.NoError(t, s.Put(ctx, second))

	got, ok, err := s.Get(ctx, "94922")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Districts.Assembly)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMaxAge(t *testing.T) {
	s := newTestStore(t, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, sampleResolution("94922", now.Add(-2*time.Hour))))
	require.NoError(t, s.Put(ctx, sampleResolution("94923", now.Add(-10*time.Minute))))

	_, ok, err := s.Get(ctx, "94922")
	require.NoError(t, err)
	assert.False(t, ok, "stale entry should read as absent")

	_, ok, err = s.Get(ctx, "94923")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPurge(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		zip := fmt.Sprintf("9492%d", i)
		require.NoError(t, s.Put(ctx, sampleResolution(zip, base.Add(time.Duration(i)*time.Hour))))
	}

	n, err := s.Purge(ctx, base.Add(150*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	left, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, left)
}

func TestConcurrentPut(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Put(ctx, sampleResolution(fmt.Sprintf("950%02d", i), time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
