package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptseed/config"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()

	cfg := config.DatabaseConfig{
		Type: "sqlite",
		Name: filepath.Join(t.TempDir(), "registry.db"),
	}

	r, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func admit(t *testing.T, r *Registry, hash string, class Classification, size int64) *Record {
	t.Helper()

	rec, err := r.Admit(context.Background(), AdmitParams{
		Hash:           hash,
		Name:           "test-" + hash,
		Classification: class,
		Size:           size,
	})
	require.NoError(t, err)
	return rec
}

func TestAdmit(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	rec := admit(t, r, "abc123", ClassFree, 1000)
	assert.Equal(t, StatePending, rec.State)
	assert.Equal(t, ClassFree, rec.Classification)
	assert.Equal(t, int64(1000), rec.Size)
	assert.Zero(t, rec.Ratio)
	assert.False(t, rec.AddedAt.IsZero())

	// Duplicate hash is rejected.
	_, err := r.Admit(ctx, AdmitParams{Hash: "abc123", Name: "dup", Classification: ClassDefault})
	require.ErrorIs(t, err, ErrDuplicateHash)
}

func TestGetUnknownHash(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMetricsMonotonicRatio(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "abc123", ClassDefault, 1000)

	require.NoError(t, r.UpdateMetrics(ctx, "abc123", 1.5, 10*time.Hour, 1000))
	rec, err := r.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1.5, rec.Ratio)
	assert.Equal(t, 10*time.Hour, rec.SeedTime)

	// A lower reported ratio is an anomaly: logged and dropped.
	require.NoError(t, r.UpdateMetrics(ctx, "abc123", 0.8, 11*time.Hour, 1000))
	rec, err = r.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1.5, rec.Ratio, "stored ratio must never decrease")
	assert.Equal(t, 11*time.Hour, rec.SeedTime, "seed time still updates")
}

func TestTransition(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "abc123", ClassDefault, 1000)

	ok, err := r.Transition(ctx, "abc123", StatePending, StateSeeding)
	require.NoError(t, err)
	assert.True(t, ok)

	// Wrong from-state is a silent no-op.
	ok, err = r.Transition(ctx, "abc123", StatePending, StateFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := r.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, StateSeeding, rec.State)
}

func TestTransitionConcurrentExactlyOneWins(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "abc123", ClassDefault, 1000)

	const attempts = 8
	results := make([]bool, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.Transition(ctx, "abc123", StatePending, StateSeeding)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	var wins int
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent transition must succeed")
}

func TestByStateAndActive(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "h1", ClassDefault, 100)
	admit(t, r, "h2", ClassFree, 200)
	admit(t, r, "h3", ClassDoubleUp, 300)

	_, err := r.Transition(ctx, "h2", StatePending, StateSeeding)
	require.NoError(t, err)
	_, err = r.Transition(ctx, "h3", StatePending, StateSeeding)
	require.NoError(t, err)
	_, err = r.Transition(ctx, "h3", StateSeeding, StateEligible)
	require.NoError(t, err)

	seeding, err := r.ByState(ctx, StateSeeding)
	require.NoError(t, err)
	require.Len(t, seeding, 1)
	assert.Equal(t, "h2", seeding[0].Hash)

	active, err := r.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestAggregateExcludesTerminalStates(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "h1", ClassDefault, 100) // pending: counted active, no disk
	admit(t, r, "h2", ClassFree, 200)    // seeding
	admit(t, r, "h3", ClassDefault, 400) // eligible_for_removal
	admit(t, r, "h4", ClassDefault, 800) // removed: audit only

	for _, hash := range []string{"h2", "h3", "h4"} {
		_, err := r.Transition(ctx, hash, StatePending, StateSeeding)
		require.NoError(t, err)
	}
	_, err := r.Transition(ctx, "h3", StateSeeding, StateEligible)
	require.NoError(t, err)
	_, err = r.Transition(ctx, "h4", StateSeeding, StateEligible)
	require.NoError(t, err)
	_, err = r.Transition(ctx, "h4", StateEligible, StateRemoved)
	require.NoError(t, err)

	agg, err := r.Aggregate(ctx, 5000)
	require.NoError(t, err)

	assert.Equal(t, int64(600), agg.DiskUsed, "seeding + eligible sizes only")
	assert.Equal(t, 1, agg.SeedingCount)
	assert.Equal(t, 3, agg.ActiveCount)
	assert.Equal(t, int64(5000), agg.FreeDisk)

	// Removed records are retained for audit.
	rec, err := r.Get(ctx, "h4")
	require.NoError(t, err)
	assert.Equal(t, StateRemoved, rec.State)
}

func TestSetLastError(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "h1", ClassDefault, 100)
	require.NoError(t, r.SetLastError(ctx, "h1", "admission timeout"))

	rec, err := r.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "admission timeout", rec.LastError)
}

func TestSetPriority(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	admit(t, r, "h1", ClassDefault, 100)
	require.NoError(t, r.SetPriority(ctx, "h1", 3))

	rec, err := r.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Priority)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DatabaseConfig{Type: "sqlite", Name: filepath.Join(dir, "registry.db")}

	r, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = r.Admit(context.Background(), AdmitParams{Hash: "h1", Name: "persisted", Classification: ClassFree, Size: 42})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r2, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer r2.Close()

	rec, err := r2.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", rec.Name)
	assert.Equal(t, ClassFree, rec.Classification)
}
