package market

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	n, err := s.InsertDaily(ctx, "tcs", candlesOn(1, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Symbols are normalised to upper case.
	loaded, err := s.LoadSeries(ctx, "TCS")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len())
	assert.Equal(t, 101.0, loaded.Candles[0].Close)
	assert.Equal(t, d(5), loaded.Candles[2].Date)
}

func TestStoreUpsertOverwrites(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.InsertDaily(ctx, "INFY", candlesOn(1, 2))
	require.NoError(t, err)

	updated := candlesOn(2)
	updated[0].Close = 999
	_, err = s.InsertDaily(ctx, "INFY", updated)
	require.NoError(t, err)

	loaded, err := s.LoadSeries(ctx, "INFY")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, 999.0, loaded.Candles[1].Close)
}

func TestStoreManifest(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.InsertDaily(ctx, "SBIN", candlesOn(1, 2, 8))
	require.NoError(t, err)

	m, err := s.ManifestFor(ctx, "SBIN")
	require.NoError(t, err)
	assert.Equal(t, "SBIN", m.Symbol)
	assert.Equal(t, "2024-03-01", m.MinDate)
	assert.Equal(t, "2024-03-08", m.MaxDate)
	assert.Equal(t, int64(3), m.Rows)
	assert.NotZero(t, m.LastSyncAt)

	_, err = s.ManifestFor(ctx, "UNKNOWN")
	assert.Error(t, err)
}

func TestStoreLoadAll(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.InsertDaily(ctx, "AAA", candlesOn(1))
	require.NoError(t, err)
	_, err = s.InsertDaily(ctx, "BBB", candlesOn(1, 2))
	require.NoError(t, err)

	symbols, err := s.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, symbols)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all["BBB"].Len())
}

func TestStoreEmptySymbol(t *testing.T) {
	s := tempStore(t)
	_, err := s.InsertDaily(context.Background(), "  ", candlesOn(1))
	assert.Error(t, err)
}
