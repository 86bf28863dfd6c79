package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/dynstr"
)

func TestDatabaseTouchUpdatesLastAccess(t *testing.T) {
	d := NewDatabase()
	d.Set("k", dynstr.NewFromString("v"), NoExpiry)

	d.Touch("k", 1000)
	val, ok := d.data["k"]
	require.True(t, ok)
	require.Equal(t, int64(1000), val.LastAccessMs)

	d.Touch("k", 2000)
	require.Equal(t, int64(2000), val.LastAccessMs)
}

func TestDatabaseTouchIgnoresMissingKey(t *testing.T) {
	d := NewDatabase()
	d.Touch("missing", 1000) // must not panic
	require.Equal(t, 0, d.Size())
}

func TestEvictLRUSampleEvictsLeastRecentlyTouched(t *testing.T) {
	d := NewDatabase()
	d.Set("old", dynstr.NewFromString("v"), NoExpiry)
	d.Touch("old", 100)

	for i := 0; i < 10; i++ {
		key := "fresh" + string(rune('a'+i))
		d.Set(key, dynstr.NewFromString("v"), NoExpiry)
		d.Touch(key, 5000)
	}

	evicted := d.EvictLRUSample(1, len(d.data))
	require.Equal(t, []string{"old"}, evicted)
	require.False(t, d.Exists("old", 5000))
	require.Equal(t, 10, d.Size())
}

func TestEvictLRUSampleStopsWhenKeyspaceEmpty(t *testing.T) {
	d := NewDatabase()
	d.Set("only", dynstr.NewFromString("v"), NoExpiry)

	evicted := d.EvictLRUSample(5, 5)
	require.Equal(t, []string{"only"}, evicted)

	evicted = d.EvictLRUSample(5, 5)
	require.Empty(t, evicted)
}
