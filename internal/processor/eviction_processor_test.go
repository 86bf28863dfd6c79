package processor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/dynstr"
	"github.com/kvserver/redis/internal/storage"
)

func submitAndWait(t *testing.T, p *Processor, cmd *Command) interface{} {
	t.Helper()
	cmd.Response = make(chan interface{}, 1)
	p.Submit(cmd)
	return <-cmd.Response
}

func TestEvictIfOverLimitEvictsUnderAllkeysLRU(t *testing.T) {
	keyspace, err := storage.NewKeyspace(1)
	require.NoError(t, err)
	p := NewProcessor(keyspace)
	defer p.Shutdown()

	submitAndWait(t, p, &Command{Type: CmdSet, Key: "k1", Value: dynstr.NewFromString("v"), ExpireAt: storage.NoExpiry})

	var evictedKeys []string
	p.SetEvictionPolicy(100, "allkeys-lru", func() uint64 { return 200 }, func(key string) {
		evictedKeys = append(evictedKeys, key)
	})

	submitAndWait(t, p, &Command{Type: CmdCleanup})

	require.Equal(t, []string{"k1"}, evictedKeys)
	size := submitAndWait(t, p, &Command{Type: CmdDBSize}).(IntResult)
	require.Equal(t, 0, size.Result)
}

func TestEvictIfOverLimitNoopUnderNoeviction(t *testing.T) {
	keyspace, err := storage.NewKeyspace(1)
	require.NoError(t, err)
	p := NewProcessor(keyspace)
	defer p.Shutdown()

	submitAndWait(t, p, &Command{Type: CmdSet, Key: "k1", Value: dynstr.NewFromString("v"), ExpireAt: storage.NoExpiry})

	p.SetEvictionPolicy(100, "noeviction", func() uint64 { return 200 }, func(key string) {
		t.Fatalf("onEvict should not be called under noeviction")
	})

	submitAndWait(t, p, &Command{Type: CmdCleanup})

	size := submitAndWait(t, p, &Command{Type: CmdDBSize}).(IntResult)
	require.Equal(t, 1, size.Result)
}

func TestEvictIfOverLimitNoopUnderLimit(t *testing.T) {
	keyspace, err := storage.NewKeyspace(1)
	require.NoError(t, err)
	p := NewProcessor(keyspace)
	defer p.Shutdown()

	submitAndWait(t, p, &Command{Type: CmdSet, Key: "k1", Value: dynstr.NewFromString("v"), ExpireAt: storage.NoExpiry})

	p.SetEvictionPolicy(1000, "allkeys-lru", func() uint64 { return 10 }, func(key string) {
		t.Fatalf("onEvict should not be called under the limit")
	})

	submitAndWait(t, p, &Command{Type: CmdCleanup})

	size := submitAndWait(t, p, &Command{Type: CmdDBSize}).(IntResult)
	require.Equal(t, 1, size.Result)
}
