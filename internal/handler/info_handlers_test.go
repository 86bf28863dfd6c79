package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/processor"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/storage"
)

func newTestHandler(t *testing.T) *CommandHandler {
	t.Helper()
	keyspace, err := storage.NewKeyspace(4)
	require.NoError(t, err)
	proc := processor.NewProcessor(keyspace)
	t.Cleanup(proc.Shutdown)

	h := NewCommandHandler(proc, DefaultHandlerConfig(), nil, nil, 6399)
	h.SetServerMeta(ServerMeta{
		DatabaseCount:   4,
		MaxMemory:       128 << 20,
		EvictionPolicy:  "noeviction",
		RDBFilepath:     "dump.rdb",
		ReplicationRole: "master",
	})
	return h
}

func TestHandleINFOContainsExpectedSections(t *testing.T) {
	h := newTestHandler(t)
	resp := h.handleINFO(&Client{DB: 0}, &protocol.Command{Args: []string{"INFO"}})

	body := string(resp)
	require.Contains(t, body, "# Server")
	require.Contains(t, body, "# Memory")
	require.Contains(t, body, "# Persistence")
	require.Contains(t, body, "# Replication")
	require.Contains(t, body, "# Keyspace")
	require.Contains(t, body, "role:master")
	require.Contains(t, body, "maxmemory:134217728")
	require.True(t, strings.HasPrefix(body, "$"))
}

func TestHandleCONFIGGetAndSet(t *testing.T) {
	h := newTestHandler(t)

	resp := h.handleCONFIG(&Client{}, &protocol.Command{Args: []string{"CONFIG", "GET", "maxmemory"}})
	require.Contains(t, string(resp), "134217728")

	resp = h.handleCONFIG(&Client{}, &protocol.Command{Args: []string{"CONFIG", "SET", "maxmemory", "1000"}})
	require.Equal(t, protocol.EncodeSimpleString("OK"), resp)

	resp = h.handleCONFIG(&Client{}, &protocol.Command{Args: []string{"CONFIG", "GET", "maxmemory"}})
	require.Contains(t, string(resp), "1000")
}

func TestHandleCONFIGUnknownSubcommand(t *testing.T) {
	h := newTestHandler(t)
	resp := h.handleCONFIG(&Client{}, &protocol.Command{Args: []string{"CONFIG", "FOO"}})
	require.True(t, strings.HasPrefix(string(resp), "-ERR"))
}

func TestHandleCONFIGGetWildcard(t *testing.T) {
	h := newTestHandler(t)
	resp := h.handleCONFIG(&Client{}, &protocol.Command{Args: []string{"CONFIG", "GET", "maxmemory*"}})
	body := string(resp)
	require.Contains(t, body, "maxmemory")
	require.Contains(t, body, "maxmemory-policy")
}
