package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/protocol"
)

func TestExecuteCommandRoutesWritesThroughRaftProposer(t *testing.T) {
	h := newTestHandler(t)

	var proposed *protocol.Command
	h.SetRaftProposer(func(cmd *protocol.Command) []byte {
		proposed = cmd
		return protocol.EncodeSimpleString("OK")
	})

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"SET", "k", "v"}})

	require.Equal(t, protocol.EncodeSimpleString("OK"), resp)
	require.NotNil(t, proposed)
	require.Equal(t, []string{"SET", "k", "v"}, proposed.Args)
}

func TestExecuteCommandLeavesReadsOffRaftProposer(t *testing.T) {
	h := newTestHandler(t)

	h.SetRaftProposer(func(cmd *protocol.Command) []byte {
		t.Fatalf("read command %v should never be proposed", cmd.Args)
		return nil
	})

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"GET", "k"}})
	require.False(t, strings.HasPrefix(string(resp), "-"))
}

func TestExecuteCommandWithoutRaftProposerAppliesDirectly(t *testing.T) {
	h := newTestHandler(t)

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"SET", "k", "v"}})
	require.Equal(t, protocol.EncodeSimpleString("OK"), resp)

	resp = h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"GET", "k"}})
	require.Equal(t, protocol.EncodeBulkString("v"), resp)
}

func TestExecuteReplicatedCommandBypassesRaftProposer(t *testing.T) {
	h := newTestHandler(t)

	h.SetRaftProposer(func(cmd *protocol.Command) []byte {
		t.Fatalf("committed entry %v must not re-enter the proposer", cmd.Args)
		return nil
	})

	resp := h.ExecuteReplicatedCommand(&protocol.Command{Args: []string{"SET", "k", "v"}})
	require.Equal(t, protocol.EncodeSimpleString("OK"), resp)
}

func TestExecuteCommandDeniesWritesOverMaxMemoryUnderNoeviction(t *testing.T) {
	h := newTestHandler(t)
	h.meta.MaxMemory = 1 // anything resident exceeds 1 byte
	h.meta.EvictionPolicy = "noeviction"

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"SET", "k", "v"}})
	require.True(t, strings.HasPrefix(string(resp), "-OOM"))
}

func TestExecuteCommandAllowsReadsOverMaxMemoryUnderNoeviction(t *testing.T) {
	h := newTestHandler(t)
	h.meta.MaxMemory = 1
	h.meta.EvictionPolicy = "noeviction"

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"GET", "k"}})
	require.False(t, strings.HasPrefix(string(resp), "-OOM"))
}

func TestExecuteCommandAllowsWritesOverMaxMemoryUnderAllkeysLRU(t *testing.T) {
	h := newTestHandler(t)
	h.meta.MaxMemory = 1
	h.meta.EvictionPolicy = "allkeys-lru"

	resp := h.executeCommand(&Client{DB: 0}, &protocol.Command{Args: []string{"SET", "k", "v"}})
	require.Equal(t, protocol.EncodeSimpleString("OK"), resp)
}
