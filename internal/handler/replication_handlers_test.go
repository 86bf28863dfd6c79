package handler

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/replication"
)

func TestHandleWaitReturnsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	h := newTestHandler(t)
	mgr := replication.NewReplicationManager(replication.RoleMaster)
	h.replicationMgr = mgr

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	mgr.AddReplica(server, "r1")
	mgr.UpdateReplicaOffset("r1", mgr.GetOffset())

	resp := h.handleWait(&Client{}, &protocol.Command{Args: []string{"WAIT", "1", "100"}})
	require.Equal(t, protocol.EncodeInteger(1), resp)
}

func TestHandleWaitTimesOutWithFewerReplicasThanRequested(t *testing.T) {
	h := newTestHandler(t)
	mgr := replication.NewReplicationManager(replication.RoleMaster)
	h.replicationMgr = mgr

	start := time.Now()
	resp := h.handleWait(&Client{}, &protocol.Command{Args: []string{"WAIT", "1", "50"}})
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, protocol.EncodeInteger(0), resp)
}

func TestHandleWaitWrongArgCount(t *testing.T) {
	h := newTestHandler(t)
	resp := h.handleWait(&Client{}, &protocol.Command{Args: []string{"WAIT", "1"}})
	require.Contains(t, string(resp), "wrong number of arguments")
}

func TestHandleWaitWithoutReplicationManagerReturnsZero(t *testing.T) {
	h := newTestHandler(t)
	h.replicationMgr = nil
	resp := h.handleWait(&Client{}, &protocol.Command{Args: []string{"WAIT", "1", "0"}})
	require.Equal(t, protocol.EncodeInteger(0), resp)
}
