package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/raft"
)

// newFollowerRaft builds a node pinned to Follower forever (an election
// timeout of an hour never fires in a test run), so proposeRaftWrite's
// redirect path can be exercised without any network traffic or leader
// election race.
func newFollowerRaft(t *testing.T) *raft.Raft {
	t.Helper()
	applyCh := make(chan raft.ApplyMsg, 1)
	rf, err := raft.NewRaft(raft.Config{
		ID:       "self",
		Addr:     "127.0.0.1:0",
		Peers:    []raft.Peer{{ID: "other", Addr: "127.0.0.1:0"}},
		DataDir:  t.TempDir(),
		ApplyCh:  applyCh,
		Election: func() time.Duration { return time.Hour },
	}, raft.NewNetTransport())
	require.NoError(t, err)
	t.Cleanup(rf.Stop)
	return rf
}

func TestProposeRaftWriteReturnsClusterDownWithNoKnownLeader(t *testing.T) {
	s := &RedisServer{raftNode: newFollowerRaft(t)}

	resp := s.proposeRaftWrite(&protocol.Command{Args: []string{"SET", "k", "v"}})
	require.True(t, strings.HasPrefix(string(resp), "-CLUSTERDOWN"), "got %q", resp)
}
