package raft

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memTransport routes RPCs directly to in-process Raft instances by
// address, avoiding real sockets in tests while exercising the exact same
// HandleRequestVote/HandleAppendEntries code path the real netTransport
// calls into.
type memTransport struct {
	mu    sync.Mutex
	nodes map[string]*Raft
}

func newMemTransport() *memTransport {
	return &memTransport{nodes: make(map[string]*Raft)}
}

func (t *memTransport) register(addr string, rf *Raft) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[addr] = rf
}

func (t *memTransport) node(addr string) *Raft {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[addr]
}

func (t *memTransport) SendRequestVote(addr string, args *RequestVoteArgs) (*RequestVoteReply, error) {
	n := t.node(addr)
	if n == nil {
		return nil, errNodeUnreachable
	}
	return n.HandleRequestVote(args), nil
}

func (t *memTransport) SendAppendEntries(addr string, args *AppendEntriesArgs) (*AppendEntriesReply, error) {
	n := t.node(addr)
	if n == nil {
		return nil, errNodeUnreachable
	}
	return n.HandleAppendEntries(args), nil
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errNodeUnreachable = testErr("node unreachable")

func fastElectionTimeout() time.Duration {
	return 15 * time.Millisecond
}

// newCluster wires up n nodes addressed "node0".."nodeN-1" sharing one
// memTransport, each with its own temp data directory.
func newCluster(t *testing.T, n int) ([]*Raft, []chan ApplyMsg) {
	t.Helper()
	transport := newMemTransport()

	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("node%d", i)
	}

	nodes := make([]*Raft, n)
	applyChans := make([]chan ApplyMsg, n)

	for i := 0; i < n; i++ {
		peers := make([]Peer, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			peers = append(peers, Peer{ID: addrs[j], Addr: addrs[j]})
		}
		applyCh := make(chan ApplyMsg, 100)
		applyChans[i] = applyCh

		rf, err := NewRaft(Config{
			ID:       addrs[i],
			Addr:     addrs[i],
			Peers:    peers,
			DataDir:  t.TempDir(),
			ApplyCh:  applyCh,
			Election: fastElectionTimeout,
		}, transport)
		require.NoError(t, err)
		nodes[i] = rf
		transport.register(addrs[i], rf)
	}

	t.Cleanup(func() {
		for _, rf := range nodes {
			rf.Stop()
		}
	})

	return nodes, applyChans
}

func waitForLeader(t *testing.T, nodes []*Raft) *Raft {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, rf := range nodes {
			if _, isLeader := rf.GetState(); isLeader {
				return rf
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no leader elected within deadline")
	return nil
}

func TestClusterElectsExactlyOneLeader(t *testing.T) {
	nodes, _ := newCluster(t, 3)
	leader := waitForLeader(t, nodes)

	leaderCount := 0
	for _, rf := range nodes {
		if _, isLeader := rf.GetState(); isLeader {
			leaderCount++
		}
	}
	require.Equal(t, 1, leaderCount)
	require.NotNil(t, leader)
}

func TestStartOnNonLeaderReturnsErrNotLeader(t *testing.T) {
	nodes, _ := newCluster(t, 3)
	leader := waitForLeader(t, nodes)

	for _, rf := range nodes {
		if rf == leader {
			continue
		}
		_, _, err := rf.Start([]string{"SET", "k", "v"})
		require.ErrorIs(t, err, ErrNotLeader)
	}
}

func TestCommandReplicatesAndApplies(t *testing.T) {
	nodes, applyChans := newCluster(t, 3)
	leader := waitForLeader(t, nodes)

	index, term, err := leader.Start([]string{"SET", "foo", "bar"})
	require.NoError(t, err)
	require.Equal(t, 1, index)
	require.Greater(t, term, 0)

	for i, ch := range applyChans {
		select {
		case msg := <-ch:
			require.Equal(t, []string{"SET", "foo", "bar"}, msg.Command)
			require.Equal(t, index, msg.CommandIndex)
		case <-time.After(2 * time.Second):
			t.Fatalf("node %d never applied the committed entry", i)
		}
	}
}
