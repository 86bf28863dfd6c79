// Package raft implements the consensus module used when the server runs
// in multi-node (Raft) mode instead of the simpler primary/replica
// replication scheme: leader election, log replication, and a commit/apply
// loop that feeds agreed-upon commands back to the caller.
//
// Grounded on the single-process lab Raft in
// yusong-yan/MultiRaft (ticker/applier goroutine split, dummy entry at log
// index 0, RequestVote/AppendEntries shape), adapted from the lab's
// in-memory labrpc transport to a real TCP transport (transport.go) and
// from its reference-type Command/testing persister to the split
// .raftlog/.raftstate file layout this module's Open Questions settled on.
package raft

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/kvserver/redis/internal/logging"
)

// Role is this node's current position in the Raft state machine.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// ErrNotLeader is returned by Start when the node isn't currently the
// leader; callers surface this to clients as -RAFTREDIRECT <leader-addr>.
var ErrNotLeader = errors.New("raft: not the leader")

const (
	heartbeatInterval    = 100 * time.Millisecond
	electionTimeoutFloor = 300 * time.Millisecond
	electionTimeoutRange = 250 * time.Millisecond
)

func randomizedElectionTimeout() time.Duration {
	return electionTimeoutFloor + time.Duration(rand.Int63n(int64(electionTimeoutRange)))
}

// Entry is one slot in the replicated log. Command is a tokenized server
// command (the same []string shape protocol.Command.Args carries) rather
// than an opaque interface{} blob, since every entry this module ever
// applies is a write command destined for the handler package.
type Entry struct {
	Term    int
	Index   int
	Command []string
}

// ApplyMsg is delivered once an entry has been committed by a majority and
// is safe to apply to the local state machine.
type ApplyMsg struct {
	CommandIndex int
	CommandTerm  int
	Command      []string
}

// Peer identifies another node in the cluster by a stable UUID plus the
// address the transport dials to reach it.
type Peer struct {
	ID   string
	Addr string
}

// Config configures a single Raft node.
type Config struct {
	ID       string // this node's UUID
	Addr     string // this node's own RPC listen address
	Peers    []Peer // the OTHER nodes in the cluster (excludes self)
	DataDir  string // directory holding .raftlog / .raftstate
	ApplyCh  chan ApplyMsg
	Election func() time.Duration // overridable for tests; nil uses the default randomized timeout
}

// Raft is one node's consensus state.
type Raft struct {
	mu sync.Mutex

	id        string
	selfAddr  string
	peers     []Peer
	transport Transport
	storage   *Storage

	role        Role
	currentTerm int
	votedFor    int // peer index into peers, -1 for none, -2 for self
	leaderAddr  string

	log         []Entry // log[0] is a dummy sentinel at index 0
	commitIndex int
	lastApplied int
	nextIndex   []int
	matchIndex  []int

	applyCh   chan ApplyMsg
	applyCond *sync.Cond

	electionDuration func() time.Duration
	electionTimer    *time.Timer
	heartbeatTimer   *time.Timer

	stopCh chan struct{}
	dead   bool
}

// NewRaft constructs a node, restores any persisted term/vote/log, and
// starts its background ticker and applier goroutines. The transport is
// injected so tests can swap in an in-memory fake instead of real TCP.
func NewRaft(cfg Config, transport Transport) (*Raft, error) {
	storage, err := NewStorage(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	electionDuration := cfg.Election
	if electionDuration == nil {
		electionDuration = randomizedElectionTimeout
	}

	rf := &Raft{
		id:               cfg.ID,
		selfAddr:         cfg.Addr,
		peers:            cfg.Peers,
		transport:        transport,
		storage:          storage,
		role:             Follower,
		votedFor:         -1,
		log:              []Entry{{Term: 0, Index: 0}},
		nextIndex:        make([]int, len(cfg.Peers)),
		matchIndex:       make([]int, len(cfg.Peers)),
		applyCh:          cfg.ApplyCh,
		electionDuration: electionDuration,
		electionTimer:    time.NewTimer(electionDuration()),
		heartbeatTimer:   time.NewTimer(heartbeatInterval),
		stopCh:           make(chan struct{}),
	}
	rf.applyCond = sync.NewCond(&rf.mu)

	if err := rf.restore(); err != nil {
		return nil, err
	}

	go rf.ticker()
	go rf.applier()
	return rf, nil
}

// Stop halts the node's background goroutines. It does not close the
// transport or ApplyCh — those are owned by the caller.
func (rf *Raft) Stop() {
	rf.mu.Lock()
	if rf.dead {
		rf.mu.Unlock()
		return
	}
	rf.dead = true
	rf.mu.Unlock()
	close(rf.stopCh)
	rf.applyCond.Broadcast()
}

func (rf *Raft) killed() bool {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.dead
}

// GetState reports the current term and whether this node believes it is
// the leader.
func (rf *Raft) GetState() (term int, isLeader bool) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.currentTerm, rf.role == Leader
}

// LeaderHint returns the address of the node this one last heard from as
// leader (best-effort; empty if unknown), used to build -RAFTREDIRECT.
func (rf *Raft) LeaderHint() string {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.leaderAddr
}

// RoleAndTerm reports this node's current role, term and commit index, for
// INFO's raft section.
func (rf *Raft) RoleAndTerm() (Role, int, int) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.role, rf.currentTerm, rf.commitIndex
}

// Start appends command to the log if this node is the leader, returning
// the assigned (index, term). Non-leaders return ErrNotLeader immediately;
// the caller is expected to redirect the client to LeaderHint().
func (rf *Raft) Start(command []string) (index int, term int, err error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.role != Leader {
		return 0, 0, ErrNotLeader
	}

	entry := Entry{
		Term:    rf.currentTerm,
		Index:   rf.lastLogIndex() + 1,
		Command: command,
	}
	rf.log = append(rf.log, entry)
	if err := rf.persist(); err != nil {
		logging.L.Infof("raft: persist after append failed: %v", err)
	}
	rf.broadcastAppendLocked(false)
	return entry.Index, entry.Term, nil
}

func (rf *Raft) lastLogIndex() int {
	return rf.log[len(rf.log)-1].Index
}

func (rf *Raft) lastLogTerm() int {
	return rf.log[len(rf.log)-1].Term
}

// entryAt returns the log entry with the given index, assuming no
// snapshotting has trimmed the log (this module doesn't implement log
// compaction).
func (rf *Raft) entryAt(index int) Entry {
	return rf.log[index]
}

func (rf *Raft) ticker() {
	for {
		select {
		case <-rf.stopCh:
			return
		case <-rf.electionTimer.C:
			rf.electionTimer.Reset(rf.electionDuration())
			rf.mu.Lock()
			if rf.role != Leader {
				rf.startElectionLocked()
			}
			rf.mu.Unlock()
		case <-rf.heartbeatTimer.C:
			rf.heartbeatTimer.Reset(heartbeatInterval)
			rf.mu.Lock()
			if rf.role == Leader {
				rf.broadcastAppendLocked(true)
			}
			rf.mu.Unlock()
		}
	}
}

func (rf *Raft) resetElectionTimerLocked() {
	if !rf.electionTimer.Stop() {
		select {
		case <-rf.electionTimer.C:
		default:
		}
	}
	rf.electionTimer.Reset(rf.electionDuration())
}

// becomeFollowerLocked steps down, adopting the given term (must be >=
// currentTerm). Caller holds rf.mu.
func (rf *Raft) becomeFollowerLocked(term int) {
	rf.role = Follower
	rf.currentTerm = term
	rf.votedFor = -1
	if err := rf.persist(); err != nil {
		logging.L.Infof("raft: persist on step-down failed: %v", err)
	}
}
