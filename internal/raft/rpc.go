package raft

import (
	"sync"

	"github.com/kvserver/redis/internal/logging"
)

// RequestVoteArgs is the RequestVote RPC payload.
type RequestVoteArgs struct {
	Term         int
	CandidateID  string
	LastLogIndex int
	LastLogTerm  int
}

// RequestVoteReply is the RequestVote RPC response.
type RequestVoteReply struct {
	Term        int
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC payload (also used as the
// heartbeat when Entries is empty).
type AppendEntriesArgs struct {
	Term         int
	LeaderID     string
	LeaderAddr   string
	PrevLogIndex int
	PrevLogTerm  int
	Entries      []Entry
	LeaderCommit int
}

// AppendEntriesReply is the AppendEntries RPC response. XTerm/XIndex/XLen
// are the "fast backup" conflict hints: when the follower rejects due to a
// log mismatch, it reports the conflicting term (XTerm) and the first
// index of that term in its own log (XIndex), or — if it has no entry at
// PrevLogIndex at all — the length of its log (XLen). The leader uses
// these to jump nextIndex back by more than one entry per round trip
// instead of decrementing one index at a time.
type AppendEntriesReply struct {
	Term    int
	Success bool
	XTerm   int
	XIndex  int
	XLen    int
}

// HandleRequestVote implements the RequestVote RPC handler.
func (rf *Raft) HandleRequestVote(args *RequestVoteArgs) *RequestVoteReply {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	reply := &RequestVoteReply{Term: rf.currentTerm}

	if args.Term < rf.currentTerm {
		return reply
	}
	if args.Term > rf.currentTerm {
		rf.becomeFollowerLocked(args.Term)
		reply.Term = rf.currentTerm
	}

	candidateIdx := rf.peerIndex(args.CandidateID)
	alreadyVoted := rf.votedFor != -1 && rf.votedFor != candidateIdx
	if alreadyVoted {
		return reply
	}

	logOK := args.LastLogTerm > rf.lastLogTerm() ||
		(args.LastLogTerm == rf.lastLogTerm() && args.LastLogIndex >= rf.lastLogIndex())
	if !logOK {
		return reply
	}

	rf.votedFor = candidateIdx
	reply.VoteGranted = true
	rf.resetElectionTimerLocked()
	if err := rf.persist(); err != nil {
		logging.L.Infof("raft: persist after vote failed: %v", err)
	}
	return reply
}

// peerIndex maps a peer UUID to its slot in rf.peers, -2 if it is this
// node's own ID (self never appears in rf.peers), or -3 if unrecognized.
func (rf *Raft) peerIndex(id string) int {
	if id == rf.id {
		return -2
	}
	for i, p := range rf.peers {
		if p.ID == id {
			return i
		}
	}
	return -3
}

// startElectionLocked begins a new election: increment term, vote for
// self, send RequestVote to every peer concurrently, and become leader on
// a majority. Caller holds rf.mu; this spawns goroutines that re-acquire
// it for each reply.
func (rf *Raft) startElectionLocked() {
	rf.role = Candidate
	rf.currentTerm++
	rf.votedFor = -2 // vote for self (sentinel distinct from "no vote" and any peer index)
	term := rf.currentTerm
	args := &RequestVoteArgs{
		Term:         term,
		CandidateID:  rf.id,
		LastLogIndex: rf.lastLogIndex(),
		LastLogTerm:  rf.lastLogTerm(),
	}
	if err := rf.persist(); err != nil {
		logging.L.Infof("raft: persist on election start failed: %v", err)
	}
	rf.resetElectionTimerLocked()

	votes := 1 // self
	var voteMu sync.Mutex
	majority := len(rf.peers)/2 + 1

	if votes >= majority {
		// Single-node cluster: no peers to wait on.
		rf.becomeLeaderLocked()
		return
	}

	for i := range rf.peers {
		peer := rf.peers[i]
		go func() {
			reply, err := rf.transport.SendRequestVote(peer.Addr, args)
			if err != nil || reply == nil {
				return
			}
			rf.mu.Lock()
			defer rf.mu.Unlock()
			if reply.Term > rf.currentTerm {
				rf.becomeFollowerLocked(reply.Term)
				return
			}
			if rf.role != Candidate || rf.currentTerm != term || !reply.VoteGranted {
				return
			}
			voteMu.Lock()
			votes++
			count := votes
			voteMu.Unlock()
			if count >= majority && rf.role == Candidate {
				rf.becomeLeaderLocked()
			}
		}()
	}
}

func (rf *Raft) becomeLeaderLocked() {
	rf.role = Leader
	rf.leaderAddr = ""
	for i := range rf.peers {
		rf.nextIndex[i] = rf.lastLogIndex() + 1
		rf.matchIndex[i] = 0
	}
	logging.L.Infof("raft: node %s elected leader for term %d", rf.id, rf.currentTerm)
	rf.broadcastAppendLocked(true)
}

// broadcastAppendLocked sends AppendEntries to every peer. Caller holds
// rf.mu; each send happens in its own goroutine so a slow/unreachable peer
// never blocks replication to the others.
func (rf *Raft) broadcastAppendLocked(isHeartbeat bool) {
	for i := range rf.peers {
		go rf.replicateToPeer(i, isHeartbeat)
	}
}

func (rf *Raft) replicateToPeer(peerIdx int, isHeartbeat bool) {
	rf.mu.Lock()
	if rf.role != Leader {
		rf.mu.Unlock()
		return
	}
	nextIdx := rf.nextIndex[peerIdx]
	if nextIdx < 1 {
		nextIdx = 1
	}
	prevIdx := nextIdx - 1
	if prevIdx >= len(rf.log) {
		rf.mu.Unlock()
		return
	}
	prevTerm := rf.entryAt(prevIdx).Term

	var entries []Entry
	if !isHeartbeat || rf.lastLogIndex() >= nextIdx {
		entries = append(entries, rf.log[nextIdx:]...)
	}

	args := &AppendEntriesArgs{
		Term:         rf.currentTerm,
		LeaderID:     rf.id,
		LeaderAddr:   rf.selfAddr,
		PrevLogIndex: prevIdx,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: rf.commitIndex,
	}
	term := rf.currentTerm
	peer := rf.peers[peerIdx]
	rf.mu.Unlock()

	reply, err := rf.transport.SendAppendEntries(peer.Addr, args)
	if err != nil || reply == nil {
		return
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()

	if reply.Term > rf.currentTerm {
		rf.becomeFollowerLocked(reply.Term)
		return
	}
	if rf.role != Leader || rf.currentTerm != term {
		return
	}

	if reply.Success {
		rf.matchIndex[peerIdx] = prevIdx + len(entries)
		rf.nextIndex[peerIdx] = rf.matchIndex[peerIdx] + 1
		rf.advanceCommitIndexLocked()
		return
	}

	// Fast backup using the follower's conflict hints.
	switch {
	case reply.XTerm == -1:
		// Follower's log is shorter than PrevLogIndex.
		rf.nextIndex[peerIdx] = reply.XLen
	default:
		lastIdxOfXTerm := -1
		for i := len(rf.log) - 1; i >= 0; i-- {
			if rf.log[i].Term == reply.XTerm {
				lastIdxOfXTerm = rf.log[i].Index
				break
			}
		}
		if lastIdxOfXTerm == -1 {
			rf.nextIndex[peerIdx] = reply.XIndex
		} else {
			rf.nextIndex[peerIdx] = lastIdxOfXTerm + 1
		}
	}
	if rf.nextIndex[peerIdx] < 1 {
		rf.nextIndex[peerIdx] = 1
	}
}

// advanceCommitIndexLocked recomputes commitIndex as the highest index
// replicated to a majority of nodes (self included) within the current
// term, per the Raft commitment rule. Caller holds rf.mu.
func (rf *Raft) advanceCommitIndexLocked() {
	for n := rf.lastLogIndex(); n > rf.commitIndex; n-- {
		if rf.entryAt(n).Term != rf.currentTerm {
			continue
		}
		count := 1 // self
		for _, m := range rf.matchIndex {
			if m >= n {
				count++
			}
		}
		if count >= len(rf.peers)/2+1 {
			rf.commitIndex = n
			rf.applyCond.Broadcast()
			break
		}
	}
}

// HandleAppendEntries implements the AppendEntries RPC handler, including
// the XTerm/XIndex/XLen fast-backup hints on rejection.
func (rf *Raft) HandleAppendEntries(args *AppendEntriesArgs) *AppendEntriesReply {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	reply := &AppendEntriesReply{Term: rf.currentTerm}

	if args.Term < rf.currentTerm {
		return reply
	}
	if args.Term > rf.currentTerm || rf.role == Candidate {
		rf.becomeFollowerLocked(args.Term)
		reply.Term = rf.currentTerm
	}
	rf.role = Follower
	rf.leaderAddr = args.LeaderAddr
	rf.resetElectionTimerLocked()

	if args.PrevLogIndex > rf.lastLogIndex() {
		reply.XTerm = -1
		reply.XLen = rf.lastLogIndex() + 1
		return reply
	}
	if args.PrevLogIndex >= 0 && rf.entryAt(args.PrevLogIndex).Term != args.PrevLogTerm {
		conflictTerm := rf.entryAt(args.PrevLogIndex).Term
		reply.XTerm = conflictTerm
		first := args.PrevLogIndex
		for first > 0 && rf.entryAt(first-1).Term == conflictTerm {
			first--
		}
		reply.XIndex = first
		return reply
	}

	// Truncate/append: find first divergent entry and splice from there.
	insertAt := args.PrevLogIndex + 1
	for i, e := range args.Entries {
		idx := insertAt + i
		if idx <= rf.lastLogIndex() {
			if rf.entryAt(idx).Term != e.Term {
				rf.log = rf.log[:idx]
				rf.log = append(rf.log, args.Entries[i:]...)
				break
			}
			continue
		}
		rf.log = append(rf.log, args.Entries[i:]...)
		break
	}

	if err := rf.persist(); err != nil {
		logging.L.Infof("raft: persist after append-entries failed: %v", err)
	}

	if args.LeaderCommit > rf.commitIndex {
		newCommit := args.LeaderCommit
		if rf.lastLogIndex() < newCommit {
			newCommit = rf.lastLogIndex()
		}
		rf.commitIndex = newCommit
		rf.applyCond.Broadcast()
	}

	reply.Success = true
	return reply
}
