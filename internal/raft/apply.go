package raft

// applier pushes newly committed entries onto ApplyCh in order, exactly
// once each, mirroring the dedicated-applier-goroutine split from the
// lab Raft this package is grounded on — letting commitIndex advance
// (under the replication goroutines) independently of how fast the
// consumer drains ApplyCh.
func (rf *Raft) applier() {
	for {
		rf.mu.Lock()
		for rf.lastApplied >= rf.commitIndex {
			if rf.dead {
				rf.mu.Unlock()
				return
			}
			rf.applyCond.Wait()
			if rf.dead {
				rf.mu.Unlock()
				return
			}
		}
		commitIndex, lastApplied := rf.commitIndex, rf.lastApplied
		entries := make([]Entry, commitIndex-lastApplied)
		copy(entries, rf.log[lastApplied+1:commitIndex+1])
		rf.mu.Unlock()

		for _, e := range entries {
			if rf.applyCh == nil {
				continue
			}
			rf.applyCh <- ApplyMsg{
				CommandIndex: e.Index,
				CommandTerm:  e.Term,
				Command:      e.Command,
			}
		}

		rf.mu.Lock()
		if commitIndex > rf.lastApplied {
			rf.lastApplied = commitIndex
		}
		rf.mu.Unlock()
	}
}

// ID returns this node's UUID.
func (rf *Raft) ID() string {
	return rf.id
}
