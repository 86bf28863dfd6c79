package processor

import "github.com/kvserver/redis/internal/storage"

// executeSnapshot creates a per-database snapshot of all data for AOF
// rewrite. The only filtering here is GetAllData skipping expired keys —
// command reconstruction happens in the background AOF rewriter, keeping
// the dispatcher goroutine fast.
func (p *Processor) executeSnapshot(cmd *Command) {
	cmd.Response <- p.snapshotAllDatabases()
}

// executeDataSnapshot returns the same per-database snapshot for RDB saves.
func (p *Processor) executeDataSnapshot(cmd *Command) {
	cmd.Response <- p.snapshotAllDatabases()
}

func (p *Processor) snapshotAllDatabases() *DataSnapshot {
	now := nowMs()
	databases := p.keyspace.All()
	out := make(map[int]map[string]*storage.Value, len(databases))
	for i, db := range databases {
		out[i] = db.GetAllData(now)
	}
	return &DataSnapshot{Databases: out}
}
