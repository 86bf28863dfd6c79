package storage

import "fmt"

// DefaultDatabaseCount is the default number of isolated keyspaces a fresh
// Keyspace exposes, matching stock Redis's 16.
const DefaultDatabaseCount = 16

// Keyspace is the full N-indexed array of isolated Databases a server
// hosts. Selecting a database (SELECT) is per-connection state tracked by
// the caller (see handler.Client.DB) — Keyspace itself holds no notion of
// a "current" database, precisely to avoid the global-mutable-selection bug
// the single-process Redis-like toy implementations are prone to.
type Keyspace struct {
	databases []*Database
}

// NewKeyspace allocates count isolated, independent databases.
func NewKeyspace(count int) (*Keyspace, error) {
	if count <= 0 {
		return nil, fmt.Errorf("database count must be positive, got %d", count)
	}
	dbs := make([]*Database, count)
	for i := range dbs {
		dbs[i] = NewDatabase()
	}
	return &Keyspace{databases: dbs}, nil
}

// Count returns the number of databases in the keyspace.
func (k *Keyspace) Count() int { return len(k.databases) }

// DB returns the database at the given index, or an error if out of range.
func (k *Keyspace) DB(index int) (*Database, error) {
	if index < 0 || index >= len(k.databases) {
		return nil, ErrNoSuchDatabase
	}
	return k.databases[index], nil
}

// FlushAll clears every database in the keyspace.
func (k *Keyspace) FlushAll() {
	for _, db := range k.databases {
		db.Flush()
	}
}

// All returns every database, in index order, for persistence and
// replication snapshots that must cover the whole keyspace.
func (k *Keyspace) All() []*Database {
	return k.databases
}
