// Package config loads the server's validated configuration record from a
// TOML file on disk, falling back to in-code defaults for anything the file
// omits.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kvserver/redis/internal/aof"
	"github.com/kvserver/redis/internal/server"
)

// FileConfig mirrors the recognized options table: host/port, database
// count, AOF/RDB persistence toggles, max-memory, and replication backlog
// sizing. Every field carries an explicit toml tag naming its option.
type FileConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	DatabaseCount  int    `toml:"database-count"`
	MaxMemory      int64  `toml:"max-memory"`
	EvictionPolicy string `toml:"eviction-policy"`

	AOFEnabled    bool   `toml:"aof-enabled"`
	AOFFile       string `toml:"aof-file"`
	AOFSyncPolicy string `toml:"aof-sync-policy"`

	RDBEnabled bool   `toml:"rdb-enabled"`
	RDBFile    string `toml:"rdb-file"`

	ReplicationEnabled      bool   `toml:"replication-enabled"`
	ReplicationBufferSize   int    `toml:"replication-buffer-size"`
	ReplicationRole         string `toml:"replication-role"`
	ReplicationMasterHost   string `toml:"replication-master-host"`
	ReplicationMasterPort   int    `toml:"replication-master-port"`
	ReplicaPriority         int    `toml:"replica-priority"`

	RaftEnabled bool     `toml:"raft-enabled"`
	RaftAddr    string   `toml:"raft-addr"`
	RaftPeers   []string `toml:"raft-peers"`
	RaftDataDir string   `toml:"raft-data-dir"`
}

// Defaults returns the built-in option values used whenever a TOML file is
// absent or leaves a field unset.
func Defaults() FileConfig {
	return FileConfig{
		Host:           "0.0.0.0",
		Port:           6379,
		DatabaseCount:  16,
		MaxMemory:      0,
		EvictionPolicy: "noeviction",

		AOFEnabled:    true,
		AOFFile:       "appendonly.aof",
		AOFSyncPolicy: "SMART",

		RDBEnabled: true,
		RDBFile:    "dump.rdb",

		ReplicationEnabled:    false,
		ReplicationBufferSize: 1 << 20, // 1 MiB backlog
		ReplicationRole:       "master",
		ReplicaPriority:       100,

		RaftEnabled: false,
		RaftDataDir: ".",
	}
}

// Load reads and decodes a TOML file at path into the default option set. A
// missing file is not an error; the defaults are returned unchanged.
func Load(path string) (FileConfig, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// ToServerConfig translates the recognized options into the server's runtime
// Config, applying defaults for anything the TOML record left at its zero
// value.
func (c FileConfig) ToServerConfig() (*server.Config, error) {
	syncPolicy, err := aof.ParseSyncPolicy(c.AOFSyncPolicy)
	if err != nil {
		return nil, err
	}

	cfg := server.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	if c.DatabaseCount > 0 {
		cfg.DatabaseCount = c.DatabaseCount
	}

	cfg.AOF.Enabled = c.AOFEnabled
	if c.AOFFile != "" {
		cfg.AOF.Filepath = c.AOFFile
	}
	cfg.AOF.SyncPolicy = syncPolicy

	if !c.RDBEnabled {
		// Disabling RDB entirely means never auto-saving; the BGSAVE
		// command still works against the configured path.
		cfg.RDBSavePoint.Seconds = 0
		cfg.RDBSavePoint.Changes = 0
	}
	if c.RDBFile != "" {
		cfg.RDBFilepath = c.RDBFile
	}

	cfg.ReplicationRole = c.ReplicationRole
	cfg.ReplicationMasterHost = c.ReplicationMasterHost
	cfg.ReplicationMasterPort = c.ReplicationMasterPort
	if c.ReplicaPriority > 0 {
		cfg.ReplicaPriority = c.ReplicaPriority
	}

	cfg.MaxMemory = c.MaxMemory
	switch c.EvictionPolicy {
	case "", "noeviction":
		cfg.EvictionPolicy = "noeviction"
	case "allkeys-lru":
		cfg.EvictionPolicy = "allkeys-lru"
	default:
		return nil, fmt.Errorf("unrecognized eviction-policy %q", c.EvictionPolicy)
	}

	cfg.RaftEnabled = c.RaftEnabled
	cfg.RaftAddr = c.RaftAddr
	cfg.RaftPeers = c.RaftPeers
	if c.RaftDataDir != "" {
		cfg.RaftDataDir = c.RaftDataDir
	}
	if cfg.RaftEnabled && cfg.RaftAddr == "" {
		return nil, fmt.Errorf("raft-enabled requires raft-addr")
	}

	return cfg, nil
}
