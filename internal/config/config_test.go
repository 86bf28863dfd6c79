package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/redis/internal/aof"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redis.toml")
	contents := `
host = "10.0.0.5"
port = 7000
database-count = 4
aof-enabled = false
aof-sync-policy = "ALWAYS"
rdb-file = "snapshot.rdb"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5", cfg.Host)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 4, cfg.DatabaseCount)
	require.False(t, cfg.AOFEnabled)
	require.Equal(t, "ALWAYS", cfg.AOFSyncPolicy)
	require.Equal(t, "snapshot.rdb", cfg.RDBFile)
}

func TestToServerConfigRejectsUnknownSyncPolicy(t *testing.T) {
	cfg := Defaults()
	cfg.AOFSyncPolicy = "SOMETIMES"

	_, err := cfg.ToServerConfig()
	require.Error(t, err)
}

func TestToServerConfigRejectsUnknownEvictionPolicy(t *testing.T) {
	cfg := Defaults()
	cfg.EvictionPolicy = "volatile-ttl"

	_, err := cfg.ToServerConfig()
	require.Error(t, err)
}

func TestToServerConfigAppliesMaxMemoryAndEviction(t *testing.T) {
	cfg := Defaults()
	cfg.MaxMemory = 256 << 20
	cfg.EvictionPolicy = "allkeys-lru"

	srvCfg, err := cfg.ToServerConfig()
	require.NoError(t, err)
	require.Equal(t, int64(256<<20), srvCfg.MaxMemory)
	require.Equal(t, "allkeys-lru", srvCfg.EvictionPolicy)
}

func TestToServerConfigRejectsRaftEnabledWithoutAddr(t *testing.T) {
	cfg := Defaults()
	cfg.RaftEnabled = true

	_, err := cfg.ToServerConfig()
	require.Error(t, err)
}

func TestToServerConfigAppliesRaftOptions(t *testing.T) {
	cfg := Defaults()
	cfg.RaftEnabled = true
	cfg.RaftAddr = "127.0.0.1:7400"
	cfg.RaftPeers = []string{"n2@127.0.0.1:7401", "127.0.0.1:7402"}
	cfg.RaftDataDir = "/tmp/raft-data"

	srvCfg, err := cfg.ToServerConfig()
	require.NoError(t, err)
	require.True(t, srvCfg.RaftEnabled)
	require.Equal(t, "127.0.0.1:7400", srvCfg.RaftAddr)
	require.Equal(t, []string{"n2@127.0.0.1:7401", "127.0.0.1:7402"}, srvCfg.RaftPeers)
	require.Equal(t, "/tmp/raft-data", srvCfg.RaftDataDir)
}

func TestToServerConfigAppliesRecognizedOptions(t *testing.T) {
	fileCfg := Defaults()
	fileCfg.Host = "192.168.1.1"
	fileCfg.Port = 6400
	fileCfg.DatabaseCount = 8
	fileCfg.AOFSyncPolicy = "ALWAYS"
	fileCfg.RDBEnabled = false

	srvCfg, err := fileCfg.ToServerConfig()
	require.NoError(t, err)
	require.Equal(t, "192.168.1.1", srvCfg.Host)
	require.Equal(t, 6400, srvCfg.Port)
	require.Equal(t, 8, srvCfg.DatabaseCount)
	require.Equal(t, aof.SyncAlways, srvCfg.AOF.SyncPolicy)
	require.Equal(t, 0, srvCfg.RDBSavePoint.Seconds)
	require.Equal(t, 0, srvCfg.RDBSavePoint.Changes)
}
