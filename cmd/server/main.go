package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kvserver/redis/internal/config"
	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/server"
)

func main() {
	// Parse command-line flags. Flags override whatever the config file sets
	// for the options they cover; everything else comes from the file (or
	// its built-in defaults).
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	port := flag.Int("port", 0, "Port to listen on (overrides config file)")
	host := flag.String("host", "", "Host to bind to (overrides config file)")
	replicationRole := flag.String("replication-role", "", "Replication role (master/replica)")
	replicationMasterHost := flag.String("replication-master-host", "", "Master host for replica")
	replicationMasterPort := flag.Int("replication-master-port", 0, "Master port for replica")
	replicaPriority := flag.Int("replica-priority", 0, "Replica priority for failover")
	raftEnabled := flag.Bool("raft-enabled", false, "Run in multi-node Raft consensus mode")
	raftAddr := flag.String("raft-addr", "", "This node's Raft RPC listen address (host:port)")
	raftPeers := flag.String("raft-peers", "", "Comma-separated \"id@host:port\" list of the other Raft nodes")
	raftDataDir := flag.String("raft-data-dir", "", "Directory holding this node's .raftlog/.raftstate files")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		logging.L.Fatalf("failed to load config: %v", err)
	}

	if *host != "" {
		fileCfg.Host = *host
	}
	if *port != 0 {
		fileCfg.Port = *port
	}
	if *replicationRole != "" {
		fileCfg.ReplicationRole = *replicationRole
	}
	if *replicationMasterHost != "" {
		fileCfg.ReplicationMasterHost = *replicationMasterHost
	}
	if *replicationMasterPort != 0 {
		fileCfg.ReplicationMasterPort = *replicationMasterPort
	}
	if *replicaPriority != 0 {
		fileCfg.ReplicaPriority = *replicaPriority
	}
	if *raftEnabled {
		fileCfg.RaftEnabled = true
	}
	if *raftAddr != "" {
		fileCfg.RaftAddr = *raftAddr
	}
	if *raftPeers != "" {
		fileCfg.RaftPeers = strings.Split(*raftPeers, ",")
	}
	if *raftDataDir != "" {
		fileCfg.RaftDataDir = *raftDataDir
	}

	cfg, err := fileCfg.ToServerConfig()
	if err != nil {
		logging.L.Fatalf("invalid config: %v", err)
	}
	cfg.MaxConnections = 10000
	cfg.ReadBufferSize = 4096
	cfg.WriteBufferSize = 4096
	cfg.MaxPipelineCommands = 1000
	cfg.SlowLogThreshold = 10 * time.Millisecond
	cfg.CommandTimeout = 30 * time.Second
	cfg.ReadTimeout = 60 * time.Second
	cfg.PipelineTimeout = 1 * time.Second

	srv := server.NewRedisServer(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logging.L.Info("Shutting down server...")
		cancel()
		srv.Shutdown()
	}()

	logging.L.Infof("Starting Redis server on %s:%d", cfg.Host, cfg.Port)
	if err := srv.Start(ctx); err != nil {
		logging.L.Fatalf("Server failed: %v", err)
	}
}
