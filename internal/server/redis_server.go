package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvserver/redis/internal/aof"
	"github.com/kvserver/redis/internal/dynstr"
	"github.com/kvserver/redis/internal/handler"
	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/processor"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/raft"
	"github.com/kvserver/redis/internal/rdb"
	"github.com/kvserver/redis/internal/replication"
	"github.com/kvserver/redis/internal/storage"
	"golang.org/x/sync/singleflight"
)

// RedisServer handles Redis protocol and data operations
type RedisServer struct {
	config          *Config
	listener        net.Listener
	processor       *processor.Processor
	handler         *handler.CommandHandler
	aofWriter       *aof.Writer
	replicationMgr  *replication.ReplicationManager
	connections     sync.Map
	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64
	wg              sync.WaitGroup
	shutdownChan    chan struct{}
	mu              sync.RWMutex
	isShutdown      bool

	// RDB background save tracking
	changesSinceLastSave atomic.Int64
	lastSaveTime         time.Time
	saveMu               sync.Mutex
	rdbTicker            *time.Ticker
	rdbStopChan          chan struct{}
	saveGroup            singleflight.Group

	// Raft consensus (multi-node mode; nil unless cfg.RaftEnabled)
	raftNode     *raft.Raft
	raftListener net.Listener
	raftPending  sync.Map // log index (int) -> chan []byte, one per in-flight proposed write
}

// NewRedisServer creates a new Redis server instance
func NewRedisServer(cfg *Config) *RedisServer {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dbCount := cfg.DatabaseCount
	if dbCount <= 0 {
		dbCount = 16
	}
	keyspace, err := storage.NewKeyspace(dbCount)
	if err != nil {
		logging.L.Fatalf("failed to initialize keyspace: %v", err)
	}

	proc := processor.NewProcessor(keyspace)

	// Create AOF writer
	var aofWriter *aof.Writer
	if cfg.AOF.Enabled {
		aofWriter, err = aof.NewWriter(cfg.AOF)
		if err != nil {
			logging.L.Infof("Warning: Failed to create AOF writer: %v", err)
			logging.L.Infof("Continuing without AOF persistence")
			aofWriter = nil
		} else {
			logging.L.Infof("AOF enabled: %s (sync: %s)", cfg.AOF.Filepath, syncPolicyName(cfg.AOF.SyncPolicy))
		}
	}

	// Initialize replication manager
	var replRole replication.Role
	if cfg.ReplicationRole == "replica" || cfg.ReplicationRole == "slave" {
		replRole = replication.RoleReplica
	} else {
		replRole = replication.RoleMaster
	}
	replMgr := replication.NewReplicationManager(replRole)
	logging.L.Infof("Replication mode: %s", replRole)

	// Set replica priority from config
	if replRole == replication.RoleReplica {
		replMgr.SetPriority(cfg.ReplicaPriority)
		logging.L.Infof("Replica priority set to: %d", cfg.ReplicaPriority)
	}

	// Set store getter for RDB generation
	replMgr.SetStoreGetter(func() interface{} {
		snap := proc.GetDataSnapshot()
		defer proc.ReleaseSnapshot()
		return snap.Databases
	})

	// Build handler config from server config
	handlerConfig := handler.HandlerConfig{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		Pipeline: handler.PipelineConfig{
			MaxCommands:     cfg.MaxPipelineCommands,
			SlowThreshold:   cfg.SlowLogThreshold,
			CommandTimeout:  cfg.CommandTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			PipelineTimeout: cfg.PipelineTimeout,
		},
	}
	cmdHandler := handler.NewCommandHandler(proc, handlerConfig, aofWriter, replMgr, cfg.Port)
	cmdHandler.SetServerMeta(handler.ServerMeta{
		StartTime:       time.Now(),
		DatabaseCount:   cfg.DatabaseCount,
		MaxMemory:       cfg.MaxMemory,
		EvictionPolicy:  cfg.EvictionPolicy,
		RDBFilepath:     cfg.RDBFilepath,
		ReplicationRole: cfg.ReplicationRole,
	})

	// maxmemory enforcement is wired by SetServerMeta above, via
	// CommandHandler.applyEvictionPolicy: the dispatcher's periodic cleanup
	// pass samples resident memory through the handler's metrics collector
	// and, once over the limit under allkeys-lru, evicts keys from the
	// dispatcher goroutine itself (no cross-goroutine access to storage's
	// unsynchronized maps). Each eviction replays as a DEL through AOF and
	// the replication backlog, exactly like a client-issued delete.

	s := &RedisServer{
		config:         cfg,
		processor:      proc,
		handler:        cmdHandler,
		aofWriter:      aofWriter,
		replicationMgr: replMgr,
		shutdownChan:   make(chan struct{}),
		lastSaveTime:   time.Now(),
		rdbStopChan:    make(chan struct{}),
	}

	// Set change callback for RDB auto-save tracking
	cmdHandler.SetChangeCallback(func() {
		s.IncrementChanges()
	})

	// Start the Raft consensus node, if configured: leader election, log
	// replication, and persistence all run, GetState/LeaderHint/RoleAndTerm
	// feed INFO's Raft section, and client writes route through
	// proposeRaftWrite (set as the handler's Raft proposer below) instead of
	// applying directly — see DESIGN.md's internal/raft entry.
	if cfg.RaftEnabled {
		peers := parseRaftPeers(cfg.RaftPeers)
		applyCh := make(chan raft.ApplyMsg, 256)
		rf, err := raft.NewRaft(raft.Config{
			ID:      cfg.RaftAddr, // this node's listen address doubles as its Raft ID
			Addr:    cfg.RaftAddr,
			Peers:   peers,
			DataDir: cfg.RaftDataDir,
			ApplyCh: applyCh,
		}, raft.NewNetTransport())
		if err != nil {
			logging.L.Fatalf("failed to start raft node: %v", err)
		}
		listener, err := raft.Serve(cfg.RaftAddr, rf)
		if err != nil {
			logging.L.Fatalf("failed to listen for raft RPCs on %s: %v", cfg.RaftAddr, err)
		}
		s.raftNode = rf
		s.raftListener = listener
		cmdHandler.SetRaftNode(rf)
		cmdHandler.SetRaftProposer(func(cmd *protocol.Command) []byte {
			return s.proposeRaftWrite(cmd)
		})
		logging.L.Infof("Raft enabled: listening on %s with %d peer(s)", cfg.RaftAddr, len(peers))

		// The apply loop is the only place committed entries ever run: it
		// delivers each command's actual reply to whichever local call (if
		// any) is still blocked in proposeRaftWrite waiting on that index,
		// and logs every applied write to this node's own AOF so a restart
		// replays state without needing the Raft log to still exist.
		go func() {
			for msg := range applyCh {
				response := cmdHandler.ExecuteReplicatedCommand(&protocol.Command{Args: msg.Command})
				if len(response) > 0 && response[0] == '-' {
					logging.L.Infof("raft: apply of committed entry %d failed: %s", msg.CommandIndex, string(response))
				} else if len(msg.Command) > 0 {
					cmdHandler.LogToAOF(strings.ToUpper(msg.Command[0]), msg.Command[1:])
				}

				if waiter, ok := s.raftPending.LoadAndDelete(msg.CommandIndex); ok {
					select {
					case waiter.(chan []byte) <- response:
					default:
					}
				}
			}
		}()
	}

	// Set command executor for replica (to execute commands received from master)
	if replRole == replication.RoleReplica {
		replMgr.SetCommandExecutor(func(args []string) error {
			cmd := &protocol.Command{Args: args}
			// Use ExecuteReplicatedCommand which bypasses read-only check
			response := cmdHandler.ExecuteReplicatedCommand(cmd)
			// Check if response is an error
			if len(response) > 0 && response[0] == '-' {
				return fmt.Errorf("command failed: %s", string(response))
			}
			return nil
		})
	}

	// Set listening port for replication
	replMgr.SetListeningPort(cfg.Port)

	// Load persistence files (AOF takes priority, fallback to RDB)
	if cfg.AOF.Enabled {
		if err := s.loadAOF(); err != nil {
			logging.L.Infof("Warning: Failed to load AOF: %v", err)
			// Try RDB as fallback
			if err := s.loadRDB(); err != nil {
				logging.L.Infof("Warning: Failed to load RDB: %v", err)
				logging.L.Infof("Starting with empty database")
			} else {
				logging.L.Infof("Loaded data from RDB file")
			}
		}
	} else {
		// AOF disabled, try loading from RDB
		if err := s.loadRDB(); err != nil {
			logging.L.Infof("Warning: Failed to load RDB: %v", err)
			logging.L.Infof("Starting with empty database")
		}
	}

	// Start background RDB auto-save
	if cfg.RDBSavePoint.Seconds > 0 && cfg.RDBSavePoint.Changes > 0 {
		s.startBackgroundRDBSave()
	}

	// Connect to master if this is a replica
	if cfg.ReplicationRole == "replica" || cfg.ReplicationRole == "slave" {
		if cfg.ReplicationMasterHost != "" && cfg.ReplicationMasterPort > 0 {
			logging.L.Infof("Connecting to master %s:%d...", cfg.ReplicationMasterHost, cfg.ReplicationMasterPort)
			if err := replMgr.ConnectToMaster(cfg.ReplicationMasterHost, cfg.ReplicationMasterPort); err != nil {
				logging.L.Infof("Warning: Failed to connect to master: %v", err)
				logging.L.Infof("Will continue as disconnected replica")
			} else {
				logging.L.Infof("Successfully initiated connection to master")
			}
		}
	}

	return s
}

// syncPolicyName returns a human-readable name for the sync policy
func syncPolicyName(policy aof.SyncPolicy) string {
	return policy.String()
}

// parseRaftPeers parses "id@host:port" entries (one per OTHER node in the
// cluster) into raft.Peer values. A bare "host:port" with no "@" uses the
// address as its own ID too, matching how this node's own ID is derived
// from cfg.RaftAddr.
func parseRaftPeers(entries []string) []raft.Peer {
	peers := make([]raft.Peer, 0, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if id, addr, ok := strings.Cut(entry, "@"); ok {
			peers = append(peers, raft.Peer{ID: id, Addr: addr})
		} else {
			peers = append(peers, raft.Peer{ID: entry, Addr: entry})
		}
	}
	return peers
}

// raftApplyTimeout bounds how long a client write waits for its proposed
// entry to commit before giving up and reporting a timeout. Real Redis
// Cluster has no equivalent fixed bound, but a blocked client connection has
// to give up eventually if the cluster loses quorum mid-proposal.
const raftApplyTimeout = 5 * time.Second

// proposeRaftWrite is the handler's Raft proposer (see
// handler.SetRaftProposer): it appends cmd to the replicated log via
// raftNode.Start, then blocks until the apply loop reports that entry
// committed and ran, and returns that run's actual reply. A non-leader
// rejects the write immediately with a redirect instead of proposing.
func (s *RedisServer) proposeRaftWrite(cmd *protocol.Command) []byte {
	index, _, err := s.raftNode.Start(cmd.Args)
	if err != nil {
		if errors.Is(err, raft.ErrNotLeader) {
			if hint := s.raftNode.LeaderHint(); hint != "" {
				return protocol.EncodeError(fmt.Sprintf("RAFTREDIRECT %s", hint))
			}
			return protocol.EncodeError("CLUSTERDOWN no raft leader known")
		}
		return protocol.EncodeError(fmt.Sprintf("ERR raft propose failed: %v", err))
	}

	waitCh := make(chan []byte, 1)
	s.raftPending.Store(index, waitCh)
	defer s.raftPending.Delete(index)

	select {
	case response := <-waitCh:
		return response
	case <-time.After(raftApplyTimeout):
		return protocol.EncodeError("ERR timed out waiting for raft commit")
	}
}

// loadAOF loads and replays commands from the AOF file
func (s *RedisServer) loadAOF() error {
	startTime := time.Now()

	reader, err := aof.NewReader(s.config.AOF.Filepath)
	if err != nil {
		return fmt.Errorf("failed to create AOF reader: %w", err)
	}
	if reader == nil {
		// File doesn't exist - first startup
		logging.L.Info("No AOF file found, starting with empty database")
		return nil
	}
	defer reader.Close()

	logging.L.Infof("Loading AOF file: %s", s.config.AOF.Filepath)

	// Load all commands from AOF file
	commands, err := reader.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load AOF commands: %w", err)
	}

	// Replay against a single synthetic client so a replayed SELECT carries
	// over to the commands that follow it, exactly as it would for a real
	// connection issuing the same sequence.
	replayClient := &handler.Client{ID: 0, DB: 0}

	errorCount := 0
	for _, args := range commands {
		if err := s.executeCommand(replayClient, args); err != nil {
			logging.L.Infof("AOF replay error for command %v: %v", args, err)
			errorCount++
			// Continue loading despite errors
		}
	}

	duration := time.Since(startTime)
	logging.L.Infof("AOF loaded: %d commands replayed in %v", len(commands), duration)
	if errorCount > 0 {
		logging.L.Infof("Warning: %d errors during AOF replay", errorCount)
	}

	return nil
}

// executeCommand executes a single command during AOF replay
func (s *RedisServer) executeCommand(client *handler.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := &protocol.Command{Args: args}

	response := s.handler.ExecuteCommand(client, cmd)

	// Check if result indicates an error
	if len(response) > 0 && response[0] == '-' {
		return fmt.Errorf("command failed: %s", string(response))
	}

	return nil
}

// Start starts the Redis server
func (s *RedisServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	s.listener = listener
	logging.L.Infof("Redis server listening on %s", addr)

	go s.acceptConnections(ctx)

	<-ctx.Done()
	return nil
}

func (s *RedisServer) acceptConnections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				s.mu.RLock()
				if s.isShutdown {
					s.mu.RUnlock()
					return
				}
				s.mu.RUnlock()
				logging.L.Infof("Error accepting connection: %v", err)
				continue
			}

			if s.activeConnCount.Load() >= int64(s.config.MaxConnections) {
				logging.L.Infof("Max connections reached, rejecting connection from %s", conn.RemoteAddr())
				conn.Close()
				continue
			}

			s.wg.Add(1)
			go s.handleConnection(ctx, conn)
		}
	}
}

func (s *RedisServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	connID := s.connIDCounter.Add(1)
	s.activeConnCount.Add(1)
	defer s.activeConnCount.Add(-1)

	s.connections.Store(connID, conn)
	defer s.connections.Delete(connID)
	defer conn.Close()

	startTime := time.Now()

	client := &handler.Client{
		ID:   connID,
		Conn: conn,
	}

	s.handler.Handle(ctx, client)

	// Only log connections that lived longer than 2 seconds (persistent connections)
	// This filters out Sentinel health check spam
	duration := time.Since(startTime)
	if duration > 2*time.Second {
		logging.L.Infof("Connection [%d] from %s closed after %v", connID, conn.RemoteAddr(), duration.Round(time.Second))
	}
}

// Shutdown gracefully shuts down the server
func (s *RedisServer) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.mu.Unlock()

	logging.L.Info("Initiating graceful shutdown...")

	// Stop RDB auto-save ticker
	if s.rdbTicker != nil {
		s.rdbTicker.Stop()
		close(s.rdbStopChan)
	}

	close(s.shutdownChan)

	if s.listener != nil {
		s.listener.Close()
	}

	// Close all connections
	s.connections.Range(func(key, value interface{}) bool {
		if conn, ok := value.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.L.Info("All connections closed gracefully")
	case <-time.After(5 * time.Second):
		logging.L.Info("Shutdown timeout reached, forcing exit")
	}

	// Close AOF writer
	if s.aofWriter != nil {
		logging.L.Info("Closing AOF writer...")
		if err := s.aofWriter.Close(); err != nil {
			logging.L.Infof("Error closing AOF writer: %v", err)
		} else {
			logging.L.Info("AOF writer closed successfully")
		}
	}

	if s.processor != nil {
		s.processor.Shutdown()
	}

	if s.replicationMgr != nil {
		s.replicationMgr.Shutdown()
	}

	if s.raftNode != nil {
		s.raftNode.Stop()
	}
	if s.raftListener != nil {
		s.raftListener.Close()
	}

	logging.L.Info("Redis server shutdown complete")
}

// loadRDB restores the keyspace from an RDB dump file, if one exists.
func (s *RedisServer) loadRDB() error {
	startTime := time.Now()

	reader, err := rdb.NewReader(s.config.RDBFilepath)
	if err != nil {
		return fmt.Errorf("failed to create RDB reader: %w", err)
	}
	if reader == nil {
		logging.L.Info("No RDB file found, starting with empty database")
		return nil
	}
	defer reader.Close()

	logging.L.Infof("Loading RDB file: %s", s.config.RDBFilepath)

	entries, err := reader.Load()
	if err != nil {
		return fmt.Errorf("failed to load RDB entries: %w", err)
	}

	keyspace := s.processor.Keyspace()
	nowMs := time.Now().UnixMilli()
	restored := 0
	for _, entry := range entries {
		db, err := keyspace.DB(entry.DB)
		if err != nil {
			logging.L.Infof("RDB restore error for key %q: %v", entry.Key, err)
			continue
		}

		expiresAtMs := storage.NoExpiry
		if entry.Expiration != nil {
			expiresAtMs = entry.Expiration.UnixMilli()
			if expiresAtMs <= nowMs {
				// Already expired, skip restoring it entirely.
				continue
			}
		}

		switch entry.Type {
		case 0: // string
			value, ok := entry.Value.(string)
			if !ok {
				continue
			}
			db.Set(entry.Key, dynstr.NewFromString(value), expiresAtMs)
		case 1: // list
			items, ok := entry.Value.([]string)
			if !ok {
				continue
			}
			if _, err := db.RPush(entry.Key, items...); err != nil {
				logging.L.Infof("RDB restore error for list %q: %v", entry.Key, err)
				continue
			}
		case 4: // hash (flat field,value,... pairs)
			pairs, ok := entry.Value.([]string)
			if !ok {
				continue
			}
			if _, err := db.HSet(entry.Key, pairs...); err != nil {
				logging.L.Infof("RDB restore error for hash %q: %v", entry.Key, err)
				continue
			}
		case 2: // set
			members, ok := entry.Value.([]string)
			if !ok {
				continue
			}
			db.SAdd(entry.Key, members...)
		case 3: // zset
			members, ok := entry.Value.([]rdb.ZSetEntry)
			if !ok {
				continue
			}
			zmembers := make([]storage.ZSetMember, len(members))
			for i, m := range members {
				zmembers[i] = storage.ZSetMember{Member: m.Member, Score: m.Score}
			}
			db.ZAdd(entry.Key, zmembers)
		default:
			logging.L.Infof("RDB restore: unknown type byte %d for key %q, skipping", entry.Type, entry.Key)
			continue
		}

		if expiresAtMs != storage.NoExpiry {
			db.Expire(entry.Key, expiresAtMs, nowMs)
		}
		restored++
	}

	duration := time.Since(startTime)
	logging.L.Infof("RDB loaded: %d keys restored in %v", restored, duration)

	return nil
}
