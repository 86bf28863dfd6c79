package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvserver/redis/internal/aof"
	"github.com/kvserver/redis/internal/logging"
	"github.com/kvserver/redis/internal/metrics"
	"github.com/kvserver/redis/internal/processor"
	"github.com/kvserver/redis/internal/protocol"
	"github.com/kvserver/redis/internal/replication"
)

// CommandFunc is a function type for command handlers. Every handler sees
// the issuing client so it can read/update per-connection state such as
// the currently SELECTed database.
type CommandFunc func(client *Client, cmd *protocol.Command) []byte

// Client holds per-connection state. DB is the index of the database the
// connection last SELECTed (0 by default) — deliberately kept here rather
// than on the shared Keyspace/Processor, so switching one connection's
// database never touches another's.
type Client struct {
	ID   int64
	Conn net.Conn
	DB   int

	// Set once a connection completes a PSYNC handshake; empty for
	// ordinary client connections.
	ReplicaID            string
	ReplicaListeningPort int
}

// HandlerConfig holds all handler configuration
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	Pipeline        PipelineConfig
}

// DefaultHandlerConfig returns default handler configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Pipeline: PipelineConfig{
			MaxCommands:     1000,
			SlowThreshold:   10 * time.Millisecond,
			CommandTimeout:  5 * time.Second,
			ReadTimeout:     5 * time.Second,
			PipelineTimeout: 1 * time.Millisecond,
		},
	}
}

// ServerMeta carries the handful of top-level server settings that INFO and
// CONFIG GET/SET need to report or mutate, without the handler package
// importing internal/server (which already imports handler).
type ServerMeta struct {
	StartTime       time.Time
	DatabaseCount   int
	MaxMemory       int64
	EvictionPolicy  string
	RDBFilepath     string
	ReplicationRole string
}

type CommandHandler struct {
	processor         *processor.Processor
	readBufferSize    int
	writeBufferSize   int
	commands          map[string]CommandFunc
	pipelineConfig    PipelineConfig
	aofWriter         *aof.Writer
	replicationMgr    interface{} // ReplicationManager interface (avoid circular import)
	raftNode          interface{}                        // *raft.Raft, stored as interface{} for the same reason as replicationMgr
	raftPropose       func(cmd *protocol.Command) []byte // set in Raft mode; proposes a write and waits for commit
	serverPort        int         // Server's listening port
	onChange          func()      // Callback for tracking changes (for RDB auto-save)
	replicationClient *Client     // synthetic connection used to apply commands streamed from a primary

	meta       ServerMeta
	metrics    *metrics.Collector
	runID      string
	configMu   sync.RWMutex
	configVars map[string]string // live CONFIG GET/SET store, seeded from meta
}

func NewCommandHandler(proc *processor.Processor, config HandlerConfig, aofWriter *aof.Writer, replMgr interface{}, serverPort int) *CommandHandler {
	h := &CommandHandler{
		processor:         proc,
		readBufferSize:    config.ReadBufferSize,
		writeBufferSize:   config.WriteBufferSize,
		pipelineConfig:    config.Pipeline,
		aofWriter:         aofWriter,
		replicationMgr:    replMgr,
		serverPort:        serverPort,
		replicationClient: &Client{ID: 0, DB: 0},
		metrics:           metrics.NewCollector(),
		runID:             uuid.NewString(),
		configVars:        make(map[string]string),
	}
	h.registerCommands()
	return h
}

// SetServerMeta records the server-level settings INFO/CONFIG report, and
// seeds the live CONFIG store from them. Called once at startup.
func (h *CommandHandler) SetServerMeta(meta ServerMeta) {
	h.meta = meta
	h.configMu.Lock()
	defer h.configMu.Unlock()
	h.configVars["maxmemory"] = fmt.Sprintf("%d", meta.MaxMemory)
	h.configVars["maxmemory-policy"] = meta.EvictionPolicy
	h.configVars["databases"] = fmt.Sprintf("%d", meta.DatabaseCount)
	h.configVars["dbfilename"] = meta.RDBFilepath
	h.configVars["appendonly"] = boolStr(h.aofWriter != nil)
	h.applyEvictionPolicy()
}

// applyEvictionPolicy (re-)installs the processor's maxmemory enforcement
// from this handler's current meta, so a runtime CONFIG SET of maxmemory
// or maxmemory-policy takes effect immediately instead of only updating
// what CONFIG GET echoes back.
func (h *CommandHandler) applyEvictionPolicy() {
	h.processor.SetEvictionPolicy(h.meta.MaxMemory, h.meta.EvictionPolicy, h.MemoryUsageBytes, func(key string) {
		h.LogToAOF("DEL", []string{key})
		if replMgr, ok := h.replicationMgr.(*replication.ReplicationManager); ok {
			replMgr.PropagateCommand([]string{"DEL", key})
		}
	})
}

// SetRaftNode records the node consensus uses in multi-node mode, for INFO
// to report role/term/leader hint. A nil node (the default) means Raft mode
// is off and INFO omits the section entirely.
func (h *CommandHandler) SetRaftNode(rf interface{}) {
	h.raftNode = rf
}

// SetRaftProposer installs the function executeCommand and executeWithAOF
// use to route write commands through consensus instead of applying them
// locally. Leaving it nil (the default, non-Raft mode) means writes apply
// directly, exactly as before Raft support existed.
func (h *CommandHandler) SetRaftProposer(propose func(cmd *protocol.Command) []byte) {
	h.raftPropose = propose
}

// MemoryUsageBytes reports this process's current resident memory, used by
// applyEvictionPolicy to drive the processor's maxmemory eviction check and
// by deniedByOOM for the noeviction reject path.
func (h *CommandHandler) MemoryUsageBytes() uint64 {
	return h.metrics.Snapshot().UsedMemoryBytes
}

// deniedByOOM reports whether command should be rejected outright because
// memory is over the configured maxmemory limit under the noeviction
// policy. allkeys-lru never denies here — it relies on
// processor.evictIfOverLimit to make room instead of rejecting the write.
func (h *CommandHandler) deniedByOOM(command string) bool {
	if h.meta.MaxMemory <= 0 || h.meta.EvictionPolicy != "noeviction" {
		return false
	}
	if !IsWriteCommand(command) {
		return false
	}
	return h.MemoryUsageBytes() > uint64(h.meta.MaxMemory)
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// SetChangeCallback sets the callback function to track write operations
// This is used for RDB auto-save to track how many keys have changed
func (h *CommandHandler) SetChangeCallback(callback func()) {
	h.onChange = callback
}

// LogToAOF logs a write command to the AOF file
// Called after successful command execution
func (h *CommandHandler) LogToAOF(command string, args []string) {
	if h.aofWriter == nil {
		return
	}

	// Only log write commands
	if !aof.IsWriteCommand(command) {
		return
	}

	// Track change for RDB auto-save
	if h.onChange != nil {
		h.onChange()
	}

	// Build full command args (command + arguments)
	fullArgs := make([]string, 0, len(args)+1)
	fullArgs = append(fullArgs, command)
	fullArgs = append(fullArgs, args...)

	// Write to AOF (errors are logged but don't fail the command)
	if err := h.aofWriter.WriteCommand(fullArgs); err != nil {
		logging.L.Infof("AOF write error: %v", err)
	}
}

// registerCommands initializes the command map with all supported commands
func (h *CommandHandler) registerCommands() {
	h.commands = make(map[string]CommandFunc)

	// String/Basic commands
	h.registerStringCommands()

	// List commands
	h.registerListCommands()

	// Hash commands
	h.registerHashCommands()

	// Set commands
	h.registerSetCommands()

	// Sorted Set commands
	h.registerZSetCommands()

	// Admin/Debug commands
	h.registerAdminCommands()
}

// registerAdminCommands registers admin and debug commands
func (h *CommandHandler) registerAdminCommands() {
	h.commands["BGREWRITEAOF"] = h.handleBGRewriteAOF
	h.commands["BGSAVE"] = h.handleBGSave
	h.commands["REPLCONF"] = h.handleREPLCONF
	h.commands["PSYNC"] = h.handlePSYNC
	h.commands["INFO"] = h.handleINFO
	h.commands["CONFIG"] = h.handleCONFIG
	h.commands["WAIT"] = h.handleWait
	// REPLICAOF/SLAVEOF (runtime role switch) are not implemented; replication
	// role is fixed at startup via server.Config.ReplicationRole.
}

// registerStringCommands registers all string/basic commands
func (h *CommandHandler) registerStringCommands() {
	h.commands["PING"] = h.handlePing
	h.commands["ECHO"] = h.handleEcho
	h.commands["SET"] = h.handleSet
	h.commands["SETEX"] = h.handleSetEx
	h.commands["GET"] = h.handleGet
	h.commands["APPEND"] = h.handleAppend
	h.commands["STRLEN"] = h.handleStrLen
	h.commands["GETRANGE"] = h.handleGetRange
	h.commands["DEL"] = h.handleDel
	h.commands["EXISTS"] = h.handleExists
	h.commands["TYPE"] = h.handleType
	h.commands["KEYS"] = h.handleKeys
	h.commands["SELECT"] = h.handleSelect
	h.commands["FLUSHDB"] = h.handleFlushDB
	h.commands["FLUSHALL"] = h.handleFlushAll
	h.commands["DBSIZE"] = h.handleDBSize
	h.commands["COMMAND"] = h.handleCommand
	h.commands["EXPIRE"] = h.handleExpire
	h.commands["PERSIST"] = h.handlePersist
	h.commands["TTL"] = h.handleTTL
	h.commands["INCR"] = h.handleIncr
	h.commands["INCRBY"] = h.handleIncrBy
	h.commands["INCRBYFLOAT"] = h.handleIncrByFloat
	h.commands["DECR"] = h.handleDecr
	h.commands["DECRBY"] = h.handleDecrBy
}

// registerListCommands registers all list commands
func (h *CommandHandler) registerListCommands() {
	h.commands["LPUSH"] = h.handleLPush
	h.commands["RPUSH"] = h.handleRPush
	h.commands["LPOP"] = h.handleLPop
	h.commands["RPOP"] = h.handleRPop
	h.commands["LLEN"] = h.handleLLen
	h.commands["LRANGE"] = h.handleLRange
	h.commands["LINDEX"] = h.handleLIndex
	h.commands["LSET"] = h.handleLSet
	h.commands["LREM"] = h.handleLRem
	h.commands["LTRIM"] = h.handleLTrim
	h.commands["LINSERT"] = h.handleLInsert
}

// registerHashCommands registers all hash commands
func (h *CommandHandler) registerHashCommands() {
	h.commands["HSET"] = h.handleHSet
	h.commands["HGET"] = h.handleHGet
	h.commands["HMGET"] = h.handleHMGet
	h.commands["HDEL"] = h.handleHDel
	h.commands["HEXISTS"] = h.handleHExists
	h.commands["HLEN"] = h.handleHLen
	h.commands["HKEYS"] = h.handleHKeys
	h.commands["HVALS"] = h.handleHVals
	h.commands["HGETALL"] = h.handleHGetAll
	h.commands["HSETNX"] = h.handleHSetNX
	h.commands["HINCRBY"] = h.handleHIncrBy
	h.commands["HINCRBYFLOAT"] = h.handleHIncrByFloat
}

// registerSetCommands registers all set commands
func (h *CommandHandler) registerSetCommands() {
	h.commands["SADD"] = h.handleSAdd
	h.commands["SREM"] = h.handleSRem
	h.commands["SISMEMBER"] = h.handleSIsMember
	h.commands["SMEMBERS"] = h.handleSMembers
	h.commands["SCARD"] = h.handleSCard
	h.commands["SPOP"] = h.handleSPop
	h.commands["SRANDMEMBER"] = h.handleSRandMember
	h.commands["SUNION"] = h.handleSUnion
	h.commands["SINTER"] = h.handleSInter
	h.commands["SDIFF"] = h.handleSDiff
	h.commands["SMOVE"] = h.handleSMove
	h.commands["SUNIONSTORE"] = h.handleSUnionStore
	h.commands["SINTERSTORE"] = h.handleSInterStore
	h.commands["SDIFFSTORE"] = h.handleSDiffStore
}

// registerZSetCommands registers all sorted set commands
func (h *CommandHandler) registerZSetCommands() {
	h.commands["ZADD"] = h.handleZAdd
	h.commands["ZREM"] = h.handleZRem
	h.commands["ZSCORE"] = h.handleZScore
	h.commands["ZRANK"] = h.handleZRank
	h.commands["ZREVRANK"] = h.handleZRevRank
	h.commands["ZCARD"] = h.handleZCard
	h.commands["ZRANGE"] = h.handleZRange
	h.commands["ZREVRANGE"] = h.handleZRevRange
	h.commands["ZRANGEBYSCORE"] = h.handleZRangeByScore
	h.commands["ZREVRANGEBYSCORE"] = h.handleZRevRangeByScore
	h.commands["ZINCRBY"] = h.handleZIncrBy
	h.commands["ZCOUNT"] = h.handleZCount
	h.commands["ZPOPMIN"] = h.handleZPopMin
	h.commands["ZPOPMAX"] = h.handleZPopMax
	h.commands["ZREMRANGEBYSCORE"] = h.handleZRemRangeByScore
	h.commands["ZREMRANGEBYRANK"] = h.handleZRemRangeByRank
}

func (h *CommandHandler) Handle(ctx context.Context, client *Client) {
	// Use pipeline handler for all connections
	h.HandlePipeline(ctx, client, h.pipelineConfig)
}

// HandleLegacy handles commands one at a time (non-pipelined, kept for reference)
func (h *CommandHandler) HandleLegacy(ctx context.Context, client *Client) {
	reader := bufio.NewReaderSize(client.Conn, h.readBufferSize)
	writer := bufio.NewWriterSize(client.Conn, h.writeBufferSize)

	// Use read timeout from pipeline config, default to 30s
	readTimeout := h.pipelineConfig.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Set read deadline to prevent blocking forever on idle connections
			client.Conn.SetReadDeadline(time.Now().Add(readTimeout))

			cmd, err := protocol.ParseCommand(reader)
			if err != nil {
				if err == io.EOF {
					return
				}
				logging.L.Infof("Error parsing command: %v", err)
				response := protocol.EncodeError(fmt.Sprintf("ERR %v", err))
				writer.Write(response)
				writer.Flush()
				continue
			}

			// Clear deadline for command execution
			client.Conn.SetReadDeadline(time.Time{})

			response := h.executeCommand(client, cmd)
			writer.Write(response)
			writer.Flush()
		}
	}
}

// dispatchLocal runs cmd straight through this node's command table with no
// further routing. Every caller that reaches this has already settled where
// the command came from: a replay of this node's own AOF, a command streamed
// from a replication primary, or a Raft entry the cluster already committed.
// None of those should be proposed again, so raftPropose is never consulted
// here.
func (h *CommandHandler) dispatchLocal(client *Client, cmd *protocol.Command) []byte {
	if cmd == nil || len(cmd.Args) == 0 {
		return protocol.EncodeError("ERR empty command")
	}

	command := strings.ToUpper(cmd.Args[0])

	if handler, exists := h.commands[command]; exists {
		return handler(client, cmd)
	}

	return protocol.EncodeError(fmt.Sprintf("ERR unknown command '%s'", command))
}

func (h *CommandHandler) executeCommand(client *Client, cmd *protocol.Command) []byte {
	if cmd == nil || len(cmd.Args) == 0 {
		return protocol.EncodeError("ERR empty command")
	}

	command := strings.ToUpper(cmd.Args[0])

	// Check if replica is trying to execute write command
	if h.isReplica() && IsWriteCommand(command) {
		return protocol.EncodeError("READONLY You can't write against a read only replica")
	}

	if h.deniedByOOM(command) {
		return protocol.EncodeError("OOM command not allowed when used memory > 'maxmemory'")
	}

	// In Raft mode, a write command is proposed to the cluster rather than
	// applied straight away: raftPropose blocks until the entry commits (or
	// redirects/errors if this node isn't leader) and its return value IS
	// the command's reply, produced by the apply loop running this same
	// command through dispatchLocal once consensus is reached.
	if h.raftPropose != nil && IsWriteCommand(command) {
		return h.raftPropose(cmd)
	}

	return h.dispatchLocal(client, cmd)
}

// ExecuteCommand is an exported wrapper used during AOF replay to execute
// commands without networking. Replay reconstructs state from entries this
// node already wrote durably before it restarted, so it bypasses both the
// replica guard and the Raft proposer and goes straight to dispatchLocal.
func (h *CommandHandler) ExecuteCommand(client *Client, cmd *protocol.Command) []byte {
	return h.dispatchLocal(client, cmd)
}

// ExecuteReplicatedCommand applies a command streamed from a primary, or a
// command a Raft entry just committed, bypassing the read-only guard that
// otherwise rejects writes on a replica and bypassing raftPropose (the
// command already went through consensus to get here). It runs against a
// dedicated synthetic client so a replicated SELECT only ever affects
// subsequent replicated commands, never a real connection.
func (h *CommandHandler) ExecuteReplicatedCommand(cmd *protocol.Command) []byte {
	return h.dispatchLocal(h.replicationClient, cmd)
}

// isReplica checks if server is currently running as a replica
func (h *CommandHandler) isReplica() bool {
	if h.replicationMgr == nil {
		return false
	}
	if replMgr, ok := h.replicationMgr.(*replication.ReplicationManager); ok {
		return replMgr.GetRole() == replication.RoleReplica
	}
	return false
}
