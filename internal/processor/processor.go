package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/kvserver/redis/internal/storage"
)

type CommandType int

const (
	CmdSet CommandType = iota
	CmdGet
	CmdAppend
	CmdStrLen
	CmdGetRange
	CmdDelete
	CmdExists
	CmdType
	CmdKeys
	CmdFlush
	CmdFlushAll
	CmdDBSize
	CmdSelect
	CmdCleanup
	CmdExpire
	CmdPersist
	CmdTTL
	CmdIncr
	CmdIncrBy
	CmdIncrByFloat
	CmdDecr
	CmdDecrBy
	CmdSnapshot     // For AOF rewrite (returns per-db [][]string commands)
	CmdDataSnapshot // For RDB snapshots (returns per-db map[string]*Value)
	// List commands
	CmdLPush
	CmdRPush
	CmdLPop
	CmdRPop
	CmdLLen
	CmdLRange
	CmdLIndex
	CmdLSet
	CmdLRem
	CmdLTrim
	CmdLInsert
	// Hash commands
	CmdHSet
	CmdHGet
	CmdHMGet
	CmdHDel
	CmdHExists
	CmdHLen
	CmdHKeys
	CmdHVals
	CmdHGetAll
	CmdHSetNX
	CmdHIncrBy
	CmdHIncrByFloat
	// Set commands
	CmdSAdd
	CmdSRem
	CmdSIsMember
	CmdSMembers
	CmdSCard
	CmdSPop
	CmdSRandMember
	CmdSUnion
	CmdSInter
	CmdSDiff
	CmdSMove
	CmdSUnionStore
	CmdSInterStore
	CmdSDiffStore
	// Sorted Set commands
	CmdZAdd
	CmdZRem
	CmdZScore
	CmdZRank
	CmdZRevRank
	CmdZCard
	CmdZRange
	CmdZRevRange
	CmdZRangeByScore
	CmdZRevRangeByScore
	CmdZIncrBy
	CmdZCount
	CmdZPopMin
	CmdZPopMax
	CmdZRemRangeByScore
	CmdZRemRangeByRank
)

// Result types for command responses
type IntResult struct {
	Result int
	Err    error
}

type StringSliceResult struct {
	Result []string
	Err    error
}

type IndexResult struct {
	Value  string
	Exists bool
	Err    error
}

type GetResult struct {
	Value  string
	Exists bool
	Err    error
}

type Int64Result struct {
	Result int64
	Err    error
}

type Float64Result struct {
	Result float64
	Err    error
}

type BoolResult struct {
	Result bool
	Err    error
}

type StringResult struct {
	Result string
	Err    error
}

type BoolSliceResult struct {
	Results []bool
	Err     error
}

type InterfaceSliceResult struct {
	Result []interface{}
	Err    error
}

// DataSnapshot is a per-database point-in-time view, used by BGSAVE and
// AOF rewrite. Each entry MUST be released with ReleaseSnapshot once the
// background reader is done iterating it.
type DataSnapshot struct {
	Databases map[int]map[string]*storage.Value
}

type Command struct {
	Type     CommandType
	DB       int
	Key      string
	Value    interface{}
	ExpireAt int64 // absolute expiry in epoch milliseconds, storage.NoExpiry if none
	Args     []interface{} // Additional arguments for complex commands
	Response chan interface{}

	resolvedDB *storage.Database
}

// CommandExecutor is a function type for command executors
type CommandExecutor func(cmd *Command)

type Processor struct {
	keyspace    *storage.Keyspace
	commandChan chan *Command
	ctx         context.Context
	cancel      context.CancelFunc
	executors   map[CommandType]CommandExecutor

	maxMemoryBytes int64           // maxmemory in bytes; <= 0 disables eviction
	evictionPolicy string          // "noeviction" or "allkeys-lru"
	memoryUsage    func() uint64   // reports current resident memory, nil until SetEvictionPolicy
	onEvict        func(key string) // invoked once per key evicted, for AOF/replication fan-out
}

// SetEvictionPolicy wires the maxmemory limit this processor enforces
// during its periodic cleanup pass. usageFn reports current resident
// memory (backed by the handler layer's metrics collector); onEvict fires
// once per key the eviction sampler removes so the caller can replay it as
// a DEL the same way any other write propagates. A maxBytes of 0 leaves
// eviction disabled, matching noeviction.
func (p *Processor) SetEvictionPolicy(maxBytes int64, policy string, usageFn func() uint64, onEvict func(key string)) {
	p.maxMemoryBytes = maxBytes
	p.evictionPolicy = policy
	p.memoryUsage = usageFn
	p.onEvict = onEvict
}

func NewProcessor(keyspace *storage.Keyspace) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		keyspace:    keyspace,
		commandChan: make(chan *Command, 1000),
		ctx:         ctx,
		cancel:      cancel,
	}
	p.registerExecutors()
	go p.run()
	go p.periodicCleanup()
	return p
}

// Keyspace returns the underlying keyspace (for pub/sub-less cleanup paths
// and admin commands that must reach every database directly).
func (p *Processor) Keyspace() *storage.Keyspace {
	return p.keyspace
}

// registerExecutors initializes the executor map
func (p *Processor) registerExecutors() {
	p.executors = make(map[CommandType]CommandExecutor)

	p.registerStringExecutors()
	p.registerListExecutors()
	p.registerHashExecutors()
	p.registerSetExecutors()
	p.registerZSetExecutors()

	p.executors[CmdSnapshot] = p.executeSnapshot
	p.executors[CmdDataSnapshot] = p.executeDataSnapshot
}

// registerStringExecutors registers string and generic keyspace command executors
func (p *Processor) registerStringExecutors() {
	stringCmds := []CommandType{
		CmdSet, CmdGet, CmdAppend, CmdStrLen, CmdGetRange,
		CmdDelete, CmdExists, CmdType, CmdKeys, CmdFlush, CmdFlushAll,
		CmdDBSize, CmdSelect, CmdCleanup, CmdExpire, CmdPersist, CmdTTL,
		CmdIncr, CmdIncrBy, CmdIncrByFloat, CmdDecr, CmdDecrBy,
	}
	for _, cmdType := range stringCmds {
		p.executors[cmdType] = p.executeStringCommand
	}
}

// registerListExecutors registers list command executors
func (p *Processor) registerListExecutors() {
	listCmds := []CommandType{
		CmdLPush, CmdRPush, CmdLPop, CmdRPop, CmdLLen,
		CmdLRange, CmdLIndex, CmdLSet, CmdLRem, CmdLTrim, CmdLInsert,
	}
	for _, cmdType := range listCmds {
		p.executors[cmdType] = p.executeListCommand
	}
}

// registerHashExecutors registers hash command executors
func (p *Processor) registerHashExecutors() {
	hashCmds := []CommandType{
		CmdHSet, CmdHGet, CmdHMGet, CmdHDel, CmdHExists,
		CmdHLen, CmdHKeys, CmdHVals, CmdHGetAll, CmdHSetNX,
		CmdHIncrBy, CmdHIncrByFloat,
	}
	for _, cmdType := range hashCmds {
		p.executors[cmdType] = p.executeHashCommand
	}
}

// registerSetExecutors registers set command executors
func (p *Processor) registerSetExecutors() {
	setCmds := []CommandType{
		CmdSAdd, CmdSRem, CmdSIsMember, CmdSMembers, CmdSCard,
		CmdSPop, CmdSRandMember, CmdSUnion, CmdSInter, CmdSDiff,
		CmdSMove, CmdSUnionStore, CmdSInterStore, CmdSDiffStore,
	}
	for _, cmdType := range setCmds {
		p.executors[cmdType] = p.executeSetCommand
	}
}

// registerZSetExecutors registers sorted set command executors
func (p *Processor) registerZSetExecutors() {
	zsetCmds := []CommandType{
		CmdZAdd, CmdZRem, CmdZScore, CmdZRank, CmdZRevRank,
		CmdZCard, CmdZRange, CmdZRevRange, CmdZRangeByScore, CmdZRevRangeByScore,
		CmdZIncrBy, CmdZCount, CmdZPopMin, CmdZPopMax,
		CmdZRemRangeByScore, CmdZRemRangeByRank,
	}
	for _, cmdType := range zsetCmds {
		p.executors[cmdType] = p.executeZSetCommand
	}
}

func (p *Processor) run() {
	for {
		select {
		case <-p.ctx.Done():
			p.drainCommands()
			return
		case cmd := <-p.commandChan:
			p.executeCommand(cmd)
		}
	}
}

func (p *Processor) drainCommands() {
	for {
		select {
		case cmd := <-p.commandChan:
			p.executeCommand(cmd)
		default:
			return
		}
	}
}

// executeCommand resolves the target database before dispatching: every
// command (other than the snapshot commands, which span all databases)
// carries an explicit DB index set by the caller's current-DB selection.
func (p *Processor) executeCommand(cmd *Command) {
	if cmd.Type != CmdSnapshot && cmd.Type != CmdDataSnapshot {
		db, err := p.keyspace.DB(cmd.DB)
		if err != nil {
			cmd.Response <- err
			return
		}
		cmd.resolvedDB = db
	}

	if executor, exists := p.executors[cmd.Type]; exists {
		executor(cmd)
		if cmd.Key != "" && cmd.resolvedDB != nil {
			cmd.resolvedDB.Touch(cmd.Key, nowMs())
		}
		return
	}
	cmd.Response <- fmt.Errorf("ERR unknown command type %d", cmd.Type)
}

func (p *Processor) periodicCleanup() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			cmd := &Command{
				Type:     CmdCleanup,
				Response: make(chan interface{}, 1),
			}
			p.commandChan <- cmd
			<-cmd.Response
		}
	}
}

func (p *Processor) Submit(cmd *Command) {
	p.commandChan <- cmd
}

func (p *Processor) Shutdown() {
	p.cancel()
	close(p.commandChan)
}

// Direct methods for blocking operations, always against database 0 — used
// by internal callers (AOF replay, replication apply) that never observe a
// client's SELECTed database.

// LPop removes and returns the first element from a list
func (p *Processor) LPop(key string) (string, bool) {
	cmd := &Command{
		Type:     CmdLPop,
		Key:      key,
		Args:     []interface{}{1},
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response

	res, ok := result.(StringSliceResult)
	if !ok || res.Err != nil || len(res.Result) == 0 {
		return "", false
	}
	return res.Result[0], true
}

// RPop removes and returns the last element from a list
func (p *Processor) RPop(key string) (string, bool) {
	cmd := &Command{
		Type:     CmdRPop,
		Key:      key,
		Args:     []interface{}{1},
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response

	res, ok := result.(StringSliceResult)
	if !ok || res.Err != nil || len(res.Result) == 0 {
		return "", false
	}
	return res.Result[0], true
}

// LPush adds elements to the head of a list
func (p *Processor) LPush(key string, values []string) int {
	cmd := &Command{
		Type:     CmdLPush,
		Key:      key,
		Args:     []interface{}{values},
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response

	res, ok := result.(IntResult)
	if !ok || res.Err != nil {
		return 0
	}
	return res.Result
}

// RPush adds elements to the tail of a list
func (p *Processor) RPush(key string, values []string) int {
	cmd := &Command{
		Type:     CmdRPush,
		Key:      key,
		Args:     []interface{}{values},
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response

	res, ok := result.(IntResult)
	if !ok || res.Err != nil {
		return 0
	}
	return res.Result
}

// LLen returns the length of a list
func (p *Processor) LLen(key string) int {
	cmd := &Command{
		Type:     CmdLLen,
		Key:      key,
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response

	res, ok := result.(IntResult)
	if !ok || res.Err != nil {
		return 0
	}
	return res.Result
}

// GetSnapshot returns, per database index, a shallow-copy snapshot of the
// whole keyspace for AOF rewrite. Callers MUST call ReleaseSnapshot when
// they are done reading it.
func (p *Processor) GetSnapshot() *DataSnapshot {
	cmd := &Command{
		Type:     CmdSnapshot,
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response
	snap, _ := result.(*DataSnapshot)
	return snap
}

// GetDataSnapshot returns a per-database snapshot of raw storage data for
// RDB saves. Uses copy-on-write: the dispatcher never blocks on it, but
// callers MUST call ReleaseSnapshot() once done.
func (p *Processor) GetDataSnapshot() *DataSnapshot {
	cmd := &Command{
		Type:     CmdDataSnapshot,
		Response: make(chan interface{}, 1),
	}
	p.Submit(cmd)
	result := <-cmd.Response
	snap, _ := result.(*DataSnapshot)
	return snap
}

// ReleaseSnapshot decrements the snapshot reference counter on every
// database (COW optimization). MUST be called after a background reader
// (AOF rewrite, BGSAVE) finishes with a DataSnapshot.
func (p *Processor) ReleaseSnapshot() {
	for _, db := range p.keyspace.All() {
		db.ReleaseSnapshot()
	}
}
