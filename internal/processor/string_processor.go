package processor

import (
	"time"

	"github.com/kvserver/redis/internal/dynstr"
	"github.com/kvserver/redis/internal/storage"
)

// executeStringCommand handles string and generic keyspace commands
func (p *Processor) executeStringCommand(cmd *Command) {
	switch cmd.Type {
	case CmdSet:
		p.executeSet(cmd)
	case CmdGet:
		p.executeGet(cmd)
	case CmdAppend:
		p.executeAppend(cmd)
	case CmdStrLen:
		p.executeStrLen(cmd)
	case CmdGetRange:
		p.executeGetRange(cmd)
	case CmdDelete:
		p.executeDelete(cmd)
	case CmdExists:
		p.executeExists(cmd)
	case CmdType:
		p.executeType(cmd)
	case CmdKeys:
		p.executeKeys(cmd)
	case CmdFlush:
		p.executeFlush(cmd)
	case CmdFlushAll:
		p.executeFlushAll(cmd)
	case CmdDBSize:
		p.executeDBSize(cmd)
	case CmdSelect:
		p.executeSelect(cmd)
	case CmdCleanup:
		p.executeCleanup(cmd)
	case CmdExpire:
		p.executeExpire(cmd)
	case CmdPersist:
		p.executePersist(cmd)
	case CmdTTL:
		p.executeTTL(cmd)
	case CmdIncr:
		p.executeIncr(cmd)
	case CmdIncrBy:
		p.executeIncrBy(cmd)
	case CmdIncrByFloat:
		p.executeIncrByFloat(cmd)
	case CmdDecr:
		p.executeDecr(cmd)
	case CmdDecrBy:
		p.executeDecrBy(cmd)
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// executeSet sets a key-value pair
func (p *Processor) executeSet(cmd *Command) {
	value, _ := cmd.Value.(dynstr.DynStr)
	cmd.resolvedDB.Set(cmd.Key, value, cmd.ExpireAt)
	cmd.Response <- true
}

// executeGet retrieves a value by key
func (p *Processor) executeGet(cmd *Command) {
	val, exists, err := cmd.resolvedDB.Get(cmd.Key, nowMs())
	if err != nil {
		cmd.Response <- GetResult{Err: err}
		return
	}
	cmd.Response <- GetResult{Value: val.String(), Exists: exists}
}

// executeAppend appends a payload to the string at key
func (p *Processor) executeAppend(cmd *Command) {
	payload, _ := cmd.Value.(string)
	n, err := cmd.resolvedDB.Append(cmd.Key, []byte(payload), nowMs())
	cmd.Response <- IntResult{Result: n, Err: err}
}

// executeStrLen returns the length of the string at key
func (p *Processor) executeStrLen(cmd *Command) {
	n, err := cmd.resolvedDB.StrLen(cmd.Key, nowMs())
	cmd.Response <- IntResult{Result: n, Err: err}
}

// executeGetRange returns a byte range from the string at key
func (p *Processor) executeGetRange(cmd *Command) {
	start := cmd.Args[0].(int)
	end := cmd.Args[1].(int)
	rng, err := cmd.resolvedDB.GetRange(cmd.Key, start, end, nowMs())
	cmd.Response <- GetResult{Value: string(rng), Exists: rng != nil, Err: err}
}

// executeDelete deletes a key
func (p *Processor) executeDelete(cmd *Command) {
	result := cmd.resolvedDB.Delete(cmd.Key)
	cmd.Response <- result
}

// executeExists checks if a key exists
func (p *Processor) executeExists(cmd *Command) {
	result := cmd.resolvedDB.Exists(cmd.Key, nowMs())
	cmd.Response <- result
}

// executeType returns the type name stored at key, or "" if absent
func (p *Processor) executeType(cmd *Command) {
	t, exists := cmd.resolvedDB.TypeOf(cmd.Key, nowMs())
	if !exists {
		cmd.Response <- ""
		return
	}
	cmd.Response <- t.String()
}

// executeKeys returns all keys
func (p *Processor) executeKeys(cmd *Command) {
	keys := cmd.resolvedDB.Keys(nowMs())
	cmd.Response <- keys
}

// executeFlush clears all keys in the selected database
func (p *Processor) executeFlush(cmd *Command) {
	cmd.resolvedDB.Flush()
	cmd.Response <- true
}

// executeFlushAll clears every database in the keyspace
func (p *Processor) executeFlushAll(cmd *Command) {
	p.keyspace.FlushAll()
	cmd.Response <- true
}

// executeDBSize returns the number of keys in the selected database
func (p *Processor) executeDBSize(cmd *Command) {
	cmd.Response <- IntResult{Result: cmd.resolvedDB.Size()}
}

// executeSelect validates that a database index exists; the actual
// per-connection current-DB bookkeeping lives in the caller (the handler
// layer), never in shared processor state.
func (p *Processor) executeSelect(cmd *Command) {
	index := cmd.Args[0].(int)
	if _, err := p.keyspace.DB(index); err != nil {
		cmd.Response <- err
		return
	}
	cmd.Response <- true
}

// executeCleanup runs one bounded active-expire sweep across every database
func (p *Processor) executeCleanup(cmd *Command) {
	now := nowMs()
	for _, db := range p.keyspace.All() {
		db.ActiveExpireCycle(now, 20)
	}
	p.evictIfOverLimit()
	cmd.Response <- true
}

// executeExpire sets expiry on a key
func (p *Processor) executeExpire(cmd *Command) {
	result := cmd.resolvedDB.Expire(cmd.Key, cmd.ExpireAt, nowMs())
	cmd.Response <- result
}

// executePersist clears a key's expiry, reporting whether it had one
func (p *Processor) executePersist(cmd *Command) {
	ttl := cmd.resolvedDB.TTLMillis(cmd.Key, nowMs())
	if ttl < 0 {
		cmd.Response <- false
		return
	}
	cmd.resolvedDB.Expire(cmd.Key, storage.NoExpiry, nowMs())
	cmd.Response <- true
}

// executeTTL returns time-to-live in milliseconds for a key
func (p *Processor) executeTTL(cmd *Command) {
	ttl := cmd.resolvedDB.TTLMillis(cmd.Key, nowMs())
	cmd.Response <- Int64Result{Result: ttl}
}

// executeIncr increments the integer value by 1
func (p *Processor) executeIncr(cmd *Command) {
	result, err := cmd.resolvedDB.IncrBy(cmd.Key, 1, nowMs())
	cmd.Response <- Int64Result{Result: result, Err: err}
}

// executeIncrBy increments the integer value by given amount
func (p *Processor) executeIncrBy(cmd *Command) {
	increment := cmd.Value.(int64)
	result, err := cmd.resolvedDB.IncrBy(cmd.Key, increment, nowMs())
	cmd.Response <- Int64Result{Result: result, Err: err}
}

// executeIncrByFloat increments the float value by given amount
func (p *Processor) executeIncrByFloat(cmd *Command) {
	increment := cmd.Value.(float64)
	result, err := cmd.resolvedDB.IncrByFloat(cmd.Key, increment, nowMs())
	cmd.Response <- Float64Result{Result: result, Err: err}
}

// executeDecr decrements the integer value by 1
func (p *Processor) executeDecr(cmd *Command) {
	result, err := cmd.resolvedDB.IncrBy(cmd.Key, -1, nowMs())
	cmd.Response <- Int64Result{Result: result, Err: err}
}

// executeDecrBy decrements the integer value by given amount
func (p *Processor) executeDecrBy(cmd *Command) {
	decrement := cmd.Value.(int64)
	result, err := cmd.resolvedDB.IncrBy(cmd.Key, -decrement, nowMs())
	cmd.Response <- Int64Result{Result: result, Err: err}
}
