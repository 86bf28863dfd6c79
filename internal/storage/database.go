package storage

import "sync/atomic"

// Database is a single isolated keyspace: a mapping from key to typed
// value, plus an index of keys carrying an expiration for active sweeps.
// It is mutated only by the dispatcher goroutine; background readers
// (RDB save, AOF rewrite) observe it through GetAllData's copy-on-write
// snapshot, never by holding a lock across the dispatcher's hot path.
type Database struct {
	data          map[string]*Value
	withExpiry    map[string]struct{}
	snapshotCount int32 // atomic: >0 while a background reader is iterating
}

// NewDatabase returns an empty keyspace.
func NewDatabase() *Database {
	return &Database{
		data:       make(map[string]*Value),
		withExpiry: make(map[string]struct{}),
	}
}

func (d *Database) deleteKey(key string) {
	delete(d.data, key)
	delete(d.withExpiry, key)
}

// isSnapshotActive reports whether a background reader currently holds a
// reference to this database's memory, requiring copy-on-write semantics
// on the next mutation of an aggregate value.
func (d *Database) isSnapshotActive() bool {
	return atomic.LoadInt32(&d.snapshotCount) > 0
}

// GetAllData returns a shallow-copy snapshot of every live entry: the Value
// structs are cloned (so ExpiresAtMs/Type are stable) but their Data
// payload is shared until the first in-place mutation after the snapshot
// was taken, at which point write paths clone the aggregate (see *_ops.go
// isSnapshotActive checks). Callers MUST call ReleaseSnapshot when done.
func (d *Database) GetAllData(nowMs int64) map[string]*Value {
	atomic.AddInt32(&d.snapshotCount, 1)

	snapshot := make(map[string]*Value, len(d.data))
	for key, val := range d.data {
		if val.Expired(nowMs) {
			continue
		}
		clone := *val
		snapshot[key] = &clone
	}
	return snapshot
}

// ReleaseSnapshot decrements the reference count taken by GetAllData.
func (d *Database) ReleaseSnapshot() {
	atomic.AddInt32(&d.snapshotCount, -1)
}

// Delete removes a key unconditionally. Reports whether it existed.
func (d *Database) Delete(key string) bool {
	_, exists := d.data[key]
	if exists {
		d.deleteKey(key)
	}
	return exists
}

// Exists reports whether key is present and unexpired, lazily deleting it
// if its expiration has passed.
func (d *Database) Exists(key string, nowMs int64) bool {
	val, ok := d.data[key]
	if !ok {
		return false
	}
	if val.Expired(nowMs) {
		d.deleteKey(key)
		return false
	}
	return true
}

// TypeOf returns the kind of the value stored at key, or false if absent.
func (d *Database) TypeOf(key string, nowMs int64) (ValueType, bool) {
	val, ok := d.data[key]
	if !ok || val.Expired(nowMs) {
		if ok {
			d.deleteKey(key)
		}
		return 0, false
	}
	return val.Type, true
}

// Keys returns all non-expired keys. Lazily evicts any expired entry it
// encounters along the way.
func (d *Database) Keys(nowMs int64) []string {
	keys := make([]string, 0, len(d.data))
	var expired []string
	for key, val := range d.data {
		if val.Expired(nowMs) {
			expired = append(expired, key)
			continue
		}
		keys = append(keys, key)
	}
	for _, key := range expired {
		d.deleteKey(key)
	}
	return keys
}

// Size returns the number of live keys (DBSIZE), without evicting expired
// ones (a point-in-time count, same as Redis DBSIZE which also counts
// not-yet-swept expired keys).
func (d *Database) Size() int {
	return len(d.data)
}

// Flush clears every key in the database.
func (d *Database) Flush() {
	d.data = make(map[string]*Value)
	d.withExpiry = make(map[string]struct{})
}

// Expire sets (or clears, with NoExpiry) a key's absolute expiration.
// Reports whether the key existed.
func (d *Database) Expire(key string, expiresAtMs int64, nowMs int64) bool {
	val, ok := d.data[key]
	if !ok {
		return false
	}
	if val.Expired(nowMs) {
		d.deleteKey(key)
		return false
	}
	val.ExpiresAtMs = expiresAtMs
	if expiresAtMs == NoExpiry {
		delete(d.withExpiry, key)
	} else {
		d.withExpiry[key] = struct{}{}
	}
	return true
}

// TTLMillis returns the number of milliseconds until expiration, -1 if the
// key exists with no expiration, or -2 if the key does not exist (or has
// just expired).
func (d *Database) TTLMillis(key string, nowMs int64) int64 {
	val, ok := d.data[key]
	if !ok {
		return -2
	}
	if val.Expired(nowMs) {
		d.deleteKey(key)
		return -2
	}
	if val.ExpiresAtMs == NoExpiry {
		return -1
	}
	remaining := val.ExpiresAtMs - nowMs
	if remaining < 0 {
		d.deleteKey(key)
		return -2
	}
	return remaining
}

// ActiveExpireCycle performs a bounded pass of opportunistic lazy-expiry
// sweeping, sampling keys known to carry an expiration rather than
// scanning the whole keyspace. Mirrors Redis's "active expire cycle":
// sample a handful of keys-with-ttl, evict the expired ones, and keep
// sampling only while the hit rate stays high.
func (d *Database) ActiveExpireCycle(nowMs int64, maxSamples int) (evicted int) {
	if maxSamples <= 0 {
		maxSamples = 20
	}
	for {
		sample := make([]string, 0, maxSamples)
		for key := range d.withExpiry {
			sample = append(sample, key)
			if len(sample) >= maxSamples {
				break
			}
		}
		if len(sample) == 0 {
			return evicted
		}

		hits := 0
		for _, key := range sample {
			val, ok := d.data[key]
			if !ok {
				delete(d.withExpiry, key)
				continue
			}
			if val.Expired(nowMs) {
				d.deleteKey(key)
				hits++
				evicted++
			}
		}

		if len(sample) < maxSamples || hits*4 < len(sample) {
			return evicted
		}
	}
}

// Touch records nowMs as key's last-referenced time, for allkeys-lru
// eviction sampling. A no-op if key doesn't exist; never itself triggers
// lazy expiry, since the caller already resolved the command against this
// key successfully.
func (d *Database) Touch(key string, nowMs int64) {
	if val, ok := d.data[key]; ok {
		val.LastAccessMs = nowMs
	}
}

// EvictLRUSample evicts up to count keys chosen by Redis's approximate-LRU
// algorithm: draw a small random sample of live keys and evict whichever
// of them was least recently touched, repeating until count evictions have
// happened or the database runs out of keys. Returns the keys evicted.
func (d *Database) EvictLRUSample(count, sampleSize int) []string {
	if sampleSize <= 0 {
		sampleSize = 5
	}
	evicted := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(d.data) == 0 {
			break
		}
		var oldestKey string
		oldestAccess := int64(-1)
		sampled := 0
		for key, val := range d.data {
			sampled++
			if oldestAccess == -1 || val.LastAccessMs < oldestAccess {
				oldestKey = key
				oldestAccess = val.LastAccessMs
			}
			if sampled >= sampleSize {
				break
			}
		}
		if oldestKey == "" {
			break
		}
		d.deleteKey(oldestKey)
		evicted = append(evicted, oldestKey)
	}
	return evicted
}
