package processor

// evictionBatchSize bounds how many keys a single cleanup pass evicts from
// each database while over the memory limit, so one pass never blocks the
// dispatcher goroutine for long even on a very oversized keyspace.
const evictionBatchSize = 10

// evictionSampleSize is the number of keys EvictLRUSample draws its
// least-recently-used candidate from, mirroring Redis's approximate-LRU
// sampling rather than tracking a true global access order.
const evictionSampleSize = 5

// evictIfOverLimit runs from the same dispatcher goroutine as every other
// command (via executeCleanup), so it never races storage's unsynchronized
// maps. It evicts a bounded batch per database whenever resident memory is
// still over maxMemoryBytes; memoryUsage is re-read only once per call,
// since eviction doesn't shrink RSS synchronously and re-sampling it
// per-database wouldn't reflect anything yet.
func (p *Processor) evictIfOverLimit() {
	if p.maxMemoryBytes <= 0 || p.evictionPolicy != "allkeys-lru" || p.memoryUsage == nil {
		return
	}
	if int64(p.memoryUsage()) <= p.maxMemoryBytes {
		return
	}
	for _, db := range p.keyspace.All() {
		for _, key := range db.EvictLRUSample(evictionBatchSize, evictionSampleSize) {
			if p.onEvict != nil {
				p.onEvict(key)
			}
		}
	}
}
