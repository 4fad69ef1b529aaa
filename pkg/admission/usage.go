package admission

import (
	"sync"
	"time"
)

// blockState models the Active | Blocked{until} state of an identity.
//
// The zero value is Active. Blocked identities are created only through
// blockedUntil so the expiry timestamp is always meaningful.
type blockState struct {
	blocked bool
	until   time.Time
}

func blockedUntil(t time.Time) blockState {
	return blockState{blocked: true, until: t}
}

// inEffect reports whether the block is still active at the given time.
func (s blockState) inEffect(now time.Time) bool {
	return s.blocked && now.Before(s.until)
}

// remaining returns the time left on the block, never negative.
func (s blockState) remaining(now time.Time) time.Duration {
	if !s.inEffect(now) {
		return 0
	}
	return s.until.Sub(now)
}

// usageRecord holds the per-identity counters consulted by admission
// checks. Records are created lazily on first check and evicted by the
// maintenance sweep once idle.
//
// All fields are guarded by mu. Holding one record's lock never blocks
// checks for other identities.
type usageRecord struct {
	mu sync.Mutex

	identity      Identity
	concurrency   uint
	totalRequests uint64
	lastRequestAt time.Time
	violations    uint
	block         blockState
}

// UsageSnapshot is a point-in-time copy of one identity's usage record,
// exposed for introspection and health reporting.
type UsageSnapshot struct {
	Identity      Identity
	Concurrency   uint
	TotalRequests uint64
	LastRequestAt time.Time
	Violations    uint
	Blocked       bool
	BlockedUntil  time.Time
}

func (r *usageRecord) snapshot() UsageSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return UsageSnapshot{
		Identity:      r.identity,
		Concurrency:   r.concurrency,
		TotalRequests: r.totalRequests,
		LastRequestAt: r.lastRequestAt,
		Violations:    r.violations,
		Blocked:       r.block.blocked,
		BlockedUntil:  r.block.until,
	}
}

// usageShardCount is the number of independently locked map shards.
// Sixteen keeps lock contention low without measurable memory cost.
const usageShardCount = 16

type usageShard struct {
	mu      sync.RWMutex
	records map[identityKey]*usageRecord
}

// usageTable is a sharded concurrent map of identity → usage record.
//
// Per-identity mutation happens under the record's own mutex; the shard
// locks only guard map membership. Cross-identity passes (the sweep)
// take a per-shard snapshot rather than a global lock.
type usageTable struct {
	shards [usageShardCount]usageShard
}

func newUsageTable() *usageTable {
	t := &usageTable{}
	for i := range t.shards {
		t.shards[i].records = make(map[identityKey]*usageRecord)
	}
	return t
}

// getOrCreate returns the record for the identity, creating it on first
// use with lastRequestAt primed so a fresh record is not sweepable.
func (t *usageTable) getOrCreate(id Identity, now time.Time) *usageRecord {
	key := id.key()
	shard := &t.shards[key.shard(usageShardCount)]

	shard.mu.RLock()
	rec, ok := shard.records[key]
	shard.mu.RUnlock()
	if ok {
		return rec
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if rec, ok := shard.records[key]; ok {
		return rec
	}
	rec = &usageRecord{identity: id, lastRequestAt: now}
	shard.records[key] = rec
	return rec
}

func (t *usageTable) remove(key identityKey) {
	shard := &t.shards[key.shard(usageShardCount)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.records, key)
}

func (t *usageTable) len() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].records)
		t.shards[i].mu.RUnlock()
	}
	return total
}

// all returns a consistent-enough snapshot of every record pointer.
// Records created or removed during iteration may be missed; the sweep
// tolerates that.
func (t *usageTable) all() []*usageRecord {
	records := make([]*usageRecord, 0, 64)
	for i := range t.shards {
		t.shards[i].mu.RLock()
		for _, rec := range t.shards[i].records {
			records = append(records, rec)
		}
		t.shards[i].mu.RUnlock()
	}
	return records
}
