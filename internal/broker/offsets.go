package broker

import "sync"

// offsetTracker releases offsets for commit only as a contiguous prefix per partition,
// so a slow message is never skipped by a faster one behind it.
//
// TODO: reset a partition's state when it is revoked; kafka-go's group reader does not
// surface assignment changes, so stale pending offsets only clear on restart.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64 // fetch order
	done    map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

// Track must be called in fetch order, before the message is dispatched.
func (t *offsetTracker) Track(partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partition]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.partitions[partition] = p
	}
	p.pending = append(p.pending, offset)
}

// Done marks offset complete and returns the highest offset that is now safe to commit.
func (t *offsetTracker) Done(partition int, offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partition]
	if !ok {
		return 0, false
	}
	p.done[offset] = true

	var (
		committable int64
		advanced    bool
	)
	for len(p.pending) > 0 && p.done[p.pending[0]] {
		committable = p.pending[0]
		delete(p.done, committable)
		p.pending = p.pending[1:]
		advanced = true
	}
	return committable, advanced
}

// Pending is the number of tracked offsets not yet released on partition.
func (t *offsetTracker) Pending(partition int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.partitions[partition]; ok {
		return len(p.pending)
	}
	return 0
}
