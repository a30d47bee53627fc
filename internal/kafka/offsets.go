package kafka

import "sync"

// offsetTracker tracks, per partition, which fetched messages have been
// handled. Workers finish out of order; a commit may only cover a contiguous
// run of handled offsets, otherwise committing a later message would skip an
// earlier one that is still being retried.
type offsetTracker struct {
	mu   sync.Mutex
	next map[int]int64          // partition -> lowest offset not yet handled
	done map[int]map[int64]bool // partition -> handled offsets above next
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{
		next: map[int]int64{},
		done: map[int]map[int64]bool{},
	}
}

// add registers a fetched message before it is dispatched to a worker. The
// first offset seen for a partition anchors the contiguous run.
func (t *offsetTracker) add(partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.next[partition]; !ok {
		t.next[partition] = offset
	}
	if t.done[partition] == nil {
		t.done[partition] = map[int64]bool{}
	}
}

// complete marks a message handled. When that extends the contiguous run it
// returns the run's highest handled offset and true; otherwise the commit
// has to wait for the earlier offsets still in flight.
func (t *offsetTracker) complete(partition int, offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done[partition][offset] = true
	next := t.next[partition]
	if offset != next {
		return 0, false
	}
	for t.done[partition][next] {
		delete(t.done[partition], next)
		next++
	}
	t.next[partition] = next
	return next - 1, true
}
