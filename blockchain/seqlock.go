package blockchain

import (
	"runtime"
	"sync/atomic"
)

// SeqLock coordinates one writer with lock-free readers. The counter starts
// even; the writer makes it odd for the duration of a write turn. A reader
// retries whenever it sampled an odd counter or the counter moved under it.
type SeqLock struct {
	counter uint64
}

// BeginWrite marks the start of a write turn. The increment is a release
// barrier: readers that still see the old even value also see only
// pre-write state.
func (l *SeqLock) BeginWrite() {
	atomic.AddUint64(&l.counter, 1)
}

// EndWrite publishes the turn. All stores made during the turn become
// visible no later than this increment.
func (l *SeqLock) EndWrite() {
	atomic.AddUint64(&l.counter, 1)
}

// Read runs read until it observes a stable even counter around it.
func (l *SeqLock) Read(read func()) {
	for {
		start := atomic.LoadUint64(&l.counter)
		if start%2 != 0 {
			runtime.Gosched()
			continue
		}
		read()
		if atomic.LoadUint64(&l.counter) == start {
			return
		}
	}
}
