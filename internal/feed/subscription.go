package feed

import (
	"sync"
	"sync/atomic"

	"trading-engine/pkg/types"
)

// Subscription is one consumer's bounded FIFO of ticks for a single
// instrument. The feed holds the producer end; exactly one runner holds the
// consumer end. Ticks arrive in emission order; on overflow the oldest
// queued tick is discarded.
type Subscription struct {
	instrument string
	ch         chan types.Tick
	drops      atomic.Int64
	feed       *Feed
	closeOnce  sync.Once
}

// C returns the tick channel.
func (s *Subscription) C() <-chan types.Tick { return s.ch }

// Instrument returns the subscribed instrument.
func (s *Subscription) Instrument() string { return s.instrument }

// Dropped returns how many ticks this subscription has discarded.
func (s *Subscription) Dropped() int64 { return s.drops.Load() }

// Close releases the subscription. Queued ticks remain readable. Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { s.feed.unsubscribe(s) })
}

// publish enqueues a tick without ever blocking. If the buffer is full, the
// oldest tick is dropped to make room. Reports whether a drop occurred.
// Single producer; the consumer may drain concurrently, which only frees
// space.
func (s *Subscription) publish(t types.Tick) bool {
	select {
	case s.ch <- t:
		return false
	default:
	}

	// Full: drop the head, then retry once. The consumer may have drained
	// in between, in which case nothing was discarded and no drop is
	// counted; the retry then succeeds on the freed space.
	dropped := false
	select {
	case <-s.ch:
		dropped = true
	default:
	}
	select {
	case s.ch <- t:
	default:
	}
	if dropped {
		s.drops.Add(1)
	}
	return dropped
}
