package feed

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-engine/internal/clock"
	"trading-engine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testFeed(t *testing.T, capacity int, seeds map[string]decimal.Decimal) *Feed {
	t.Helper()
	cfg := Config{
		TickInterval: time.Millisecond,
		Volatility:   0.002,
		Capacity:     capacity,
	}
	return New(cfg, seeds, clock.System{}, testLogger())
}

func seedMap(pairs ...string) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return m
}

// Capacity 4, ten ticks published while the consumer is blocked: the
// consumer must drain exactly the last four, and at least six drops must be
// recorded.
func TestSubscriptionDropOldest(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 4, seedMap("X", "100"))
	sub := f.Subscribe("X")

	for i := 1; i <= 10; i++ {
		sub.publish(types.Tick{
			Instrument: "X",
			Price:      decimal.NewFromInt(int64(i)),
			Timestamp:  time.Now(),
		})
	}

	var got []string
	for {
		select {
		case tick := <-sub.C():
			got = append(got, tick.Price.String())
			continue
		default:
		}
		break
	}

	want := []string{"7", "8", "9", "10"}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
	if drops := sub.Dropped(); drops < 6 {
		t.Errorf("Dropped() = %d, want >= 6", drops)
	}
}

// Conservation under a concurrently draining consumer: every published tick
// is either delivered or counted as dropped, never both and never neither.
// In particular a drain by the consumer between the failed send and the
// head-removal retry must not be billed as a drop.
func TestPublishDropAccounting(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 2, seedMap("X", "100"))
	sub := f.Subscribe("X")

	var received atomic.Int64
	stop := make(chan struct{})
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-sub.C():
				received.Add(1)
			case <-stop:
				return
			}
		}
	}()

	const published = 5000
	for i := 0; i < published; i++ {
		sub.publish(types.Tick{
			Instrument: "X",
			Price:      decimal.NewFromInt(int64(i)),
			Timestamp:  time.Now(),
		})
	}

	close(stop)
	<-consumerDone
	for {
		select {
		case <-sub.C():
			received.Add(1)
			continue
		default:
		}
		break
	}

	if got := received.Load() + sub.Dropped(); got != published {
		t.Errorf("received %d + dropped %d = %d, want %d",
			received.Load(), sub.Dropped(), got, published)
	}
}

// A subscriber that never dequeues must not affect its siblings.
func TestSlowSubscriberIsolation(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 4, seedMap("X", "100"))
	stuck := f.Subscribe("X")
	healthy := f.Subscribe("X")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	// The healthy subscriber keeps receiving while the stuck one overflows.
	deadline := time.After(5 * time.Second)
	for received := 0; received < 20; {
		select {
		case <-healthy.C():
			received++
		case <-deadline:
			t.Fatal("healthy subscriber starved while sibling was stuck")
		}
	}

	cancel()
	<-done

	if stuck.Dropped() == 0 {
		t.Error("stuck subscriber recorded no drops")
	}
	if f.Snapshot().DroppedTicks == 0 {
		t.Error("feed recorded no dropped ticks")
	}
}

func TestTicksArriveInOrderAndRounded(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 64, seedMap("NIFTY", "20100"))
	sub := f.Subscribe("NIFTY")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	var prev types.Tick
	for i := 0; i < 10; i++ {
		tick := <-sub.C()
		if tick.Instrument != "NIFTY" {
			t.Fatalf("tick for %q, want NIFTY", tick.Instrument)
		}
		if tick.Price.Exponent() < -2 {
			t.Errorf("price %s has more than 2 decimal places", tick.Price)
		}
		if i > 0 && tick.Timestamp.Before(prev.Timestamp) {
			t.Errorf("tick %d timestamp went backwards", i)
		}
		prev = tick
	}

	cancel()
	<-done
}

func TestSnapshotAndStop(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 8, seedMap("X", "100", "Y", "250"))
	sub := f.Subscribe("X")

	snap := f.Snapshot()
	if snap.Active {
		t.Error("feed active before Run")
	}
	if got := snap.Prices["Y"].String(); got != "250" {
		t.Errorf("seed price Y = %s, want 250", got)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(context.Background())
	}()

	<-sub.C()
	if !f.Snapshot().Active {
		t.Error("feed not active while running")
	}

	f.Stop()
	f.Stop() // idempotent
	<-done

	if f.Snapshot().Active {
		t.Error("feed still active after Stop")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	f := testFeed(t, 4, seedMap("X", "100"))
	sub := f.Subscribe("X")
	sub.Close()
	sub.Close() // idempotent

	f.mu.RLock()
	remaining := len(f.subs["X"])
	f.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("%d subscriptions left after Close, want 0", remaining)
	}
}
