package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/invite-gate/storage"
)

const (
	testWindow = 15 * time.Minute
	testLimit  = 20
	testAddr   = "1.2.3.4"
)

func TestStore_Record_CountsWithinWindow(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 1; i <= testLimit+1; i++ {
		got, err := store.Record(ctx, testAddr, base.Add(time.Duration(i)*time.Second), testWindow, testLimit)
		if err != nil {
			t.Fatalf("Record() #%d error = %v", i, err)
		}
		if got != i {
			t.Errorf("Record() #%d count = %d, want %d", i, got, i)
		}
	}
}

func TestStore_Record_TrimsToLimitPlusOne(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	var got int
	for i := 0; i < 100; i++ {
		var err error
		got, err = store.Record(ctx, testAddr, base.Add(time.Duration(i)*time.Millisecond), testWindow, testLimit)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if got != testLimit+1 {
		t.Errorf("count after 100 calls = %d, want %d", got, testLimit+1)
	}

	sh := store.shardFor(testAddr)
	sh.mu.Lock()
	stored := len(sh.windows[testAddr])
	sh.mu.Unlock()
	if stored != testLimit+1 {
		t.Errorf("stored timestamps = %d, want %d", stored, testLimit+1)
	}
}

func TestStore_Record_WindowBoundary(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if _, err := store.Record(ctx, testAddr, base, testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{name: "just inside window", at: base.Add(testWindow - time.Nanosecond), want: 2},
		{name: "exactly window later drops first", at: base.Add(testWindow), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Record(ctx, testAddr, tt.at, testWindow, testLimit)
			if err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Record() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStore_Record_CapacityRestoredAfterWindow(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < testLimit+5; i++ {
		if _, err := store.Record(ctx, testAddr, base, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := store.Record(ctx, testAddr, base.Add(testWindow+time.Second), testWindow, testLimit)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Record() after window = %d, want 1", got)
	}
}

func TestStore_Record_InvalidArgs(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Record(ctx, "", time.Now(), testWindow, testLimit); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Record() empty key error = %v, want %v", err, storage.ErrInvalidKey)
	}
	if _, err := store.Record(ctx, testAddr, time.Now(), 0, testLimit); !errors.Is(err, storage.ErrInvalidWindow) {
		t.Errorf("Record() zero window error = %v, want %v", err, storage.ErrInvalidWindow)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestStore_Record_KeysAreIndependent(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, "10.0.0.1", now, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	got, err := store.Record(ctx, "10.0.0.2", now, testWindow, testLimit)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Record() other key = %d, want 1", got)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestStore_Sweep_KeepsFreshKeys(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if _, err := store.Record(ctx, "stale", base, testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// One old and one fresh timestamp: the key must survive.
	if _, err := store.Record(ctx, "mixed", base, testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := store.Record(ctx, "mixed", base.Add(10*time.Minute), testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	evicted := store.Sweep(base.Add(20*time.Minute), testWindow)
	if evicted != 1 {
		t.Errorf("Sweep() evicted = %d, want 1", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	got, err := store.Record(ctx, "mixed", base.Add(20*time.Minute), testWindow, testLimit)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got != 2 {
		t.Errorf("Record() on surviving key = %d, want 2", got)
	}

	stats := store.Stats()
	if stats.TotalSweeps != 1 || stats.TotalEvictions != 1 {
		t.Errorf("Stats() = %+v, want 1 sweep and 1 eviction", stats)
	}
}

func TestStore_ProbabilisticSweep(t *testing.T) {
	tests := []struct {
		name       string
		roll       float64
		wantSweeps int64
	}{
		{name: "roll below probability sweeps", roll: 0.05, wantSweeps: 1},
		{name: "roll above probability skips", roll: 0.5, wantSweeps: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(WithEvictionThreshold(10), WithSweepProbability(0.1))
			store.randFloat = func() float64 { return tt.roll }
			ctx := context.Background()
			base := time.Unix(1_700_000_000, 0)

			// Ten stale keys fill the store up to the threshold.
			for i := 0; i < 10; i++ {
				if _, err := store.Record(ctx, fmt.Sprintf("old-%d", i), base, testWindow, testLimit); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}
			if got := store.Stats().TotalSweeps; got != 0 {
				t.Fatalf("sweeps at threshold = %d, want 0", got)
			}

			later := base.Add(time.Hour)
			if _, err := store.Record(ctx, "fresh", later, testWindow, testLimit); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			stats := store.Stats()
			if stats.TotalSweeps != tt.wantSweeps {
				t.Errorf("TotalSweeps = %d, want %d", stats.TotalSweeps, tt.wantSweeps)
			}
			if tt.wantSweeps == 1 && stats.CurrentKeys != 1 {
				t.Errorf("CurrentKeys after sweep = %d, want 1", stats.CurrentKeys)
			}
		})
	}
}

func TestStore_ForcedSweep(t *testing.T) {
	store := New(WithEvictionThreshold(5), WithSweepProbability(0.1))
	store.randFloat = func() float64 { return 0.99 }
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10; i++ {
		if _, err := store.Record(ctx, fmt.Sprintf("old-%d", i), base, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if got := store.Stats().TotalSweeps; got != 0 {
		t.Fatalf("sweeps before forced threshold = %d, want 0", got)
	}

	// The eleventh key pushes the count past twice the threshold.
	if _, err := store.Record(ctx, "fresh", base.Add(time.Hour), testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	stats := store.Stats()
	if stats.TotalSweeps != 1 {
		t.Errorf("TotalSweeps = %d, want 1", stats.TotalSweeps)
	}
	if stats.CurrentKeys != 1 {
		t.Errorf("CurrentKeys = %d, want 1", stats.CurrentKeys)
	}
	if stats.MemoryPressure != 0.2 {
		t.Errorf("MemoryPressure = %v, want 0.2", stats.MemoryPressure)
	}
}

func TestStore_Record_Concurrent(t *testing.T) {
	store := New(WithShards(4))
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	const goroutines = 50
	results := make(chan int, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Record(ctx, testAddr, now, testWindow, 0)
			if err != nil {
				t.Errorf("Record() error = %v", err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for n := range results {
		if seen[n] {
			t.Errorf("count %d observed twice", n)
		}
		seen[n] = true
	}
	for i := 1; i <= goroutines; i++ {
		if !seen[i] {
			t.Errorf("count %d never observed", i)
		}
	}
}

func TestStore_StartJanitor(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := time.Now().Add(-time.Hour)
	if _, err := store.Record(ctx, testAddr, old, testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	store.StartJanitor(ctx, 10*time.Millisecond, testWindow)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not evict stale key, Len() = %d", store.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStore_ForcedSweep_LiveKeysDoNotSweepEveryCall(t *testing.T) {
	store := New(WithEvictionThreshold(10), WithSweepProbability(0.1))
	store.randFloat = func() float64 { return 0.99 }
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	// 21 live keys cross 2x threshold once; nothing can be evicted.
	for i := 0; i < 25; i++ {
		if _, err := store.Record(ctx, fmt.Sprintf("live-%d", i), base, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if got := store.Stats().TotalSweeps; got != 1 {
		t.Fatalf("TotalSweeps after filling = %d, want 1", got)
	}

	for i := 0; i < 1000; i++ {
		if _, err := store.Record(ctx, "live-0", base.Add(time.Second), testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	stats := store.Stats()
	if stats.TotalSweeps != 1 {
		t.Errorf("TotalSweeps after 1000 calls on live keys = %d, want 1", stats.TotalSweeps)
	}
	if stats.TotalEvictions != 0 {
		t.Errorf("TotalEvictions = %d, want 0", stats.TotalEvictions)
	}

	// Doubling the table past the 42 left by the last sweep forces the next one.
	for i := 25; i < 43; i++ {
		if _, err := store.Record(ctx, fmt.Sprintf("live-%d", i), base, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if got := store.Stats().TotalSweeps; got != 2 {
		t.Errorf("TotalSweeps after doubling = %d, want 2", got)
	}
}

func TestStore_Sweep_NonPositiveWindowKeepsKeys(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if _, err := store.Record(ctx, testAddr, base, testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	for _, window := range []time.Duration{0, -time.Minute} {
		if evicted := store.Sweep(base, window); evicted != 0 {
			t.Errorf("Sweep(window=%v) evicted = %d, want 0", window, evicted)
		}
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_StartJanitor_InvalidWindow(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := store.Record(ctx, testAddr, time.Now(), testWindow, testLimit); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	store.StartJanitor(ctx, 5*time.Millisecond, 0)
	time.Sleep(50 * time.Millisecond)

	stats := store.Stats()
	if stats.TotalSweeps != 0 {
		t.Errorf("TotalSweeps = %d, want 0", stats.TotalSweeps)
	}
	if stats.CurrentKeys != 1 {
		t.Errorf("CurrentKeys = %d, want 1", stats.CurrentKeys)
	}
}

func TestStore_Record_ConcurrentWithSweep(t *testing.T) {
	store := New(WithShards(4), WithEvictionThreshold(1), WithSweepProbability(1))
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	now := base.Add(time.Hour)

	// Stale keys give the sweeps something to evict while fresh keys arrive.
	const stale = 200
	for i := 0; i < stale; i++ {
		if _, err := store.Record(ctx, fmt.Sprintf("stale-%d", i), base, testWindow, testLimit); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	const (
		writers = 8
		perKey  = 50
	)
	stop := make(chan struct{})
	var sweeper sync.WaitGroup
	sweeper.Add(1)
	go func() {
		defer sweeper.Done()
		for {
			select {
			case <-stop:
				return
			default:
				store.Sweep(now, testWindow)
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("fresh-%d", w)
			for i := 1; i <= perKey; i++ {
				n, err := store.Record(ctx, key, now, testWindow, 0)
				if err != nil {
					t.Errorf("Record() error = %v", err)
					return
				}
				if n != i {
					t.Errorf("Record(%s) #%d count = %d, want %d", key, i, n, i)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	sweeper.Wait()

	store.Sweep(now, testWindow)

	actual := 0
	for _, sh := range store.shards {
		sh.mu.Lock()
		actual += len(sh.windows)
		sh.mu.Unlock()
	}
	if store.Len() != actual {
		t.Errorf("Len() = %d, map sizes sum to %d", store.Len(), actual)
	}
	if actual != writers {
		t.Errorf("keys after sweeps = %d, want %d fresh keys", actual, writers)
	}
	for w := 0; w < writers; w++ {
		key := fmt.Sprintf("fresh-%d", w)
		sh := store.shardFor(key)
		sh.mu.Lock()
		got := len(sh.windows[key])
		sh.mu.Unlock()
		if got != perKey {
			t.Errorf("%s has %d timestamps, want %d", key, got, perKey)
		}
	}
}
