package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"marketwatch/internal/domain"
	"marketwatch/internal/util"
)

type fakeLookup struct {
	mu      sync.Mutex
	queries []string
	results map[string][]domain.Suggestion
	err     error
	gate    chan struct{} // when non-nil, each lookup waits for a value
	done    chan string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{results: map[string][]domain.Suggestion{}, done: make(chan string, 16)}
}

func (f *fakeLookup) lookup(_ context.Context, q string) ([]domain.Suggestion, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate, res, err := f.gate, f.results[q], f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res, err
}

func (f *fakeLookup) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func newChannel(t *testing.T, f *fakeLookup) (*Channel, *clockwork.FakeClock, <-chan State) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	c := New(context.Background(), f.lookup, Options{
		Name:      "alerts",
		Delay:     300 * time.Millisecond,
		MinLength: 2,
		Clock:     clock,
		Log:       util.Discard(),
	})
	changes := make(chan State, 64)
	c.OnChange(func(s State) { changes <- s })
	return c, clock, changes
}

// settle waits until the channel reports a state with Pending cleared or the
// deadline passes.
func settle(t *testing.T, c *Channel, changes <-chan State) State {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if st := c.State(); !st.Pending {
			return st
		}
		select {
		case <-changes:
		case <-deadline:
			t.Fatal("lookup never completed")
		}
	}
}

func armed(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("debounce timer not armed: %v", err)
	}
}

func TestSingleLookupForBurst(t *testing.T) {
	f := newFakeLookup()
	f.results["tat"] = []domain.Suggestion{{Symbol: "TATAMOTORS.NS", Name: "Tata Motors"}}
	c, clock, changes := newChannel(t, f)

	c.OnInput("t")
	clock.Advance(50 * time.Millisecond)
	c.OnInput("ta")
	clock.Advance(50 * time.Millisecond)
	c.OnInput("tat")
	armed(t, clock)
	clock.Advance(300 * time.Millisecond)

	st := settle(t, c, changes)
	if got := f.calls(); len(got) != 1 || got[0] != "tat" {
		t.Fatalf("lookups = %v, want [tat]", got)
	}
	if !st.Visible || len(st.Suggestions) != 1 {
		t.Errorf("state = %+v, want one visible suggestion", st)
	}
}

func TestShortInputClearsSynchronously(t *testing.T) {
	f := newFakeLookup()
	f.results["tat"] = []domain.Suggestion{{Symbol: "TATA"}}
	c, clock, changes := newChannel(t, f)

	c.OnInput("tat")
	armed(t, clock)
	clock.Advance(300 * time.Millisecond)
	settle(t, c, changes)

	c.OnInput("t")
	st := c.State()
	if st.Visible || len(st.Suggestions) != 0 || st.Pending {
		t.Errorf("state after short input = %+v, want cleared", st)
	}

	// A lookup scheduled before the input went short must not run.
	c.OnInput("ta")
	c.OnInput("")
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := f.calls(); len(got) != 1 {
		t.Errorf("lookups = %v, want only the first", got)
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	f := newFakeLookup()
	f.results["ta"] = []domain.Suggestion{{Symbol: "TA"}}
	f.results["tat"] = []domain.Suggestion{{Symbol: "TATA"}}
	f.gate = make(chan struct{})
	c, clock, _ := newChannel(t, f)

	c.OnInput("ta")
	armed(t, clock)
	clock.Advance(300 * time.Millisecond)

	// Wait for the "ta" lookup to be in flight, then type on.
	deadline := time.Now().Add(time.Second)
	for len(f.calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("lookup never started")
		}
		time.Sleep(time.Millisecond)
	}
	c.OnInput("tat")
	f.gate <- struct{}{} // "ta" completes after the text changed

	time.Sleep(20 * time.Millisecond)
	st := c.State()
	if len(st.Suggestions) != 0 || st.Visible {
		t.Errorf("stale result applied: %+v", st)
	}
	if !st.Pending {
		t.Error("newer lookup should still be pending")
	}

	f.mu.Lock()
	f.gate = nil
	f.mu.Unlock()
	if !c.Flush() {
		t.Fatal("Flush found nothing pending")
	}
	st = c.State()
	if len(st.Suggestions) != 1 || st.Suggestions[0].Symbol != "TATA" {
		t.Errorf("suggestions = %+v, want TATA", st.Suggestions)
	}
}

func TestErrorLeavesSuggestions(t *testing.T) {
	f := newFakeLookup()
	f.results["inf"] = []domain.Suggestion{{Symbol: "INFY"}}
	c, _, _ := newChannel(t, f)

	c.OnInput("inf")
	c.Flush()
	before := c.State()

	f.mu.Lock()
	f.err = errors.New("boom")
	f.mu.Unlock()
	c.OnInput("infy")
	c.Flush()

	st := c.State()
	if len(st.Suggestions) != len(before.Suggestions) || !st.Visible {
		t.Errorf("state after error = %+v, want previous suggestions kept", st)
	}
	if st.Pending {
		t.Error("Pending still set after failed lookup")
	}
}

func TestEmptyResultHides(t *testing.T) {
	f := newFakeLookup()
	c, _, _ := newChannel(t, f)

	c.OnInput("zz")
	c.Flush()
	if st := c.State(); st.Visible {
		t.Errorf("Visible with no results: %+v", st)
	}
}

func TestSelectAndReset(t *testing.T) {
	f := newFakeLookup()
	f.results["rel"] = []domain.Suggestion{{Symbol: "RELIANCE.NS", Name: "Reliance Industries"}}
	c, _, _ := newChannel(t, f)

	c.OnInput("rel")
	c.Flush()
	c.Select(c.State().Suggestions[0])
	st := c.State()
	if st.QueryText != "RELIANCE.NS" || st.Visible {
		t.Errorf("after Select = %+v", st)
	}

	c.Reset()
	if st := c.State(); st.QueryText != "" || len(st.Suggestions) != 0 {
		t.Errorf("after Reset = %+v", st)
	}
}
