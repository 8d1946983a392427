package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int, reset time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: maxFailures, ResetTimeout: reset})
	b.now = clock.Now
	return b, clock
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", b.maxFailures)
	}
	if b.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", b.resetTimeout)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3, time.Minute)

	for range 3 {
		if err := b.Execute(fail, nil); !errors.Is(err, errTest) {
			t.Fatalf("Execute = %v, want errTest", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil }, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn called while breaker open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3, time.Minute)

	_ = b.Execute(fail, nil)
	_ = b.Execute(fail, nil)
	_ = b.Execute(succeed, nil)
	_ = b.Execute(fail, nil)
	_ = b.Execute(fail, nil)

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed; success must reset the failure count", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{"probe succeeds", succeed, StateClosed},
		{"probe fails", fail, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, clock := newTestBreaker(1, time.Minute)
			_ = b.Execute(fail, nil)

			clock.Advance(time.Minute)
			if b.State() != StateHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", b.State())
			}
			_ = b.Execute(tt.probe, nil)
			if b.State() != tt.want {
				t.Errorf("state after probe = %v, want %v", b.State(), tt.want)
			}
		})
	}
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(1, time.Minute)
	_ = b.Execute(fail, nil)
	clock.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(func() error {
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started

	if err := b.Execute(succeed, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_IgnoredErrorsDoNotCount(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(1, time.Minute)

	ignoreCancel := func(err error) bool { return errors.Is(err, context.Canceled) }
	for range 5 {
		_ = b.Execute(func() error { return context.Canceled }, ignoreCancel)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed; ignored errors must not trip the breaker", b.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
