package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// ErrAllFailed is returned when every transcriber in the chain failed or was
// rejected by its breaker.
var ErrAllFailed = errors.New("resilience: all transcribers failed")

type link struct {
	name    string
	tr      transcriber.Transcriber
	breaker *Breaker
}

// Transcriber tries a primary transcriber, then each fallback in the order
// added, skipping any whose breaker is open. The chain is fixed once calls
// begin: add fallbacks before first use.
type Transcriber struct {
	cfg   BreakerConfig
	chain []link
}

// Compile-time check: Transcriber must implement transcriber.Transcriber.
var _ transcriber.Transcriber = (*Transcriber)(nil)

// NewTranscriber wraps primary with a breaker configured by cfg.
func NewTranscriber(primary transcriber.Transcriber, name string, cfg BreakerConfig) *Transcriber {
	t := &Transcriber{cfg: cfg}
	t.AddFallback(name, primary)
	return t
}

// AddFallback appends tr to the chain with its own breaker.
func (t *Transcriber) AddFallback(name string, tr transcriber.Transcriber) {
	cfg := t.cfg
	cfg.Name = name
	t.chain = append(t.chain, link{name: name, tr: tr, breaker: NewBreaker(cfg)})
}

// Transcribe implements [transcriber.Transcriber]. Cancellation of ctx stops
// the chain immediately and is never counted against a breaker. On total
// failure the last cause is wrapped together with [ErrAllFailed].
func (t *Transcriber) Transcribe(ctx context.Context, text string, opts transcriber.Options) ([]transcriber.Segment, error) {
	var lastErr error
	for _, l := range t.chain {
		var segs []transcriber.Segment
		err := l.breaker.Execute(func() error {
			var err error
			segs, err = l.tr.Transcribe(ctx, text, opts)
			return err
		}, func(error) bool { return ctx.Err() != nil })
		if err == nil {
			return segs, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping transcriber (circuit open)", "transcriber", l.name)
		} else {
			slog.Warn("transcriber failed, trying next", "transcriber", l.name, "err", err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// State returns the breaker state of the named chain member, and false when
// no member has that name.
func (t *Transcriber) State(name string) (State, bool) {
	for _, l := range t.chain {
		if l.name == name {
			return l.breaker.State(), true
		}
	}
	return StateClosed, false
}

// Close closes every chain member that implements [io.Closer].
func (t *Transcriber) Close() error {
	var errs []error
	for _, l := range t.chain {
		if c, ok := l.tr.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("resilience: close %s: %w", l.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
