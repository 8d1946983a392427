// Package mock provides a test double for the transcriber.Transcriber interface.
//
// Use Transcriber to return pre-canned segments without a dictionary or a
// remote server, and to verify which text and options were submitted.
//
// Example:
//
//	tr := &mock.Transcriber{
//	    TranscribeResult: []transcriber.Segment{transcriber.Text("你好")},
//	}
//	segs, _ := tr.Transcribe(ctx, "你好", transcriber.Options{ZiSeparator: " "})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Text is the input text passed to Transcribe.
	Text string
	// Opts is the options value passed to Transcribe.
	Opts transcriber.Options
}

// Transcriber is a mock implementation of transcriber.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// TranscribeResult is returned by Transcribe when TranscribeErr is nil.
	TranscribeResult []transcriber.Segment

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeFunc, if set, replaces the canned result entirely.
	TranscribeFunc func(ctx context.Context, text string, opts transcriber.Options) ([]transcriber.Segment, error)

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns TranscribeResult, TranscribeErr,
// or the output of TranscribeFunc when it is set.
func (m *Transcriber) Transcribe(ctx context.Context, text string, opts transcriber.Options) ([]transcriber.Segment, error) {
	m.mu.Lock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Text: text, Opts: opts})
	fn := m.TranscribeFunc
	res, err := m.TranscribeResult, m.TranscribeErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, opts)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls recorded so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = nil
}

// Ensure Transcriber implements transcriber.Transcriber at compile time.
var _ transcriber.Transcriber = (*Transcriber)(nil)
