// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts streams with the expected
// StreamConfig. Use Stream to feed controlled Transcript values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	st := &mock.Stream{
//	    PartialsCh: make(chan stt.Transcript, 1),
//	    FinalsCh:   make(chan stt.Transcript, 1),
//	}
//	p := &mock.Provider{Stream: st}
//	handle, _ := p.StartStream(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is the StreamHandle returned by StartStream. If nil, StartStream
	// returns a new default Stream with buffered channels.
	Stream stt.StreamHandle

	// Streams, if non-empty, is consumed one handle per StartStream call,
	// taking precedence over Stream. Useful for testing stream rotation.
	Streams []stt.StreamHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns the configured handle.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.StreamHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if len(p.Streams) > 0 {
		s := p.Streams[0]
		p.Streams = p.Streams[1:]
		return s, nil
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return NewStream(), nil
}

// StartStreamCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartStreamCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Stream is a mock implementation of stt.StreamHandle. Callers send the
// Transcript values they want the consumer to receive on PartialsCh and
// FinalsCh, then close both (or call Close) when done.
type Stream struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials(). Callers own this
	// channel and are responsible for sending to and closing it in tests.
	PartialsCh chan stt.Transcript

	// FinalsCh is the channel returned by Finals(). Callers own this channel.
	FinalsCh chan stt.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// TermErr is returned by Err after the stream ends.
	TermErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SendAudioCalls records a copy of every chunk passed to SendAudio.
	SendAudioCalls [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closeOnce sync.Once
}

// NewStream returns a Stream with buffered transcript channels.
func NewStream() *Stream {
	return &Stream{
		PartialsCh: make(chan stt.Transcript, 16),
		FinalsCh:   make(chan stt.Transcript, 16),
	}
}

// SendAudio records the call and returns SendAudioErr.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, cp)
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Stream) Partials() <-chan stt.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Stream) Finals() <-chan stt.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// Err returns TermErr.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TermErr
}

// Close records the call, closes both transcript channels exactly once, and
// returns CloseErr.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	err := s.CloseErr
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.PartialsCh)
		close(s.FinalsCh)
	})
	return err
}

// End closes the transcript channels with the given terminal error, simulating
// a provider-side stream termination without a caller-initiated Close.
func (s *Stream) End(termErr error) {
	s.mu.Lock()
	s.TermErr = termErr
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.PartialsCh)
		close(s.FinalsCh)
	})
}

// SendAudioCount returns the number of SendAudio calls. Thread-safe.
func (s *Stream) SendAudioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// Ensure Stream implements stt.StreamHandle at compile time.
var _ stt.StreamHandle = (*Stream)(nil)
