package transport

import (
	"context"
	"sync"

	"github.com/vinayprograms/automationkit/envelope"
)

// RecordingSender keeps every envelope it is given. Used by tests and dry
// runs.
type RecordingSender struct {
	mu        sync.Mutex
	envelopes []*envelope.Envelope

	// Err, when set, is returned by Send instead of recording.
	Err error
}

// Send records env.
func (s *RecordingSender) Send(ctx context.Context, env *envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.envelopes = append(s.envelopes, env)
	return nil
}

// Envelopes returns the recorded envelopes in send order.
func (s *RecordingSender) Envelopes() []*envelope.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*envelope.Envelope(nil), s.envelopes...)
}

// Reset forgets the recorded envelopes.
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes = nil
}
