package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxbridge/voxbridge/internal/event"
	"github.com/voxbridge/voxbridge/internal/observe"
)

// idLength is the number of UUID characters kept for the shareable room id.
// Eight hex characters keep links short while collisions stay negligible at
// the session counts a single relay handles.
const idLength = 8

// Registry owns all live session records. It is the only state shared
// between connections; every mutation happens under its lock.
type Registry struct {
	metrics *observe.Metrics

	mu       sync.RWMutex
	sessions map[string]*session

	now func() time.Time // test hook
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *observe.Metrics) *Registry {
	return &Registry{
		metrics:  metrics,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Create makes a new session with the creator occupying the initiator slot
// and returns its projection. The peer slot stays empty until [Registry.Join].
func (r *Registry) Create(language, name string) Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newID()
	for r.sessions[id] != nil {
		id = newID()
	}

	s := &session{
		id:        id,
		createdAt: r.now(),
		initiator: slot{language: language, name: name, joined: true},
		// No sockets yet, eligible for expiry until someone attaches.
		emptySince: r.now(),
	}
	r.sessions[id] = s

	if r.metrics != nil {
		r.metrics.ActiveSessions.Add(context.Background(), 1)
	}
	slog.Info("session created", "room_id", id, "language", language)
	return s.info()
}

// Join fills the peer slot of an existing session. Returns [ErrNotFound] for
// unknown ids and [ErrFull] when the peer slot is already taken. On success
// the returned Info carries the creator's language and name for the joiner's
// UI bootstrap.
func (r *Registry) Join(id, language, name string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if s.peer.joined {
		return Info{}, fmt.Errorf("%w: %q", ErrFull, id)
	}

	s.peer = slot{language: language, name: name, joined: true}
	slog.Info("session joined", "room_id", id, "language", language)
	return s.info(), nil
}

// Get returns a read-only projection of the session, or [ErrNotFound].
func (r *Registry) Get(id string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.info(), nil
}

// Delete removes the session record and returns any still-attached sinks so
// the caller can close the underlying sockets. Returns [ErrNotFound] for
// unknown ids.
func (r *Registry) Delete(id string) ([]event.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.sessions, id)

	var sinks []event.Sink
	if s.initiator.sink != nil {
		sinks = append(sinks, s.initiator.sink)
	}
	if s.peer.sink != nil {
		sinks = append(sinks, s.peer.sink)
	}

	if r.metrics != nil {
		r.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	slog.Info("session deleted", "room_id", id)
	return sinks, nil
}

// Attach binds a live connection's sink to its slot, updating the slot's
// language and name when provided. Returns [ErrNotFound] for unknown ids and
// [ErrSlotOccupied] when another sink already holds the slot.
func (r *Registry) Attach(id string, role Role, sink event.Sink, language, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	sl := s.slotFor(role)
	if sl.sink != nil {
		return fmt.Errorf("%w: %s in %q", ErrSlotOccupied, role, id)
	}

	sl.sink = sink
	sl.joined = true
	if language != "" {
		sl.language = language
	}
	if name != "" {
		sl.name = name
	}
	s.emptySince = time.Time{}
	return nil
}

// Detach clears a slot's sink, but only if the slot still holds exactly the
// given sink. A stale teardown racing a reconnect must not evict the newer
// connection. When the last sink leaves, the session starts its idle-expiry
// clock.
func (r *Registry) Detach(id string, role Role, sink event.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	sl := s.slotFor(role)
	if sl.sink != sink {
		return
	}
	sl.sink = nil

	if s.attachedCount() == 0 {
		s.emptySince = r.now()
	}
}

// Partner resolves the opposite slot of role. Returns
// [ErrPartnerUnavailable] when no connection with a known language is
// attached there.
func (r *Registry) Partner(id string, role Role) (Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Partner{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	other := role.Complement()
	sl := s.slotFor(other)
	if sl.sink == nil || sl.language == "" {
		return Partner{}, fmt.Errorf("%w: %s in %q", ErrPartnerUnavailable, other, id)
	}
	return Partner{Role: other, Language: sl.language, Name: sl.name, Sink: sl.sink}, nil
}

// Sink returns the sink currently attached to a slot, or nil.
func (r *Registry) Sink(id string, role Role) event.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return s.slotFor(role).sink
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep deletes every session that has had no attached connections for at
// least idleExpiry. Returns the number of sessions removed.
func (r *Registry) Sweep(idleExpiry time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idleExpiry)
	removed := 0
	for id, s := range r.sessions {
		if s.emptySince.IsZero() || s.emptySince.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
		slog.Info("idle session expired", "room_id", id, "empty_since", s.emptySince)
	}

	if removed > 0 && r.metrics != nil {
		r.metrics.ActiveSessions.Add(context.Background(), int64(-removed))
	}
	return removed
}

// RunJanitor sweeps idle sessions every interval until ctx is cancelled.
// Run it in its own goroutine.
func (r *Registry) RunJanitor(ctx context.Context, interval, idleExpiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idleExpiry)
		}
	}
}

// newID derives a short shareable room id from a fresh UUID.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}
