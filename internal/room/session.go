// Package room manages paired translation sessions: two-slot session records
// keyed by a short opaque identifier, with attach/detach of live connections
// and idle-session expiry.
package room

import (
	"errors"
	"time"

	"github.com/voxbridge/voxbridge/internal/event"
)

// Sentinel errors returned by the registry.
var (
	// ErrNotFound means the session identifier is unknown.
	ErrNotFound = errors.New("room: session not found")

	// ErrFull means the peer slot is already taken.
	ErrFull = errors.New("room: session is full")

	// ErrSlotOccupied means another live connection already holds the slot.
	ErrSlotOccupied = errors.New("room: slot already occupied")

	// ErrPartnerUnavailable means no partner connection with a known language
	// is currently attached.
	ErrPartnerUnavailable = errors.New("room: partner unavailable")
)

// Role identifies which session slot a participant occupies.
type Role string

const (
	RoleInitiator Role = "initiator"
	RolePeer      Role = "peer"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleInitiator || r == RolePeer
}

// Complement returns the opposite role.
func (r Role) Complement() Role {
	if r == RoleInitiator {
		return RolePeer
	}
	return RoleInitiator
}

// slot is one side of a session. The sink is nil while no socket is attached.
type slot struct {
	language string
	name     string
	joined   bool
	sink     event.Sink
}

// session is the registry's internal record. All access goes through the
// registry's lock; the struct itself carries no synchronisation.
type session struct {
	id        string
	createdAt time.Time

	initiator slot
	peer      slot

	// emptySince is the time both sinks became nil, zero while any
	// connection is attached. Drives idle expiry.
	emptySince time.Time
}

func (s *session) slotFor(r Role) *slot {
	if r == RoleInitiator {
		return &s.initiator
	}
	return &s.peer
}

func (s *session) attachedCount() int {
	n := 0
	if s.initiator.sink != nil {
		n++
	}
	if s.peer.sink != nil {
		n++
	}
	return n
}

// Participant is a read-only projection of one slot.
type Participant struct {
	Language string `json:"language,omitempty"`
	Name     string `json:"name,omitempty"`
	Joined   bool   `json:"joined"`
}

// Info is a read-only projection of a session record.
type Info struct {
	ID        string      `json:"roomId"`
	CreatedAt time.Time   `json:"createdAt"`
	Initiator Participant `json:"initiator"`
	Peer      Participant `json:"peer"`
}

// Partner describes the other side of a session for relay delivery.
type Partner struct {
	Role     Role
	Language string
	Name     string
	Sink     event.Sink
}

func (s *session) info() Info {
	return Info{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Initiator: Participant{Language: s.initiator.language, Name: s.initiator.name, Joined: s.initiator.joined},
		Peer:      Participant{Language: s.peer.language, Name: s.peer.name, Joined: s.peer.joined},
	}
}
