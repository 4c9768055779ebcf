// Package event defines the JSON events exchanged over a participant's
// real-time channel, plus the [Sink] interface through which the relay
// pipeline delivers outbound events without knowing about the transport.
package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// Type tags every wire event.
type Type string

// Inbound event types (client → server).
const (
	TypeConnected  Type = "connected"
	TypeAudio      Type = "audio"
	TypeDisconnect Type = "disconnect"
	TypeStop       Type = "stop"
)

// Outbound event types (server → client).
const (
	TypeTranscriptInterim Type = "transcript_interim"
	TypeTranslation       Type = "translation"
	TypeAudioPlayback     Type = "audio_playback"
	TypeUserJoined        Type = "user_joined"
	TypeUserLeft          Type = "user_left"
)

// Event is any wire event. Implementations are plain structs whose JSON
// encoding, combined with the "type" tag added by [Marshal], forms the wire
// frame.
type Event interface {
	EventType() Type
}

// Connected is the first event a client sends after opening its channel,
// binding the socket to a session slot.
type Connected struct {
	RoomID     string `json:"roomId"`
	UserType   string `json:"userType"`
	MyLanguage string `json:"myLanguage"`
	MyName     string `json:"myName"`
}

func (Connected) EventType() Type { return TypeConnected }

// Audio carries one base64-encoded fragment of raw PCM16 mono audio.
type Audio struct {
	Audio string `json:"audio"`
}

func (Audio) EventType() Type { return TypeAudio }

// Disconnect asks the server to tear the connection down cleanly.
type Disconnect struct{}

func (Disconnect) EventType() Type { return TypeDisconnect }

// TranscriptInterim is a live-typing indicator carrying the speaker's own
// unconfirmed transcript preview.
type TranscriptInterim struct {
	Text string `json:"text"`
}

func (TranscriptInterim) EventType() Type { return TypeTranscriptInterim }

// Translation carries one finalized sentence with its translation. It is
// delivered to both participants.
type Translation struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	FromUser       string `json:"fromUser"`
	FromLanguage   string `json:"fromLanguage"`
	ToLanguage     string `json:"toLanguage"`
}

func (Translation) EventType() Type { return TypeTranslation }

// AudioPlayback carries base64-encoded synthesized audio for the receiving
// side to play. Format is always "wav".
type AudioPlayback struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

func (AudioPlayback) EventType() Type { return TypeAudioPlayback }

// UserJoined notifies a waiting participant that their partner arrived.
type UserJoined struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (UserJoined) EventType() Type { return TypeUserJoined }

// UserLeft notifies a participant that their partner disconnected.
type UserLeft struct{}

func (UserLeft) EventType() Type { return TypeUserLeft }

// Marshal encodes e as a JSON frame with the "type" tag spliced in alongside
// the event's own fields.
func Marshal(e Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", e.EventType(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", e.EventType(), err)
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["type"] = string(e.EventType())
	return json.Marshal(fields)
}

// Unmarshal decodes a JSON frame into its typed inbound event. Outbound
// types are rejected — clients do not send them.
func Unmarshal(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("event: decode frame: %w", err)
	}

	switch head.Type {
	case TypeConnected:
		var e Connected
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeAudio:
		var e Audio
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", head.Type, err)
		}
		return e, nil
	case TypeDisconnect, TypeStop:
		return Disconnect{}, nil
	default:
		return nil, fmt.Errorf("event: unknown inbound type %q", head.Type)
	}
}

// Sink delivers outbound events to one participant. Implementations must be
// safe for concurrent use; delivery to a closed channel returns an error,
// which callers treat as a skip rather than a failure.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
