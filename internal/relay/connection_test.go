package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/internal/event"
	eventmock "github.com/voxbridge/voxbridge/internal/event/mock"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	sttmock "github.com/voxbridge/voxbridge/pkg/provider/stt/mock"
	trmock "github.com/voxbridge/voxbridge/pkg/provider/translate/mock"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	ttsmock "github.com/voxbridge/voxbridge/pkg/provider/tts/mock"
)

// connFixture is a full two-party pipeline with a mock STT stream on the
// initiator side.
type connFixture struct {
	registry *room.Registry
	roomID   string
	conn     *Connection
	stream   *sttmock.Stream
	sttProv  *sttmock.Provider
	ownSink  *eventmock.Sink
	peerSink *eventmock.Sink
}

func newConnFixture(t *testing.T, silence time.Duration) *connFixture {
	t.Helper()

	registry := room.NewRegistry(nil)
	info := registry.Create("en", "Alex")
	if _, err := registry.Join(info.ID, "es", "Maria"); err != nil {
		t.Fatalf("join: %v", err)
	}

	peerSink := &eventmock.Sink{}
	if err := registry.Attach(info.ID, room.RolePeer, peerSink, "es", "Maria"); err != nil {
		t.Fatalf("attach peer: %v", err)
	}

	r := New(RelayConfig{
		Registry:    registry,
		Translator:  &trmock.Provider{Result: "Hola amigo"},
		Synthesizer: &ttsmock.Provider{Result: tts.Audio{PCM: []byte{1, 0}, SampleRate: 48000}},
	})

	stream := sttmock.NewStream()
	sttProv := &sttmock.Provider{Stream: stream}
	ownSink := &eventmock.Sink{}

	conn := NewConnection(ConnectionConfig{
		RoomID:         info.ID,
		Role:           room.RoleInitiator,
		Language:       "en",
		Name:           "Alex",
		Sink:           ownSink,
		Registry:       registry,
		Relay:          r,
		STT:            sttProv,
		SilenceTimeout: silence,
		StreamMaxAge:   time.Minute,
		SampleRate:     48000,
	})
	if err := conn.Register(context.Background()); err != nil {
		t.Fatalf("register: %v", err)
	}

	return &connFixture{
		registry: registry,
		roomID:   info.ID,
		conn:     conn,
		stream:   stream,
		sttProv:  sttProv,
		ownSink:  ownSink,
		peerSink: peerSink,
	}
}

func TestConnection_FullRound(t *testing.T) {
	f := newConnFixture(t, 40*time.Millisecond)
	ctx := context.Background()

	if err := f.conn.HandleAudio(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("audio: %v", err)
	}

	f.stream.FinalsCh <- stt.Transcript{Text: "Hello", IsFinal: true}
	f.stream.PartialsCh <- stt.Transcript{Text: "Hello there"}
	f.stream.FinalsCh <- stt.Transcript{Text: "there", IsFinal: true}

	// The speaker sees their own live-typing indicator.
	waitFor(t, func() bool {
		return len(f.ownSink.EventsOf(event.TypeTranscriptInterim)) >= 1
	}, "interim preview not delivered")

	// After the pause the sentence goes out, translated, to both sides.
	waitFor(t, func() bool {
		return len(f.peerSink.EventsOf(event.TypeTranslation)) == 1
	}, "sentence not relayed after silence")

	for name, sink := range map[string]*eventmock.Sink{"own": f.ownSink, "partner": f.peerSink} {
		tr := sink.EventsOf(event.TypeTranslation)[0].(event.Translation)
		if tr.OriginalText != "Hello there" {
			t.Errorf("%s originalText = %q, want \"Hello there\"", name, tr.OriginalText)
		}
		if tr.TranslatedText != "Hola amigo" {
			t.Errorf("%s translatedText = %q", name, tr.TranslatedText)
		}
	}

	waitFor(t, func() bool {
		return len(f.peerSink.EventsOf(event.TypeAudioPlayback)) == 1
	}, "partner did not receive audio")
	ap := f.peerSink.EventsOf(event.TypeAudioPlayback)[0].(event.AudioPlayback)
	if ap.Format != "wav" {
		t.Errorf("audio format = %q, want wav", ap.Format)
	}
	if n := len(f.ownSink.EventsOf(event.TypeAudioPlayback)); n != 0 {
		t.Errorf("speaker received %d audio events, want 0", n)
	}
}

func TestConnection_Register_NotifiesPartner(t *testing.T) {
	f := newConnFixture(t, time.Hour)

	evs := f.peerSink.EventsOf(event.TypeUserJoined)
	if len(evs) != 1 {
		t.Fatalf("partner got %d user_joined events, want 1", len(evs))
	}
	uj := evs[0].(event.UserJoined)
	if uj.Name != "Alex" || uj.Language != "en" {
		t.Errorf("user_joined = %+v", uj)
	}
}

func TestConnection_Register_SlotOccupied(t *testing.T) {
	f := newConnFixture(t, time.Hour)

	dup := NewConnection(ConnectionConfig{
		RoomID:         f.roomID,
		Role:           room.RoleInitiator,
		Language:       "en",
		Name:           "Imposter",
		Sink:           &eventmock.Sink{},
		Registry:       f.registry,
		Relay:          f.conn.relay,
		STT:            f.sttProv,
		SilenceTimeout: time.Hour,
		StreamMaxAge:   time.Minute,
		SampleRate:     48000,
	})
	err := dup.Register(context.Background())
	if !errors.Is(err, room.ErrSlotOccupied) {
		t.Errorf("err = %v, want ErrSlotOccupied", err)
	}
}

func TestConnection_TeardownFlushesBeforeUserLeft(t *testing.T) {
	f := newConnFixture(t, time.Hour) // silence timer never fires
	ctx := context.Background()

	_ = f.conn.HandleAudio(ctx, []byte{1})
	f.stream.FinalsCh <- stt.Transcript{Text: "I am", IsFinal: true}
	waitFor(t, func() bool { return f.conn.acc.Committed() == "I am" }, "final not delivered")

	f.conn.Close(ctx)

	evs := f.peerSink.Events()
	var sawSentence bool
	for _, e := range evs {
		switch e := e.(type) {
		case event.Translation:
			if e.OriginalText != "I am" {
				t.Errorf("flushed sentence = %q, want \"I am\"", e.OriginalText)
			}
			sawSentence = true
		case event.UserLeft:
			if !sawSentence {
				t.Error("user_left arrived before the flushed sentence")
			}
		}
	}
	if !sawSentence {
		t.Error("pending sentence was not flushed on teardown")
	}
	if n := len(f.peerSink.EventsOf(event.TypeUserLeft)); n != 1 {
		t.Errorf("user_left events = %d, want 1", n)
	}

	// The slot is free again.
	if f.registry.Sink(f.roomID, room.RoleInitiator) != nil {
		t.Error("slot should be detached after Close")
	}
	if f.stream.CloseCallCount == 0 {
		t.Error("recognition stream should be closed on teardown")
	}
}

func TestConnection_TeardownPromotesInterim(t *testing.T) {
	f := newConnFixture(t, time.Hour)
	ctx := context.Background()

	_ = f.conn.HandleAudio(ctx, []byte{1})
	f.stream.PartialsCh <- stt.Transcript{Text: "only provisional"}
	waitFor(t, func() bool {
		return len(f.ownSink.EventsOf(event.TypeTranscriptInterim)) == 1
	}, "interim not delivered")

	f.conn.Close(ctx)

	evs := f.peerSink.EventsOf(event.TypeTranslation)
	if len(evs) != 1 {
		t.Fatalf("translation events = %d, want the promoted preview", len(evs))
	}
	if tr := evs[0].(event.Translation); tr.OriginalText != "only provisional" {
		t.Errorf("flushed sentence = %q", tr.OriginalText)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	f := newConnFixture(t, time.Hour)
	ctx := context.Background()

	f.conn.Close(ctx)
	f.conn.Close(ctx)

	if n := len(f.peerSink.EventsOf(event.TypeUserLeft)); n != 1 {
		t.Errorf("user_left events = %d, want 1 across repeated Close", n)
	}
}

func TestConnection_CloseWithoutAudio(t *testing.T) {
	f := newConnFixture(t, time.Hour)

	// Never sent audio: no stream, nothing committed. Close must still
	// detach and notify cleanly.
	f.conn.Close(context.Background())

	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 0 {
		t.Errorf("translation events = %d, want 0", n)
	}
	if n := len(f.peerSink.EventsOf(event.TypeUserLeft)); n != 1 {
		t.Errorf("user_left events = %d, want 1", n)
	}
}

func TestConnection_EmptyAudioIgnored(t *testing.T) {
	f := newConnFixture(t, time.Hour)

	if err := f.conn.HandleAudio(context.Background(), nil); err != nil {
		t.Fatalf("empty audio: %v", err)
	}
	if f.sttProv.StartStreamCount() != 0 {
		t.Error("empty fragment must not open a stream")
	}
}
