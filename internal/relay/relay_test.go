package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/voxbridge/voxbridge/internal/event"
	eventmock "github.com/voxbridge/voxbridge/internal/event/mock"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/audio"
	trmock "github.com/voxbridge/voxbridge/pkg/provider/translate/mock"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	ttsmock "github.com/voxbridge/voxbridge/pkg/provider/tts/mock"
)

// relayFixture is a paired session with both participants attached, the
// initiator speaking English and the peer Spanish.
type relayFixture struct {
	registry   *room.Registry
	roomID     string
	conn       *Connection // initiator side, the speaker under test
	ownSink    *eventmock.Sink
	peerSink   *eventmock.Sink
	translator *trmock.Provider
	synth      *ttsmock.Provider
	relay      *Relay
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	registry := room.NewRegistry(nil)
	info := registry.Create("en", "Alex")
	if _, err := registry.Join(info.ID, "es", "Maria"); err != nil {
		t.Fatalf("join: %v", err)
	}

	ownSink, peerSink := &eventmock.Sink{}, &eventmock.Sink{}
	if err := registry.Attach(info.ID, room.RoleInitiator, ownSink, "en", "Alex"); err != nil {
		t.Fatalf("attach initiator: %v", err)
	}
	if err := registry.Attach(info.ID, room.RolePeer, peerSink, "es", "Maria"); err != nil {
		t.Fatalf("attach peer: %v", err)
	}

	translator := &trmock.Provider{Result: "Hola"}
	synth := &ttsmock.Provider{Result: tts.Audio{PCM: []byte{1, 0, 2, 0}, SampleRate: 48000}}
	r := New(RelayConfig{
		Registry:    registry,
		Translator:  translator,
		Synthesizer: synth,
	})

	conn := &Connection{
		RoomID:   info.ID,
		Role:     room.RoleInitiator,
		Language: "en",
		Name:     "Alex",
		sink:     ownSink,
		registry: registry,
		relay:    r,
	}

	return &relayFixture{
		registry:   registry,
		roomID:     info.ID,
		conn:       conn,
		ownSink:    ownSink,
		peerSink:   peerSink,
		translator: translator,
		synth:      synth,
		relay:      r,
	}
}

func TestProcessSentence_DualTextAndPartnerAudio(t *testing.T) {
	f := newRelayFixture(t)

	f.relay.ProcessSentence(context.Background(), f.conn, "Hello there")

	wantEv := event.Translation{
		OriginalText:   "Hello there",
		TranslatedText: "Hola",
		FromUser:       "initiator",
		FromLanguage:   "en",
		ToLanguage:     "es",
	}
	for name, sink := range map[string]*eventmock.Sink{"own": f.ownSink, "partner": f.peerSink} {
		evs := sink.EventsOf(event.TypeTranslation)
		if len(evs) != 1 {
			t.Fatalf("%s sink got %d translation events, want 1", name, len(evs))
		}
		if evs[0] != wantEv {
			t.Errorf("%s translation = %+v, want %+v", name, evs[0], wantEv)
		}
	}

	// Audio goes to the partner only, WAV-wrapped.
	if n := len(f.ownSink.EventsOf(event.TypeAudioPlayback)); n != 0 {
		t.Errorf("own sink got %d audio events, want 0", n)
	}
	audioEvs := f.peerSink.EventsOf(event.TypeAudioPlayback)
	if len(audioEvs) != 1 {
		t.Fatalf("partner got %d audio events, want 1", len(audioEvs))
	}
	ap := audioEvs[0].(event.AudioPlayback)
	if ap.Format != "wav" {
		t.Errorf("format = %q, want wav", ap.Format)
	}
	wav, err := base64.StdEncoding.DecodeString(ap.Audio)
	if err != nil {
		t.Fatalf("audio payload is not base64: %v", err)
	}
	format, pcm, err := audio.UnwrapPCM(wav)
	if err != nil {
		t.Fatalf("audio payload is not a valid container: %v", err)
	}
	if format.SampleRate != 48000 || string(pcm) != string([]byte{1, 0, 2, 0}) {
		t.Errorf("unwrapped audio = %+v %v", format, pcm)
	}

	// Synthesis renders the translated text in the partner's language.
	if f.synth.Calls[0].Text != "Hola" || f.synth.Calls[0].Language != "es" {
		t.Errorf("synthesize call = %+v", f.synth.Calls[0])
	}
}

func TestProcessSentence_SingleFlight(t *testing.T) {
	f := newRelayFixture(t)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	f.translator.Fn = func(text, _, _ string) (string, error) {
		close(inFlight)
		<-release
		return "Hola", nil
	}

	done := make(chan struct{})
	go func() {
		f.relay.ProcessSentence(context.Background(), f.conn, "first sentence")
		close(done)
	}()
	<-inFlight

	// Arrives while the first round is still translating: dropped, not queued.
	f.relay.ProcessSentence(context.Background(), f.conn, "second sentence")

	close(release)
	<-done

	if n := f.translator.CallCount(); n != 1 {
		t.Errorf("translate calls = %d, want 1", n)
	}
	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 1 {
		t.Errorf("partner translation events = %d, want 1 (second sentence dropped)", n)
	}

	// The flag is released: a later sentence goes through.
	f.translator.Fn = nil
	f.relay.ProcessSentence(context.Background(), f.conn, "third sentence")
	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 2 {
		t.Errorf("partner translation events = %d, want 2", n)
	}
}

func TestProcessSentence_SameBaseShortCircuit(t *testing.T) {
	f := newRelayFixture(t)
	f.conn.Language = "es-MX" // same base as the peer's "es"

	f.relay.ProcessSentence(context.Background(), f.conn, "Buenos días")

	if n := f.translator.CallCount(); n != 0 {
		t.Errorf("translate calls = %d, want 0 for same-base languages", n)
	}
	evs := f.peerSink.EventsOf(event.TypeTranslation)
	if len(evs) != 1 {
		t.Fatalf("partner translation events = %d, want 1", len(evs))
	}
	tr := evs[0].(event.Translation)
	if tr.TranslatedText != "Buenos días" {
		t.Errorf("translated = %q, want input unchanged", tr.TranslatedText)
	}
}

func TestProcessSentence_TranslationFailurePassThrough(t *testing.T) {
	f := newRelayFixture(t)
	f.translator.Err = errors.New("backend down")

	f.relay.ProcessSentence(context.Background(), f.conn, "Hello there")

	evs := f.peerSink.EventsOf(event.TypeTranslation)
	if len(evs) != 1 {
		t.Fatalf("partner translation events = %d, want 1", len(evs))
	}
	tr := evs[0].(event.Translation)
	if tr.TranslatedText != "Hello there" {
		t.Errorf("translated = %q, want pass-through of original", tr.TranslatedText)
	}
	// The pass-through sentence is still synthesized for the partner.
	if f.synth.CallCount() != 1 {
		t.Errorf("synthesize calls = %d, want 1", f.synth.CallCount())
	}
}

func TestProcessSentence_SynthesisFailureNonFatal(t *testing.T) {
	f := newRelayFixture(t)
	f.synth.Err = errors.New("voice service down")

	f.relay.ProcessSentence(context.Background(), f.conn, "Hello there")

	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 1 {
		t.Errorf("text delivery should succeed despite synthesis failure, got %d events", n)
	}
	if n := len(f.peerSink.EventsOf(event.TypeAudioPlayback)); n != 0 {
		t.Errorf("audio events = %d, want 0", n)
	}
}

func TestProcessSentence_NoPartner(t *testing.T) {
	f := newRelayFixture(t)
	f.registry.Detach(f.roomID, room.RolePeer, f.peerSink)

	f.relay.ProcessSentence(context.Background(), f.conn, "talking to myself")

	if f.translator.CallCount() != 0 {
		t.Error("no translation should happen without a partner")
	}
	if len(f.ownSink.Events()) != 0 {
		t.Error("no delivery should happen without a partner")
	}

	// The flag was released on the abort path.
	if err := f.registry.Attach(f.roomID, room.RolePeer, f.peerSink, "es", "Maria"); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	f.relay.ProcessSentence(context.Background(), f.conn, "back again")
	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 1 {
		t.Errorf("partner translation events = %d, want 1 after partner returns", n)
	}
}

func TestProcessSentence_EmptyText(t *testing.T) {
	f := newRelayFixture(t)

	f.relay.ProcessSentence(context.Background(), f.conn, "")

	if f.translator.CallCount() != 0 || len(f.peerSink.Events()) != 0 {
		t.Error("empty sentence must be a no-op")
	}
}

func TestProcessSentence_ClosedPartnerSocketSkipped(t *testing.T) {
	f := newRelayFixture(t)
	f.peerSink.SendErr = errors.New("websocket closed")

	// Must not panic or error out; delivery to a dead socket is skipped.
	f.relay.ProcessSentence(context.Background(), f.conn, "Hello there")

	if n := len(f.ownSink.EventsOf(event.TypeTranslation)); n != 1 {
		t.Errorf("own delivery should still happen, got %d events", n)
	}
}

func TestProcessSentence_NoSynthesizer(t *testing.T) {
	f := newRelayFixture(t)
	f.relay.synth = nil

	f.relay.ProcessSentence(context.Background(), f.conn, "Hello there")

	if n := len(f.peerSink.EventsOf(event.TypeTranslation)); n != 1 {
		t.Errorf("translation events = %d, want 1", n)
	}
	if n := len(f.peerSink.EventsOf(event.TypeAudioPlayback)); n != 0 {
		t.Errorf("audio events = %d, want 0 without a synthesizer", n)
	}
}
