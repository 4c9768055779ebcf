package config

import (
	"errors"
	"testing"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	sttmock "github.com/voxbridge/voxbridge/pkg/provider/stt/mock"
	"github.com/voxbridge/voxbridge/pkg/provider/translate"
	trmock "github.com/voxbridge/voxbridge/pkg/provider/translate/mock"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	ttsmock "github.com/voxbridge/voxbridge/pkg/provider/tts/mock"
)

func TestRegistry_RoundTrip(t *testing.T) {
	r := NewRegistry()

	var gotEntry ProviderEntry
	r.RegisterSTT("mock", func(e ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return &sttmock.Provider{}, nil
	})
	r.RegisterTranslate("mock", func(ProviderEntry) (translate.Provider, error) {
		return &trmock.Provider{}, nil
	})
	r.RegisterTTS("mock", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	entry := ProviderEntry{Name: "mock", APIKey: "k", Model: "m"}
	p, err := r.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.APIKey != "k" || gotEntry.Model != "m" {
		t.Errorf("factory received entry %+v", gotEntry)
	}

	if _, err := r.CreateTranslate(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTranslate: %v", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.CreateSTT(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateTranslate(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTranslate err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateTTS(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry()

	r.RegisterTranslate("mock", func(ProviderEntry) (translate.Provider, error) {
		return nil, errors.New("old factory")
	})
	r.RegisterTranslate("mock", func(ProviderEntry) (translate.Provider, error) {
		return &trmock.Provider{}, nil
	})

	p, err := r.CreateTranslate(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateTranslate: %v", err)
	}
	if p == nil {
		t.Fatal("expected provider from overwriting factory")
	}
}
