package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rayamira/concierge/backend/internal/model/persona"
)

// fakeEngine blocks in Play until released or the context is cancelled.
type fakeEngine struct {
	mu      sync.Mutex
	voices  []Voice
	playing []Utterance
	release chan struct{}
	audio   [][]byte
}

func newFakeEngine(voices ...Voice) *fakeEngine {
	return &fakeEngine{voices: voices, release: make(chan struct{})}
}

func (e *fakeEngine) Voices() []Voice {
	return e.voices
}

func (e *fakeEngine) Play(ctx context.Context, u Utterance) error {
	e.mu.Lock()
	e.playing = append(e.playing, u)
	e.mu.Unlock()
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) PlayAudio(ctx context.Context, personaID string, audio []byte) error {
	e.mu.Lock()
	e.audio = append(e.audio, audio)
	e.mu.Unlock()
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) utterances() []Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Utterance(nil), e.playing...)
}

func testPersona() persona.Persona {
	for _, p := range persona.Seed() {
		if p.ID == "mira" {
			return p
		}
	}
	return persona.Persona{}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback completion")
	}
}

func TestSpeakNaturalCompletionClearsSignal(t *testing.T) {
	engine := newFakeEngine(Voice{Name: "Samantha", Language: "en-US"})
	player := NewPlayer()
	player.Attach(engine)

	done := player.Speak(context.Background(), testPersona(), "hello", "")
	if !player.IsSpeaking() {
		t.Fatal("expected speaking signal after Speak")
	}

	close(engine.release)
	waitClosed(t, done)

	if player.IsSpeaking() {
		t.Fatal("speaking signal not cleared after completion")
	}
}

func TestSpeakInterruptsCurrentUtterance(t *testing.T) {
	engine := newFakeEngine(Voice{Name: "Samantha", Language: "en-US"})
	player := NewPlayer()
	player.Attach(engine)

	first := player.Speak(context.Background(), testPersona(), "first", "")
	second := player.Speak(context.Background(), testPersona(), "second", "")

	// Interrupting closes the first done channel without releasing the engine.
	waitClosed(t, first)
	if !player.IsSpeaking() {
		t.Fatal("second utterance should keep the speaking signal set")
	}

	close(engine.release)
	waitClosed(t, second)

	utterances := engine.utterances()
	if len(utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utterances))
	}
	if utterances[1].Text != "second" {
		t.Fatalf("unexpected second utterance: %q", utterances[1].Text)
	}
}

func TestStopIsIdempotentWhenIdle(t *testing.T) {
	player := NewPlayer()
	player.Stop()
	player.Stop()
	if player.IsSpeaking() {
		t.Fatal("idle player reports speaking")
	}
}

func TestStopEndsPlayback(t *testing.T) {
	engine := newFakeEngine(Voice{Name: "Samantha", Language: "en-US"})
	player := NewPlayer()
	player.Attach(engine)

	done := player.Speak(context.Background(), testPersona(), "hello", "")
	player.Stop()
	waitClosed(t, done)

	if player.IsSpeaking() {
		t.Fatal("speaking signal not cleared after Stop")
	}
}

func TestSpeakWithoutEngineCompletesImmediately(t *testing.T) {
	player := NewPlayer()
	done := player.Speak(context.Background(), testPersona(), "hello", "")
	waitClosed(t, done)
	if player.IsSpeaking() {
		t.Fatal("speaking signal stuck without engine")
	}
}

func TestSpeakPrerenderedAudioSkipsSynthesis(t *testing.T) {
	engine := newFakeEngine() // no voices on purpose
	player := NewPlayer()
	player.Attach(engine)

	// "aGk=" is base64 for "hi".
	done := player.Speak(context.Background(), testPersona(), "ignored", "aGk=")
	close(engine.release)
	waitClosed(t, done)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.audio) != 1 || string(engine.audio[0]) != "hi" {
		t.Fatalf("expected decoded audio payload, got %v", engine.audio)
	}
	if len(engine.playing) != 0 {
		t.Fatal("synthesis path used despite prerendered audio")
	}
}

func TestSpeakBadAudioPayloadIsPlaybackFailureOnly(t *testing.T) {
	engine := newFakeEngine(Voice{Name: "Samantha", Language: "en-US"})
	player := NewPlayer()
	player.Attach(engine)

	done := player.Speak(context.Background(), testPersona(), "text", "!!!not-base64!!!")
	waitClosed(t, done)
	if player.IsSpeaking() {
		t.Fatal("speaking signal stuck after decode failure")
	}
}

func TestSelectVoiceOrdering(t *testing.T) {
	policy := persona.VoicePolicy{NamePatterns: []string{"Samantha", "Karen"}}

	voices := []Voice{
		{Name: "Karen", Language: "en-AU"},
		{Name: "Samantha", Language: "en-GB"},
		{Name: "Exact", Language: "en-US"},
	}
	got, ok := SelectVoice(policy, "en-US", voices)
	if !ok || got.Name != "Exact" {
		t.Fatalf("locale match should win, got %+v", got)
	}

	voices = voices[:2]
	got, ok = SelectVoice(policy, "en-US", voices)
	if !ok || got.Name != "Samantha" {
		t.Fatalf("first name pattern should win, got %+v", got)
	}

	voices = []Voice{{Name: "Other", Language: "en-IN"}, {Name: "Foreign", Language: "fr-FR"}}
	got, ok = SelectVoice(policy, "en-US", voices)
	if !ok || got.Name != "Other" {
		t.Fatalf("language family should win, got %+v", got)
	}

	voices = []Voice{{Name: "Foreign", Language: "fr-FR"}}
	got, ok = SelectVoice(policy, "en-US", voices)
	if !ok || got.Name != "Foreign" {
		t.Fatalf("fallback voice expected, got %+v", got)
	}

	if _, ok = SelectVoice(policy, "en-US", nil); ok {
		t.Fatal("no voices should report not ok")
	}
}
