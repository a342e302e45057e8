package voice

import (
	"context"
	"encoding/base64"
	"log"
	"sync"

	"github.com/rayamira/concierge/backend/internal/model/persona"
)

// Player owns the single in-flight utterance. Starting a new one interrupts
// the current one; the dual-reply sequence instead waits on the returned done
// channel before speaking again, so the two voices never overlap.
type Player struct {
	mu       sync.Mutex
	engine   Engine
	speaking bool
	cancel   context.CancelFunc
	done     chan struct{}
	onChange func(speaking bool)
}

// NewPlayer returns a Player with no output engine attached. Speaking
// without an engine completes immediately as a playback failure and never
// blocks the turn flow.
func NewPlayer() *Player {
	return &Player{}
}

// SetOnChange registers a callback invoked whenever the speaking signal
// flips. Used to feed the conversation event stream.
func (p *Player) SetOnChange(fn func(bool)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Attach binds the playback capability, typically on WebSocket connect.
func (p *Player) Attach(e Engine) {
	p.mu.Lock()
	p.engine = e
	p.mu.Unlock()
}

// Detach removes the capability and stops anything in flight.
func (p *Player) Detach() {
	p.mu.Lock()
	p.engine = nil
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsSpeaking reports whether an utterance is currently audible.
func (p *Player) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Stop forcibly ends playback. Safe to call at any time, including when
// nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Speak plays a reply for the given persona. A non-empty audioBase64 payload
// plays directly; otherwise a voice is selected by the persona's policy. The
// returned channel closes exactly once when playback ends for any reason.
func (p *Player) Speak(ctx context.Context, pa persona.Persona, text, audioBase64 string) <-chan struct{} {
	p.mu.Lock()
	if p.cancel != nil {
		// Interrupt whatever is currently speaking.
		p.cancel()
	}
	engine := p.engine
	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.speaking = true
	notify := p.onChange
	p.mu.Unlock()

	if notify != nil {
		notify(true)
	}

	go p.play(playCtx, cancel, done, engine, pa, text, audioBase64)
	return done
}

func (p *Player) play(ctx context.Context, cancel context.CancelFunc, done chan struct{}, engine Engine, pa persona.Persona, text, audioBase64 string) {
	defer p.finish(done, cancel)

	if engine == nil {
		log.Printf("[voice] no output engine attached, skipping playback for persona=%s", pa.ID)
		return
	}

	if audioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(audioBase64)
		if err != nil {
			log.Printf("[voice] failed to decode audio payload: %v", err)
			return
		}
		if err := engine.PlayAudio(ctx, pa.ID, audio); err != nil && ctx.Err() == nil {
			log.Printf("[voice] audio playback failed: %v", err)
		}
		return
	}

	selected, ok := SelectVoice(pa.Voice, pa.Language, engine.Voices())
	if !ok {
		log.Printf("[voice] no synthesis voices available for persona=%s", pa.ID)
		return
	}

	u := Utterance{
		PersonaID: pa.ID,
		Text:      text,
		Voice:     selected,
		Pitch:     pa.Voice.Pitch,
		Rate:      pa.Voice.Rate,
	}
	if u.Pitch == 0 {
		u.Pitch = 1.0
	}
	if u.Rate == 0 {
		u.Rate = 1.0
	}

	if err := engine.Play(ctx, u); err != nil && ctx.Err() == nil {
		log.Printf("[voice] synthesis playback failed: %v", err)
	}
}

// finish clears the speaking signal exactly once for the utterance owning
// done, then closes the channel. An interrupted utterance no longer owns the
// player state and only closes its own channel.
func (p *Player) finish(done chan struct{}, cancel context.CancelFunc) {
	var notify func(bool)
	p.mu.Lock()
	if p.done == done {
		p.speaking = false
		p.cancel = nil
		p.done = nil
		notify = p.onChange
	}
	p.mu.Unlock()

	cancel()
	close(done)
	if notify != nil {
		notify(false)
	}
}
