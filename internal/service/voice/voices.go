package voice

import (
	"context"
	"strings"

	"github.com/rayamira/concierge/backend/internal/model/persona"
)

// Voice is one synthesis voice reported by the output capability.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"lang"`
}

// Utterance is a single synthesis request handed to the output capability.
type Utterance struct {
	PersonaID string  `json:"personaId"`
	Text      string  `json:"text"`
	Voice     Voice   `json:"voice"`
	Pitch     float32 `json:"pitch"`
	Rate      float32 `json:"rate"`
}

// Engine is the playback capability the player drives. Play and PlayAudio
// block until the utterance finishes, fails, or ctx is cancelled. The
// production engine is the browser reached over the speech WebSocket.
type Engine interface {
	Voices() []Voice
	Play(ctx context.Context, u Utterance) error
	PlayAudio(ctx context.Context, personaID string, audio []byte) error
}

// SelectVoice picks a synthesis voice for a persona from the available set.
// Match order: exact locale tag, then the policy's name patterns, then any
// voice in the persona's language family, then the first voice. Returns
// false only when no voices are available at all.
func SelectVoice(policy persona.VoicePolicy, languageTag string, voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	for _, v := range voices {
		if strings.EqualFold(v.Language, languageTag) {
			return v, true
		}
	}

	for _, pattern := range policy.NamePatterns {
		needle := strings.ToLower(pattern)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), needle) {
				return v, true
			}
		}
	}

	family, _, _ := strings.Cut(languageTag, "-")
	family = strings.ToLower(family)
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Language), family) {
			return v, true
		}
	}

	return voices[0], true
}
