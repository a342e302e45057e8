package persona

import (
	"strings"

	"github.com/rayamira/concierge/backend/internal/analysis/lang"
)

// VoicePolicy describes how to pick a synthesis voice for a persona when no
// pre-rendered audio is supplied. NamePatterns are tried in order as
// case-insensitive substring matches against available voice names.
type VoicePolicy struct {
	NamePatterns []string `json:"namePatterns"`
	Pitch        float32  `json:"pitch"`
	Rate         float32  `json:"rate"`
}

// Persona captures the display and voice attributes of one of the two fixed
// assistant identities exposed to the frontend.
type Persona struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Emoji      string      `json:"emoji"`
	Color      string      `json:"color"`
	LightColor string      `json:"lightColor"`
	Language   string      `json:"language"` // BCP-47 tag used for capture and synthesis
	Greeting   string      `json:"greeting"`
	ErrorLine  string      `json:"-"` // locale-appropriate dispatch failure message
	Voice      VoicePolicy `json:"voice"`
}

// LanguageFamily returns the broad language component of the persona's tag,
// e.g. "ar" for "ar-AE".
func (p Persona) LanguageFamily() string {
	family, _, _ := strings.Cut(p.Language, "-")
	return strings.ToLower(family)
}

// Classified reports the classifier language this persona answers for.
func (p Persona) Classified() lang.Language {
	if p.LanguageFamily() == "ar" {
		return lang.Arabic
	}
	return lang.English
}

// Seed provides the two fixed airport assistant personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:         "raya",
			Name:       "Raya",
			Emoji:      "🇦🇪",
			Color:      "#00732F",
			LightColor: "#E8F5E9",
			Language:   "ar-AE",
			Greeting:   "مرحباً! أنا رايا، مساعدتك في مطار أبوظبي الدولي. كيف يمكنني مساعدتك اليوم؟",
			ErrorLine:  "عذراً، حدث خطأ. يرجى المحاولة مرة أخرى.",
			Voice: VoicePolicy{
				NamePatterns: []string{"Majed", "Laila", "Tarik", "Arabic", "العربية"},
				Pitch:        1.0,
				Rate:         0.9,
			},
		},
		{
			ID:         "mira",
			Name:       "Mira",
			Emoji:      "🌍",
			Color:      "#C8102E",
			LightColor: "#FFEBEE",
			Language:   "en-US",
			Greeting:   "Hello! I'm Mira, your Abu Dhabi Airport assistant. How can I help you today?",
			ErrorLine:  "Sorry, I encountered an error. Please try again.",
			Voice: VoicePolicy{
				NamePatterns: []string{"Samantha", "Karen", "Victoria", "Google US English"},
				Pitch:        1.05,
				Rate:         1.0,
			},
		},
	}
}
