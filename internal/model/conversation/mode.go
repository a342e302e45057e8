package conversation

import "fmt"

// Mode selects how a submitted message is routed to a persona.
type Mode string

const (
	// ModeDual routes every message to the persona the user selected.
	ModeDual Mode = "dual"
	// ModeSmart routes each message by its detected language.
	ModeSmart Mode = "smart"
)

// ParseMode validates a wire/mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDual, ModeSmart:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}
