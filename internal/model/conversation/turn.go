package conversation

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable entry in the conversation log. Assistant turns carry
// the persona display metadata and, when the answer service supplied one, a
// pre-rendered speech payload.
type Turn struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	PersonaID      string    `json:"personaId,omitempty"`
	CharacterName  string    `json:"character,omitempty"`
	Emoji          string    `json:"emoji,omitempty"`
	AudioBase64    string    `json:"audioBase64,omitempty"`
	DataSource     string    `json:"dataSource,omitempty"`
	HasAirportData bool      `json:"hasAirportData,omitempty"`
	IsError        bool      `json:"isError,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HistoryEntry is the projection of a turn sent to the answer service:
// role and content only, never audio or display metadata.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
