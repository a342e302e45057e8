package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rayamira/concierge/backend/internal/analysis/lang"
	"github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/dispatch"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrRequestPending  = errors.New("a request is already pending")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrUnknownMode     = errors.New("unknown mode")
)

// Defaults are the values restored by Reset.
type Defaults struct {
	Mode      conversation.Mode
	PersonaID string
	ReplyBoth bool
}

// EventKind labels conversation events pushed to subscribers.
type EventKind string

const (
	EventTurn      EventKind = "turn"
	EventState     EventKind = "state"
	EventSpeaking  EventKind = "speaking"
	EventListening EventKind = "listening"
)

// Event is one conversation change, consumed by the SSE stream.
type Event struct {
	Kind  EventKind          `json:"kind"`
	Turn  *conversation.Turn `json:"turn,omitempty"`
	State *Snapshot          `json:"state,omitempty"`
	Value bool               `json:"value"`
}

// Snapshot is a consistent read of the conversation for clients.
type Snapshot struct {
	Turns            []conversation.Turn `json:"turns"`
	Mode             conversation.Mode   `json:"mode"`
	ActivePersona    string              `json:"activePersona"`
	ReplyBoth        bool                `json:"replyBoth"`
	Pending          bool                `json:"pending"`
	DetectedLanguage lang.Language       `json:"detectedLanguage"`
	CaptureLanguage  string              `json:"captureLanguage"`
}

// State holds the append-only turn log and the active mode/persona flags.
// It is mutated only through the orchestrator's transitions; every mutation
// happens under one mutex, making it the single source of truth for the UI.
type State struct {
	mu       sync.RWMutex
	personas persona.Store
	defaults Defaults

	turns         []conversation.Turn
	mode          conversation.Mode
	activePersona string
	replyBoth     bool
	pending       bool
	detected      lang.Language

	subs      map[int]chan Event
	nextSubID int
	onReset   func()
}

// NewState builds the conversation state seeded with the configured defaults.
func NewState(personas persona.Store, defaults Defaults) *State {
	if defaults.Mode == "" {
		defaults.Mode = conversation.ModeDual
	}
	return &State{
		personas:      personas,
		defaults:      defaults,
		mode:          defaults.Mode,
		activePersona: defaults.PersonaID,
		replyBoth:     defaults.ReplyBoth,
		detected:      lang.English,
		subs:          make(map[int]chan Event),
	}
}

// SetOnReset registers a hook run by Reset, used to stop in-flight playback
// and capture.
func (s *State) SetOnReset(fn func()) {
	s.mu.Lock()
	s.onReset = fn
	s.mu.Unlock()
}

// Subscribe returns a channel of conversation events and a cancel function.
// Slow subscribers drop events rather than block the orchestrator.
func (s *State) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// publish delivers events to every subscriber. The read lock is held across
// the sends so a concurrent cancel cannot close a channel mid-delivery; the
// sends are non-blocking, so holding the lock cannot stall a writer.
func (s *State) publish(events ...Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// NotifySpeaking publishes a playback-signal change.
func (s *State) NotifySpeaking(speaking bool) {
	s.publish(Event{Kind: EventSpeaking, Value: speaking})
}

// NotifyListening publishes a capture-signal change.
func (s *State) NotifyListening(listening bool) {
	s.publish(Event{Kind: EventListening, Value: listening})
}

// Snapshot returns a consistent copy of the conversation.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	turns := make([]conversation.Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		Turns:            turns,
		Mode:             s.mode,
		ActivePersona:    s.activePersona,
		ReplyBoth:        s.replyBoth,
		Pending:          s.pending,
		DetectedLanguage: s.detected,
		CaptureLanguage:  s.captureLanguageLocked(),
	}
}

// Turns returns a copy of the turn log.
func (s *State) Turns() []conversation.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]conversation.Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// Mode returns the active routing mode.
func (s *State) Mode() conversation.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the routing mode. Past turns are never rewritten; the
// capture binding changes implicitly because it is recomputed on every read.
func (s *State) SetMode(mode conversation.Mode) error {
	if mode != conversation.ModeDual && mode != conversation.ModeSmart {
		return ErrUnknownMode
	}
	s.mu.Lock()
	s.mode = mode
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventState, State: &snap})
	return nil
}

// ActivePersonaID returns the identifier of the selected persona.
func (s *State) ActivePersonaID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePersona
}

// SelectPersona makes the given persona active. Selecting into an empty
// conversation seeds the persona's greeting turn.
func (s *State) SelectPersona(id string) error {
	p, ok := s.personas.FindByID(id)
	if !ok {
		return ErrPersonaNotFound
	}

	s.mu.Lock()
	s.activePersona = p.ID
	events := []Event{}
	if len(s.turns) == 0 {
		greeting := greetingTurn(p)
		s.turns = append(s.turns, greeting)
		events = append(events, Event{Kind: EventTurn, Turn: &greeting})
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	events = append(events, Event{Kind: EventState, State: &snap})
	s.publish(events...)
	return nil
}

// SetReplyBoth toggles the both-personas reply sequence.
func (s *State) SetReplyBoth(both bool) {
	s.mu.Lock()
	s.replyBoth = both
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventState, State: &snap})
}

// Pending reports whether an answer-service call is outstanding.
func (s *State) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// DetectedLanguage returns the language remembered from the last smart-mode
// classification.
func (s *State) DetectedLanguage() lang.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detected
}

// CaptureLanguage derives the tag the next capture session must use. It is a
// pure function of mode, active persona and last-detected language, computed
// fresh on every call so it can never go stale.
func (s *State) CaptureLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.captureLanguageLocked()
}

func (s *State) captureLanguageLocked() string {
	if s.mode == conversation.ModeSmart {
		if p, ok := s.personas.FindByLanguage(s.detected); ok {
			return p.Language
		}
	}
	if p, ok := s.personas.FindByID(s.activePersona); ok {
		return p.Language
	}
	return "en-US"
}

// HistoryFor projects the turn log into the history sent to the answer
// service for one persona: user turns plus that persona's own replies, role
// and content only. Error turns and the in-flight user turn are excluded.
func (s *State) HistoryFor(personaID, excludeTurnID string) []conversation.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]conversation.HistoryEntry, 0, len(s.turns))
	for _, turn := range s.turns {
		if turn.ID == excludeTurnID || turn.IsError {
			continue
		}
		switch turn.Role {
		case conversation.RoleUser:
			history = append(history, conversation.HistoryEntry{Role: string(turn.Role), Content: turn.Content})
		case conversation.RoleAssistant:
			if turn.PersonaID == personaID {
				history = append(history, conversation.HistoryEntry{Role: string(turn.Role), Content: turn.Content})
			}
		}
	}
	return history
}

// Reset clears the turn log, restores the configured defaults, reseeds the
// default persona's greeting and stops any in-flight playback or capture via
// the reset hook.
func (s *State) Reset() {
	s.mu.Lock()
	s.turns = nil
	s.mode = s.defaults.Mode
	s.activePersona = s.defaults.PersonaID
	s.replyBoth = s.defaults.ReplyBoth
	s.detected = lang.English
	if p, ok := s.personas.FindByID(s.defaults.PersonaID); ok {
		s.turns = append(s.turns, greetingTurn(p))
	}
	hook := s.onReset
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	s.publish(Event{Kind: EventState, State: &snap})
}

func greetingTurn(p persona.Persona) conversation.Turn {
	return conversation.Turn{
		ID:            uuid.NewString(),
		Role:          conversation.RoleAssistant,
		Content:       p.Greeting,
		PersonaID:     p.ID,
		CharacterName: p.Name,
		Emoji:         p.Emoji,
		CreatedAt:     time.Now().UTC(),
	}
}

// submission is the routing plan frozen at acceptance time.
type submission struct {
	message    string
	mode       conversation.Mode
	userTurnID string
	targets    []persona.Persona
}

// beginSubmission appends the user turn, sets the pending flag and resolves
// the target persona set, all under one lock so a concurrent submission
// cannot interleave.
func (s *State) beginSubmission(message string) (submission, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return submission{}, ErrRequestPending
	}

	var target persona.Persona
	switch s.mode {
	case conversation.ModeSmart:
		detected := lang.Detect(message)
		s.detected = detected
		p, ok := s.personas.FindByLanguage(detected)
		if !ok {
			p, ok = s.personas.FindByID(s.activePersona)
		}
		if !ok {
			s.mu.Unlock()
			return submission{}, ErrPersonaNotFound
		}
		target = p
	default:
		p, ok := s.personas.FindByID(s.activePersona)
		if !ok {
			s.mu.Unlock()
			return submission{}, ErrPersonaNotFound
		}
		target = p
	}

	targets := []persona.Persona{target}
	if s.replyBoth {
		if other, ok := s.personas.Other(target.ID); ok {
			targets = append(targets, other)
		}
	}

	userTurn := conversation.Turn{
		ID:        uuid.NewString(),
		Role:      conversation.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}
	s.turns = append(s.turns, userTurn)
	s.pending = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventTurn, Turn: &userTurn}, Event{Kind: EventState, State: &snap})

	return submission{
		message:    message,
		mode:       snap.Mode,
		userTurnID: userTurn.ID,
		targets:    targets,
	}, nil
}

// endSubmission clears the pending flag. It runs on every exit path of a
// submission so the UI can never be stuck loading.
func (s *State) endSubmission() {
	s.mu.Lock()
	s.pending = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventState, State: &snap})
}

// appendReplyTurn records a successful answer for a persona, applying the
// persona's display metadata when the service omitted it.
func (s *State) appendReplyTurn(p persona.Persona, reply dispatch.Reply) conversation.Turn {
	turn := conversation.Turn{
		ID:             uuid.NewString(),
		Role:           conversation.RoleAssistant,
		Content:        reply.Text,
		PersonaID:      p.ID,
		CharacterName:  reply.CharacterName,
		Emoji:          reply.Emoji,
		AudioBase64:    reply.AudioBase64,
		DataSource:     reply.DataSource,
		HasAirportData: reply.HasAirportData,
		CreatedAt:      time.Now().UTC(),
	}
	if turn.CharacterName == "" {
		turn.CharacterName = p.Name
	}
	if turn.Emoji == "" {
		turn.Emoji = p.Emoji
	}
	s.appendTurn(turn)
	return turn
}

// appendFailureTurn records a dispatch failure as a synthetic assistant turn
// carrying the persona's locale-appropriate error line.
func (s *State) appendFailureTurn(p persona.Persona) conversation.Turn {
	turn := conversation.Turn{
		ID:            uuid.NewString(),
		Role:          conversation.RoleAssistant,
		Content:       p.ErrorLine,
		PersonaID:     p.ID,
		CharacterName: p.Name,
		Emoji:         "⚠️",
		IsError:       true,
		CreatedAt:     time.Now().UTC(),
	}
	s.appendTurn(turn)
	return turn
}

func (s *State) appendTurn(turn conversation.Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	s.publish(Event{Kind: EventTurn, Turn: &turn})
}
