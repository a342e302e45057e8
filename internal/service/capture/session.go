package capture

import (
	"errors"
	"log"
	"sync"
	"time"
)

// State of the capture session.
type State int

const (
	StateIdle State = iota
	StateListening
)

var (
	ErrAlreadyListening = errors.New("capture session already listening")
	ErrNoRecognizer     = errors.New("no capture device attached")
)

// ErrorKind classifies terminal recognition failures.
type ErrorKind string

const (
	ErrorPermissionDenied ErrorKind = "permission-denied"
	ErrorNoSpeech         ErrorKind = "no-speech"
	ErrorNetwork          ErrorKind = "network"
	ErrorEngine           ErrorKind = "engine"
)

// Error is a typed capture failure reported by the recognition capability.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return "capture error (" + string(e.Kind) + "): " + e.Message
}

// Recognizer is the speech-to-text capability the session drives. The
// production recognizer is the browser, reached over the speech WebSocket;
// it reports results back through HandleTranscript/HandleError/HandleEnd.
type Recognizer interface {
	Start(language string) error
	Stop()
}

// Session wraps a single start/stop capture capability bound to one language
// tag. At most one session is listening at a time; a second Start is
// rejected. The language is read through the binding accessor at Start time,
// never from a value captured earlier, so a mode or persona switch is always
// observed by the next session.
type Session struct {
	mu           sync.Mutex
	state        State
	language     string
	recognizer   Recognizer
	binding      func() string
	settleDelay  time.Duration
	onTranscript func(text string)
	onChange     func(listening bool)
}

// NewSession creates an idle session. binding returns the language tag the
// next capture must use; onTranscript receives the final transcript after
// the settle delay and is expected to submit it like typed input.
func NewSession(binding func() string, settleDelay time.Duration, onTranscript func(string)) *Session {
	return &Session{
		binding:      binding,
		settleDelay:  settleDelay,
		onTranscript: onTranscript,
	}
}

// SetOnChange registers a callback for listening-state flips.
func (s *Session) SetOnChange(fn func(bool)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Attach binds the recognition capability, typically on WebSocket connect.
func (s *Session) Attach(r Recognizer) {
	s.mu.Lock()
	s.recognizer = r
	s.mu.Unlock()
}

// Detach removes the capability and forces the session back to idle.
func (s *Session) Detach() {
	s.mu.Lock()
	s.recognizer = nil
	s.mu.Unlock()
	s.Stop()
}

// IsListening reports whether a capture session is active.
func (s *Session) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateListening
}

// Language returns the tag the current or last session was bound to.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Start begins listening with the freshly computed capture binding. It is a
// no-op error while already listening.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateListening {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	recognizer := s.recognizer
	if recognizer == nil {
		s.mu.Unlock()
		return ErrNoRecognizer
	}
	// Recompute the binding now; never reuse a tag captured earlier.
	language := s.binding()

	// The session stays idle until the recognizer actually started. A failed
	// start must not flip the listening signal or IsListening.
	if err := recognizer.Start(language); err != nil {
		s.mu.Unlock()
		return err
	}
	s.language = language
	s.state = StateListening
	notify := s.onChange
	s.mu.Unlock()

	log.Printf("[capture] listening language=%s", language)
	if notify != nil {
		notify(true)
	}
	return nil
}

// Stop forces the session back to idle. Always safe, never an error.
func (s *Session) Stop() {
	s.mu.Lock()
	recognizer := s.recognizer
	wasListening := s.state == StateListening
	s.mu.Unlock()

	if recognizer != nil && wasListening {
		recognizer.Stop()
	}
	if wasListening {
		s.toIdle()
	}
}

// HandleTranscript receives the terminal recognition result. The session
// returns to idle immediately; the transcript is submitted after a short
// settle delay so a UI with deferred state application has flushed first.
func (s *Session) HandleTranscript(text string) {
	s.toIdle()
	if text == "" || s.onTranscript == nil {
		return
	}
	time.AfterFunc(s.settleDelay, func() {
		s.onTranscript(text)
	})
}

// HandleError receives a terminal recognition failure. Typed input already
// on screen is untouched; nothing is appended to the conversation.
func (s *Session) HandleError(err *Error) {
	log.Printf("[capture] %v", err)
	s.toIdle()
}

// HandleEnd receives the end-of-session signal for captures that finished
// without a transcript.
func (s *Session) HandleEnd() {
	s.toIdle()
}

func (s *Session) toIdle() {
	s.mu.Lock()
	changed := s.state != StateIdle
	s.state = StateIdle
	notify := s.onChange
	s.mu.Unlock()
	if changed && notify != nil {
		notify(false)
	}
}
