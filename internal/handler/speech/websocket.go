package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rayamira/concierge/backend/internal/service/capture"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketHandler binds a browser to the capture session and the voice
// player. The connected client is the actual recognition and playback
// capability: it runs speech recognition locally, reports transcripts, and
// plays the utterances the server sends it.
type WebSocketHandler struct {
	session  *capture.Session
	player   *voice.Player
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the speech WebSocket handler.
func NewWebSocketHandler(session *capture.Session, player *voice.Player) *WebSocketHandler {
	return &WebSocketHandler{
		session: session,
		player:  player,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/speech/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outboundMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// speakCommand asks the client to synthesize and play an utterance.
type speakCommand struct {
	UtteranceID string  `json:"utteranceId"`
	PersonaID   string  `json:"personaId"`
	Text        string  `json:"text"`
	VoiceName   string  `json:"voiceName"`
	Lang        string  `json:"lang"`
	Pitch       float32 `json:"pitch"`
	Rate        float32 `json:"rate"`
}

// playAudioCommand asks the client to play a pre-rendered audio payload.
type playAudioCommand struct {
	UtteranceID string `json:"utteranceId"`
	PersonaID   string `json:"personaId"`
	AudioBase64 string `json:"audioBase64"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[speechws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	dev := newDevice(conn)

	// The connected browser becomes the capture and playback capability.
	h.session.Attach(dev)
	h.player.Attach(dev)
	defer func() {
		h.session.Detach()
		h.player.Detach()
		dev.failPending()
	}()

	log.Printf("[speechws] client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, dev)

	dev.send("connected", nil)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[speechws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(dev, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(dev *device, msg *inboundMessage) {
	switch msg.Type {
	case "voices":
		var voices []voice.Voice
		if err := json.Unmarshal(msg.Data, &voices); err != nil {
			log.Printf("[speechws] bad voices payload: %v", err)
			return
		}
		dev.setVoices(voices)

	case "transcript":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("[speechws] bad transcript payload: %v", err)
			return
		}
		h.session.HandleTranscript(payload.Text)

	case "capture-error":
		var payload struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("[speechws] bad capture-error payload: %v", err)
			return
		}
		h.session.HandleError(&capture.Error{Kind: capture.ErrorKind(payload.Kind), Message: payload.Message})

	case "capture-end":
		h.session.HandleEnd()

	case "played":
		var payload struct {
			UtteranceID string `json:"utteranceId"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("[speechws] bad played payload: %v", err)
			return
		}
		dev.ack(payload.UtteranceID, nil)

	case "playback-error":
		var payload struct {
			UtteranceID string `json:"utteranceId"`
			Message     string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("[speechws] bad playback-error payload: %v", err)
			return
		}
		dev.ack(payload.UtteranceID, errors.New(payload.Message))

	default:
		log.Printf("[speechws] unsupported message type: %s", msg.Type)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, dev *device) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dev.ping(); err != nil {
				return
			}
		}
	}
}

// device adapts one WebSocket connection into capture.Recognizer and
// voice.Engine. Playback blocks until the client acknowledges the utterance
// or the context is cancelled.
type device struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	voices []voice.Voice
	acks   map[string]chan error
}

func newDevice(conn *websocket.Conn) *device {
	return &device{conn: conn, acks: make(map[string]chan error)}
}

func (d *device) send(msgType string, data interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.WriteJSON(outboundMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (d *device) ping() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Start implements capture.Recognizer.
func (d *device) Start(language string) error {
	return d.send("listen", map[string]string{"language": language})
}

// Stop implements capture.Recognizer.
func (d *device) Stop() {
	if err := d.send("stop-listening", nil); err != nil {
		log.Printf("[speechws] stop-listening send failed: %v", err)
	}
}

// Voices implements voice.Engine.
func (d *device) Voices() []voice.Voice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]voice.Voice(nil), d.voices...)
}

func (d *device) setVoices(voices []voice.Voice) {
	d.mu.Lock()
	d.voices = voices
	d.mu.Unlock()
	log.Printf("[speechws] client reported %d synthesis voices", len(voices))
}

// Play implements voice.Engine.
func (d *device) Play(ctx context.Context, u voice.Utterance) error {
	id := uuid.NewString()
	cmd := speakCommand{
		UtteranceID: id,
		PersonaID:   u.PersonaID,
		Text:        u.Text,
		VoiceName:   u.Voice.Name,
		Lang:        u.Voice.Language,
		Pitch:       u.Pitch,
		Rate:        u.Rate,
	}
	return d.playAndAwait(ctx, id, "speak", cmd)
}

// PlayAudio implements voice.Engine.
func (d *device) PlayAudio(ctx context.Context, personaID string, audio []byte) error {
	id := uuid.NewString()
	cmd := playAudioCommand{
		UtteranceID: id,
		PersonaID:   personaID,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	}
	return d.playAndAwait(ctx, id, "play-audio", cmd)
}

func (d *device) playAndAwait(ctx context.Context, id, msgType string, cmd interface{}) error {
	ack := make(chan error, 1)
	d.mu.Lock()
	d.acks[id] = ack
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.acks, id)
		d.mu.Unlock()
	}()

	if err := d.send(msgType, cmd); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		// Interrupted or stopped: tell the client to cut playback.
		if err := d.send("stop-speaking", map[string]string{"utteranceId": id}); err != nil {
			log.Printf("[speechws] stop-speaking send failed: %v", err)
		}
		return ctx.Err()
	}
}

func (d *device) ack(id string, err error) {
	d.mu.Lock()
	ch, ok := d.acks[id]
	d.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// failPending releases any utterance still waiting for an ack when the
// connection goes away.
func (d *device) failPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ch := range d.acks {
		select {
		case ch <- errors.New("speech client disconnected"):
		default:
		}
		delete(d.acks, id)
	}
}
