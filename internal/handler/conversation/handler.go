package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	convmodel "github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/service/capture"
	conversation "github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/internal/service/voice"
	"github.com/rayamira/concierge/backend/pkg/utils"
)

// Handler exposes the conversation REST surface consumed by the frontend.
type Handler struct {
	state   *conversation.State
	orch    *conversation.Orchestrator
	session *capture.Session
	player  *voice.Player
}

// New creates a conversation handler.
func New(state *conversation.State, orch *conversation.Orchestrator, session *capture.Session, player *voice.Player) *Handler {
	return &Handler{state: state, orch: orch, session: session, player: player}
}

// RegisterRoutes registers conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleSnapshot)
	r.Post("/messages", h.handleSendMessage)
	r.Post("/mode", h.handleSetMode)
	r.Post("/persona", h.handleSelectPersona)
	r.Post("/reply-policy", h.handleSetReplyPolicy)
	r.Post("/reset", h.handleReset)
	r.Post("/capture/start", h.handleCaptureStart)
	r.Post("/capture/stop", h.handleCaptureStop)
	r.Post("/playback/stop", h.handlePlaybackStop)
}

// snapshotPayload extends the conversation snapshot with the live capture
// and playback signals.
type snapshotPayload struct {
	conversation.Snapshot
	Listening bool `json:"listening"`
	Speaking  bool `json:"speaking"`
}

func (h *Handler) snapshot() snapshotPayload {
	return snapshotPayload{
		Snapshot:  h.state.Snapshot(),
		Listening: h.session.IsListening(),
		Speaking:  h.player.IsSpeaking(),
	}
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Acceptance is synchronous so rejections surface here; dispatch and
	// playback continue in the background and reach the client via SSE.
	if err := h.orch.SubmitAsync(payload.Message); err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			utils.RespondError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, conversation.ErrRequestPending):
			utils.RespondError(w, http.StatusConflict, "a request is already pending")
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := convmodel.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.state.SetMode(mode); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleSelectPersona(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	if err := h.state.SelectPersona(payload.PersonaID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleSetReplyPolicy(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Both bool `json:"both"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.state.SetReplyBoth(payload.Both)
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Start(); err != nil {
		switch {
		case errors.Is(err, capture.ErrAlreadyListening):
			// Starting twice is harmless; report the current state.
			utils.RespondJSON(w, http.StatusOK, h.snapshot())
		case errors.Is(err, capture.ErrNoRecognizer):
			utils.RespondError(w, http.StatusServiceUnavailable, "no capture device connected")
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	h.session.Stop()
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	h.player.Stop()
	utils.RespondJSON(w, http.StatusOK, h.snapshot())
}
