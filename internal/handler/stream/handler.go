package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	conversation "github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/pkg/utils"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// Handler pushes conversation events to the frontend via Server-Sent Events.
type Handler struct {
	state *conversation.State
}

// New creates a stream handler.
func New(state *conversation.State) *Handler {
	return &Handler{state: state}
}

// RegisterRoutes registers the stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	events, cancel := h.state.Subscribe()
	defer cancel()

	ctx := r.Context()
	log.Printf("[sse] stream opened")

	// Send the full snapshot first so a reconnecting client catches up.
	snap := h.state.Snapshot()
	utils.SendSSEEvent(w, flusher, "state", snap)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] stream closed")
			return
		case ev, open := <-events:
			if !open {
				return
			}
			utils.SendSSEEvent(w, flusher, string(ev.Kind), ev)
		case t := <-ticker.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  t.UTC().Format(time.RFC3339),
			})
		}
	}
}
