package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/rayamira/concierge/backend/internal/handler/conversation"
	personaHandler "github.com/rayamira/concierge/backend/internal/handler/persona"
	speechHandler "github.com/rayamira/concierge/backend/internal/handler/speech"
	streamHandler "github.com/rayamira/concierge/backend/internal/handler/stream"
	middlewarePkg "github.com/rayamira/concierge/backend/internal/middleware"
	personaModel "github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/capture"
	conversationService "github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(
	personas personaModel.Store,
	state *conversationService.State,
	orch *conversationService.Orchestrator,
	session *capture.Session,
	player *voice.Player,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(personas).RegisterRoutes(api)
		conversationHandler.New(state, orch, session, player).RegisterRoutes(api)
		streamHandler.New(state).RegisterRoutes(api)
		speechHandler.NewWebSocketHandler(session, player).RegisterRoutes(api)
	})

	return r
}
