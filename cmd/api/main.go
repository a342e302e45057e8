package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rayamira/concierge/backend/internal/config"
	"github.com/rayamira/concierge/backend/internal/handler"
	conversationModel "github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/capture"
	"github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/internal/service/dispatch"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	mode, err := conversationModel.ParseMode(cfg.Conversation.DefaultMode)
	if err != nil {
		log.Fatalf("invalid default mode: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())

	state := conversation.NewState(personaStore, conversation.Defaults{
		Mode:      mode,
		PersonaID: cfg.Conversation.DefaultPersona,
		ReplyBoth: cfg.Conversation.ReplyBoth,
	})
	// Seed the default persona's greeting so the first snapshot is not empty.
	if err := state.SelectPersona(cfg.Conversation.DefaultPersona); err != nil {
		log.Fatalf("invalid default persona: %v", err)
	}

	player := voice.NewPlayer()
	player.SetOnChange(state.NotifySpeaking)

	gateway := buildGateway(ctx, personaStore, cfg)
	orch := conversation.NewOrchestrator(state, gateway, player)

	session := capture.NewSession(state.CaptureLanguage, cfg.Conversation.CaptureSettle, func(text string) {
		if err := orch.SubmitAsync(text); err != nil {
			log.Printf("[capture] transcript rejected: %v", err)
		}
	})
	session.SetOnChange(state.NotifyListening)

	state.SetOnReset(func() {
		player.Stop()
		session.Stop()
	})

	router := handler.NewRouter(personaStore, state, orch, session, player)

	startServer(ctx, cfg.Server, router)
}

// buildGateway picks the answer backend: a remote dispatch endpoint when one
// is configured, the Ark chat model when credentials are present, otherwise a
// stub that turns every request into an error turn.
func buildGateway(ctx context.Context, personas persona.Store, cfg *config.Config) dispatch.Gateway {
	if cfg.Dispatch.Enabled() {
		log.Printf("using remote dispatch endpoint %s", cfg.Dispatch.URL)
		return dispatch.NewHTTPGateway(cfg.Dispatch.URL, cfg.Dispatch.Timeout)
	}

	if cfg.Model.Enabled() {
		gw, err := dispatch.NewModelGateway(ctx, personas, cfg.Model)
		if err != nil {
			log.Printf("warning: failed to initialize model gateway: %v", err)
		} else {
			log.Println("model gateway initialized successfully")
			return gw
		}
	} else {
		log.Println("no dispatch endpoint or model credentials configured")
	}

	log.Println("answers unavailable: incoming messages will produce error turns")
	return dispatch.Unavailable{}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("concierge backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
