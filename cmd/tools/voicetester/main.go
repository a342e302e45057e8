package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rayamira/concierge/backend/internal/config"
	conversationModel "github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/internal/service/dispatch"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

// voicetester runs the conversation pipeline against a console playback
// engine: type a message, watch which persona answers and in what order the
// replies are spoken. Useful for checking routing and reply sequencing
// without a browser.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env not loaded, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	modeFlag := flag.String("mode", cfg.Conversation.DefaultMode, "conversation mode: dual or smart")
	personaFlag := flag.String("persona", cfg.Conversation.DefaultPersona, "active persona id")
	replyBoth := flag.Bool("both", cfg.Conversation.ReplyBoth, "have both personas reply to every message")
	wordsPerSecond := flag.Float64("wps", 20, "simulated speech rate in words per second")
	flag.Parse()

	mode, err := conversationModel.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	if _, ok := personaStore.FindByID(*personaFlag); !ok {
		log.Fatalf("unknown persona %q", *personaFlag)
	}

	state := conversation.NewState(personaStore, conversation.Defaults{
		Mode:      mode,
		PersonaID: *personaFlag,
		ReplyBoth: *replyBoth,
	})
	if err := state.SelectPersona(*personaFlag); err != nil {
		log.Fatalf("failed to select persona: %v", err)
	}

	player := voice.NewPlayer()
	player.Attach(&consoleEngine{wordsPerSecond: *wordsPerSecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := buildGateway(ctx, personaStore, cfg)
	orch := conversation.NewOrchestrator(state, gateway, player)

	fmt.Printf("mode=%s persona=%s both=%v (type a message, 'quit' to exit)\n", mode, *personaFlag, *replyBoth)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		if err := orch.Submit(ctx, line); err != nil {
			log.Printf("submission failed: %v", err)
			continue
		}

		snap := state.Snapshot()
		fmt.Printf("turns=%d detected=%s capture=%s\n", len(snap.Turns), snap.DetectedLanguage, state.CaptureLanguage())
	}
}

func buildGateway(ctx context.Context, personas persona.Store, cfg *config.Config) dispatch.Gateway {
	if cfg.Dispatch.Enabled() {
		log.Printf("using remote dispatch endpoint %s", cfg.Dispatch.URL)
		return dispatch.NewHTTPGateway(cfg.Dispatch.URL, cfg.Dispatch.Timeout)
	}
	if cfg.Model.Enabled() {
		gw, err := dispatch.NewModelGateway(ctx, personas, cfg.Model)
		if err != nil {
			log.Fatalf("failed to initialize model gateway: %v", err)
		}
		return gw
	}
	log.Println("no dispatch endpoint or model credentials configured; replies will be error turns")
	return dispatch.Unavailable{}
}

// consoleEngine prints utterances instead of playing them, pausing for a
// duration proportional to the text length so reply ordering is observable.
type consoleEngine struct {
	wordsPerSecond float64
}

func (e *consoleEngine) Voices() []voice.Voice {
	return []voice.Voice{
		{Name: "Console Arabic", Language: "ar-AE"},
		{Name: "Console English", Language: "en-US"},
	}
}

func (e *consoleEngine) Play(ctx context.Context, u voice.Utterance) error {
	fmt.Printf("[%s | %s] %s\n", u.PersonaID, u.Voice.Language, u.Text)

	words := len(strings.Fields(u.Text))
	if words == 0 {
		words = 1
	}
	d := time.Duration(float64(words) / e.wordsPerSecond * float64(time.Second))

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		fmt.Printf("[%s] playback interrupted\n", u.PersonaID)
		return ctx.Err()
	}
}

func (e *consoleEngine) PlayAudio(ctx context.Context, personaID string, audio []byte) error {
	fmt.Printf("[%s] playing %d bytes of pre-rendered audio\n", personaID, len(audio))
	select {
	case <-time.After(500 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
