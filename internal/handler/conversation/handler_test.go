package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	convmodel "github.com/rayamira/concierge/backend/internal/model/conversation"
	"github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/capture"
	conversation "github.com/rayamira/concierge/backend/internal/service/conversation"
	"github.com/rayamira/concierge/backend/internal/service/dispatch"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

type stubGateway struct{}

func (stubGateway) Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Reply, error) {
	return dispatch.Reply{Text: "stub answer"}, nil
}

func setupRouter() (*chi.Mux, *conversation.State) {
	store := persona.NewMemoryStore(persona.Seed())
	state := conversation.NewState(store, conversation.Defaults{
		Mode:      convmodel.ModeDual,
		PersonaID: "raya",
	})
	if err := state.SelectPersona("raya"); err != nil {
		panic(err)
	}
	player := voice.NewPlayer()
	orch := conversation.NewOrchestrator(state, stubGateway{}, player)
	session := capture.NewSession(state.CaptureLanguage, time.Millisecond, func(string) {})
	handler := New(state, orch, session, player)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, state
}

func TestSnapshotIncludesGreeting(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/conversation", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Turns []struct {
			Role      string `json:"role"`
			PersonaID string `json:"personaId"`
		} `json:"turns"`
		Mode      string `json:"mode"`
		Listening bool   `json:"listening"`
		Speaking  bool   `json:"speaking"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if len(payload.Turns) != 1 || payload.Turns[0].Role != "assistant" || payload.Turns[0].PersonaID != "raya" {
		t.Fatalf("expected a raya greeting turn, got %+v", payload.Turns)
	}
	if payload.Mode != "dual" {
		t.Fatalf("expected dual mode, got %s", payload.Mode)
	}
	if payload.Listening || payload.Speaking {
		t.Fatal("expected idle listening and speaking flags")
	}
}

func TestSendMessageAccepted(t *testing.T) {
	r, _ := setupRouter()
	payload, _ := json.Marshal(map[string]string{"message": "where is gate B12?"})

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
}

func TestSendMessageEmpty(t *testing.T) {
	r, _ := setupRouter()
	payload := []byte(`{"message":"   "}`)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSetModeValid(t *testing.T) {
	r, state := setupRouter()
	payload := []byte(`{"mode":"smart"}`)

	req := httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if state.Snapshot().Mode != convmodel.ModeSmart {
		t.Fatalf("expected smart mode, got %s", state.Snapshot().Mode)
	}
}

func TestSetModeInvalid(t *testing.T) {
	r, _ := setupRouter()
	payload := []byte(`{"mode":"turbo"}`)

	req := httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSelectPersonaUnknown(t *testing.T) {
	r, _ := setupRouter()
	payload := []byte(`{"personaId":"non-existent"}`)

	req := httptest.NewRequest(http.MethodPost, "/persona", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSelectPersonaSwitches(t *testing.T) {
	r, state := setupRouter()
	payload := []byte(`{"personaId":"mira"}`)

	req := httptest.NewRequest(http.MethodPost, "/persona", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if state.Snapshot().ActivePersona != "mira" {
		t.Fatalf("expected mira active, got %s", state.Snapshot().ActivePersona)
	}
}

func TestCaptureStartWithoutDevice(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/capture/start", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	r, state := setupRouter()

	modeReq := httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader([]byte(`{"mode":"smart"}`)))
	modeReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), modeReq)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if state.Snapshot().Mode != convmodel.ModeDual {
		t.Fatalf("expected dual mode after reset, got %s", state.Snapshot().Mode)
	}
}
