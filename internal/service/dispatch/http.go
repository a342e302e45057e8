package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway dispatches requests to a remote answer service over JSON POST.
type HTTPGateway struct {
	url    string
	client *http.Client
}

// NewHTTPGateway creates a gateway for the given endpoint URL. A zero timeout
// disables the client deadline; a hung call then simply stays pending until
// it resolves.
func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// rawReply tolerates the response field-name variants observed across
// deployments of the answer service.
type rawReply struct {
	TextResponse   string `json:"text_response"`
	Response       string `json:"response"`
	Message        string `json:"message"`
	CharacterName  string `json:"character_name"`
	Emoji          string `json:"emoji"`
	AudioBase64    string `json:"audio_base64"`
	DataSource     string `json:"data_source"`
	HasAirportData bool   `json:"has_airport_data"`
}

func (r rawReply) normalize() Reply {
	text := r.TextResponse
	if text == "" {
		text = r.Response
	}
	if text == "" {
		text = r.Message
	}
	if text == "" {
		text = "No response received"
	}
	return Reply{
		Text:           text,
		CharacterName:  r.CharacterName,
		Emoji:          r.Emoji,
		AudioBase64:    r.AudioBase64,
		DataSource:     r.DataSource,
		HasAirportData: r.HasAirportData,
	}
}

// Dispatch posts the request and normalizes whatever field subset comes back.
func (g *HTTPGateway) Dispatch(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("encode dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("dispatch call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Reply{}, fmt.Errorf("dispatch call failed: server error %d", resp.StatusCode)
	}

	var raw rawReply
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Reply{}, fmt.Errorf("decode dispatch response: %w", err)
	}

	return raw.normalize(), nil
}
