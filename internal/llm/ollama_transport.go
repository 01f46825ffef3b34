package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"noetic/internal/logging"
)

// OllamaTransport talks to a local Ollama server's /api/generate and
// /api/tags endpoints with streaming disabled, matching the external LLM
// transport contract: one request in, one JSON response out.
type OllamaTransport struct {
	endpoint string
	client   *http.Client
}

// NewOllamaTransport creates a transport against endpoint (e.g.
// "http://localhost:11434").
func NewOllamaTransport(endpoint string) *OllamaTransport {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaTransport{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
	Format      string  `json:"format,omitempty"` // "json" requests schema-ish structured output
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete implements Transport.
func (t *OllamaTransport) Complete(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: temperature,
		Format:      "json",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		logging.LLM("ollama request failed after %s: %v", time.Since(start), err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(data))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels implements Transport's check_connection primitive.
func (t *OllamaTransport) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
