package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is a single chat turn in model context order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateParams carries everything a generation call needs. Model and
// MaxTokens are resolved per request from the companion configuration.
type GenerateParams struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client speaks the Ollama HTTP protocol: /api/generate for blocking
// generation, /api/chat for newline-delimited streaming and /api/tags
// for model listing.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  generateOptions `json:"options"`
}

type chatStreamChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach model backend: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model backend returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

// Generate performs a blocking completion. Messages are flattened into
// a single instruction-delimited prompt and the raw output is run
// through CleanOutput before returning.
func (c *Client) Generate(ctx context.Context, params GenerateParams) (string, error) {
	reqBody := generateRequest{
		Model:  params.Model,
		Prompt: BuildPrompt(params.Messages),
		Stream: false,
		Options: generateOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	}

	resp, err := c.post(ctx, "/api/generate", reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	return CleanOutput(out.Response), nil
}

// GenerateStream performs a streaming completion, invoking handler for
// each visible chunk in arrival order. A pending tail that could be the
// start of a cut-off delimiter is held back until the stream proves it
// was real content; on completion the held tail is flushed through the
// same artifact cleanup used by Generate. Malformed lines are skipped.
func (c *Client) GenerateStream(ctx context.Context, params GenerateParams, handler func(chunk string) error) error {
	reqBody := chatRequest{
		Model:    params.Model,
		Messages: params.Messages,
		Stream:   true,
		Options: generateOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	}

	resp, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pending := ""
	flushPending := func() error {
		if out := CleanOutput(pending); out != "" {
			pending = ""
			return handler(out)
		}
		pending = ""
		return nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Malformed chunk lines are dropped without surfacing an
			// error to the caller.
			continue
		}

		if chunk.Message.Content != "" {
			candidate := pending + chunk.Message.Content
			if ArtifactOnly(candidate) {
				// Might be the start of a cut-off delimiter; hold it
				// until the next chunk disambiguates.
				pending = candidate
				continue
			}
			pending = ""
			if err := handler(candidate); err != nil {
				return err
			}
		}

		if chunk.Done {
			return flushPending()
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading stream: %w", err)
	}

	// Stream ended without an explicit done flag; treat it as complete.
	return flushPending()
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of the models the backend has loaded.
// Diagnostic only; not part of the request-serving path.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach model backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model backend returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping probes backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model backend returned status %d", resp.StatusCode)
	}
	return nil
}
