package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mira/companion-chat-backend/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend serves the model protocol from canned responses and
// records the last request bodies it saw.
type mockBackend struct {
	generateText string
	streamChunks []string
	rawLines     []string

	lastGenerate map[string]interface{}
	lastChat     map[string]interface{}
}

func (m *mockBackend) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		m.lastGenerate = decodeBody(r)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": m.generateText,
			"done":     true,
		})
	})

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		m.lastChat = decodeBody(r)
		w.Header().Set("Content-Type", "application/x-ndjson")
		if len(m.rawLines) > 0 {
			for _, line := range m.rawLines {
				fmt.Fprintln(w, line)
			}
			return
		}
		for _, chunk := range m.streamChunks {
			line, _ := json.Marshal(map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": chunk},
				"done":    false,
			})
			fmt.Fprintf(w, "%s\n", line)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{{"name": "mistral"}, {"name": "mixtral"}},
		})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewServer(mux)
}

func decodeBody(r *http.Request) map[string]interface{} {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)
	return body
}

func collectStream(t *testing.T, client *llm.Client, params llm.GenerateParams) []string {
	t.Helper()
	var chunks []string
	err := client.GenerateStream(context.Background(), params, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func testParams() llm.GenerateParams {
	return llm.GenerateParams{
		Model:       "mistral",
		Messages:    []llm.Message{{Role: "user", Content: "Hi"}},
		Temperature: 0.8,
		MaxTokens:   150,
	}
}

func TestGenerate_CleansArtifacts(t *testing.T) {
	backend := &mockBackend{generateText: "Hello there! <[INST]"}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	out, err := client.Generate(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", out)

	assert.Equal(t, "mistral", backend.lastGenerate["model"])
	assert.Equal(t, false, backend.lastGenerate["stream"])
}

func TestGenerateStream_HoldsDelimiterTail(t *testing.T) {
	backend := &mockBackend{streamChunks: []string{"Hel", "lo", " <", "[INST"}}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	chunks := collectStream(t, client, testParams())

	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", strings.Join(chunks, ""))
}

func TestGenerateStream_FlushesHeldContent(t *testing.T) {
	// A held tail that turns out to be real content must reach the
	// handler once the next chunk disambiguates.
	backend := &mockBackend{streamChunks: []string{"I ", "<", "3 you"}}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	chunks := collectStream(t, client, testParams())

	assert.Equal(t, "I <3 you", strings.Join(chunks, ""))
}

func TestGenerateStream_SkipsMalformedLines(t *testing.T) {
	backend := &mockBackend{rawLines: []string{
		`{"message":{"role":"assistant","content":"Good "},"done":false}`,
		`{not valid json`,
		`{"message":{"role":"assistant","content":"morning"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	}}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	chunks := collectStream(t, client, testParams())

	assert.Equal(t, "Good morning", strings.Join(chunks, ""))
}

func TestGenerateStream_MatchesBatchOutput(t *testing.T) {
	raw := "  Hi love, how was your day? [/INST]"
	backend := &mockBackend{
		generateText: raw,
		streamChunks: []string{"  Hi love,", " how was", " your day?", " [/INST]"},
	}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)

	batch, err := client.Generate(context.Background(), testParams())
	require.NoError(t, err)

	chunks := collectStream(t, client, testParams())
	streamed := llm.CleanOutput(strings.Join(chunks, ""))

	assert.Equal(t, batch, streamed)
	assert.Equal(t, "Hi love, how was your day?", streamed)
}

func TestGenerateStream_HandlerErrorStopsStream(t *testing.T) {
	backend := &mockBackend{streamChunks: []string{"one", "two", "three"}}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	stop := fmt.Errorf("client went away")
	var seen int
	err := client.GenerateStream(context.Background(), testParams(), func(chunk string) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestGenerate_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestListModels(t *testing.T) {
	backend := &mockBackend{}
	srv := backend.server()
	defer srv.Close()

	client := llm.NewClient(srv.URL, 5*time.Second)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mistral", "mixtral"}, models)
}
