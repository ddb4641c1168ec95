package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jobboard-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	oldURL := apiURL
	apiURL = server.URL
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
	})
}

func TestCompleteSendsSchemaAndReadsUsage(t *testing.T) {
	var body map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini-2024","choices":[{"message":{"role":"assistant","content":"{\"score\":80}"}}],"usage":{"prompt_tokens":100,"completion_tokens":20,"total_tokens":120}}`))
	})

	client, err := NewClient("test-key", "gpt-4o-mini", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	schema := &llm.Schema{Name: "analysis", Fields: []llm.Field{{Name: "score", Type: llm.FieldInteger}}}
	resp, err := client.Complete(context.Background(), llm.Request{System: "sys", Prompt: "resume", Schema: schema})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"score":80}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.PromptTokens != 100 || resp.Usage.CompletionTokens != 20 || resp.Usage.TotalTokens != 120 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if resp.Model != "gpt-4o-mini-2024" || resp.Provider != "openai" {
		t.Fatalf("unexpected model/provider %q/%q", resp.Model, resp.Provider)
	}

	format := body["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %v", format["type"])
	}
	if _, ok := body["temperature"]; !ok {
		t.Fatalf("expected temperature for non gpt-5 model")
	}
	if msgs := body["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
}

func TestCompleteOmitsTemperatureForGPT5(t *testing.T) {
	var body map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	client, _ := NewClient("test-key", "gpt-5-mini", time.Second)
	if _, err := client.Complete(context.Background(), llm.Request{Prompt: "resume"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := body["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted for gpt-5")
	}
}

func TestCompleteMakesOneRequestOnError(t *testing.T) {
	var calls atomic.Int32
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	client, _ := NewClient("test-key", "gpt-4o-mini", time.Second)
	if _, err := client.Complete(context.Background(), llm.Request{Prompt: "resume"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one request, got %d", got)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(" ", "gpt-4o-mini", 0); err == nil {
		t.Fatalf("expected error without api key")
	}
}
