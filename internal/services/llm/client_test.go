package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marquee/internal/services"
)

func completionServer(t *testing.T, contents ...string) (*httptest.Server, *int) {
	t.Helper()
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := contents[min(calls, len(contents)-1)]
		calls++
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server, _ := completionServer(t, "```json\n{\"ok\":true}\n```")

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientSendsHeadersAndJSONFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Marquee" {
			t.Errorf("unexpected title header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatCompletionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" || req.Model != "demo" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "demo", Title: "Marquee"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientUnauthorizedIsExternalServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status error 401, got %v", err)
	}
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	if client.Configured() {
		t.Fatal("expected client without key to be unconfigured")
	}
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"category\":\"concert\",\"performer\":\"Bob Dylan\",\"description\":\"Folk legend.\",\"confidence\":\"HIGH\"}"}}]}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(4),
	)
	classification, err := client.ClassifyEvent(context.Background(), EventPrompt{Title: "Bob Dylan"})
	if err != nil {
		t.Fatalf("ClassifyEvent returned error: %v", err)
	}
	if classification.Category != "CONCERT" || classification.Confidence != "high" {
		t.Fatalf("expected normalized category/confidence, got %+v", classification)
	}
	if classification.PerformerName() != "Bob Dylan" {
		t.Fatalf("unexpected performer %q", classification.PerformerName())
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	server, calls := completionServer(t, "", "", `{"index":0,"prefer_external_title":false,"reason":"same"}`)

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	arbitration, err := client.ArbitrateMatch(context.Background(), ArbitrationRequest{
		Title:      "Texas MBB",
		Candidates: []ArbitrationCandidate{{Name: "UT MBB vs Baylor", LocalTime: "19:00"}},
	})
	if err != nil {
		t.Fatalf("ArbitrateMatch returned error: %v", err)
	}
	if arbitration.Index == nil || *arbitration.Index != 0 {
		t.Fatalf("expected index 0, got %+v", arbitration)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestClientEmptyContentExhaustedIsMalformed(t *testing.T) {
	server, _ := completionServer(t, "")

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryMaxAttempts(2),
		WithRetryBackoff(0, 0),
	)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty content") {
		t.Fatalf("expected empty content detail, got %v", err)
	}
}

func TestArbitrateMatchNullIndexAndGarbage(t *testing.T) {
	server, _ := completionServer(t, `{"index":null,"prefer_external_title":false,"reason":"different performers"}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	arbitration, err := client.ArbitrateMatch(context.Background(), ArbitrationRequest{
		Title:      "Gospel Brunch",
		Candidates: []ArbitrationCandidate{{Name: "Late Show"}},
	})
	if err != nil {
		t.Fatalf("ArbitrateMatch returned error: %v", err)
	}
	if arbitration.Index != nil {
		t.Fatalf("expected nil index, got %d", *arbitration.Index)
	}

	garbage, _ := completionServer(t, "I think it is the second one")
	client = NewClient(Config{APIKey: "test", BaseURL: garbage.URL})
	_, err = client.ArbitrateMatch(context.Background(), ArbitrationRequest{
		Title:      "Gospel Brunch",
		Candidates: []ArbitrationCandidate{{Name: "Late Show"}},
	})
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}

func TestBuildArbitrationUserPromptNumbersFromZero(t *testing.T) {
	prompt := buildArbitrationUserPrompt(ArbitrationRequest{
		Title: "Texas MBB",
		Date:  "Saturday, December 13, 2025",
		Candidates: []ArbitrationCandidate{
			{Name: "Texas Longhorns Men's Basketball", LocalTime: "19:00"},
			{Name: "UT MBB vs Baylor"},
		},
	})
	for _, want := range []string{"0. Texas Longhorns Men's Basketball (19:00)", "1. UT MBB vs Baylor (time unknown)", "Date: Saturday"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, prompt)
		}
	}
}

func TestDecodeLLMJSONTolerance(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain", content: `{"index":1}`},
		{name: "fenced", content: "```json\n{\"index\":1}\n```"},
		{name: "fenced no language", content: "```\n{\"index\":1}\n```"},
		{name: "prose prefix", content: "Here you go: {\"index\":1} thanks"},
		{name: "empty", content: "   ", wantErr: true},
		{name: "no json", content: "no match", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Index int `json:"index"`
			}
			err := DecodeLLMJSON(tt.content, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Index != 1 {
				t.Fatalf("expected index 1, got %d", out.Index)
			}
		})
	}
}
