package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func streamServer(t *testing.T, lines []string, capture *chatReq) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("request decode: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			io.WriteString(w, l+"\n")
		}
	}))
}

func TestChatStreamsChatShape(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"role":"assistant","content":"Hel"}}`,
		`{"message":{"role":"assistant","content":"lo"}}`,
		`{"done":true}`,
	}, nil)
	defer srv.Close()

	var deltas []string
	c := NewClient(Config{BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second})
	res, err := c.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		OnDelta:  func(d string) { deltas = append(deltas, d) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "Hello" {
		t.Fatalf("content = %q", res.Content)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Fatalf("deltas = %v", deltas)
	}
	if res.Elapsed <= 0 {
		t.Fatalf("elapsed = %v", res.Elapsed)
	}
}

func TestChatNormalizesLegacyResponseShape(t *testing.T) {
	srv := streamServer(t, []string{
		`{"response":"old "}`,
		`{"response":"shape"}`,
		`{"done":true}`,
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	res, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "old shape" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestChatSurfacesDaemonError(t *testing.T) {
	srv := streamServer(t, []string{
		`{"error":"model 'nope' not found"}`,
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "nope"})
	_, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil || !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestChatSkipsMalformedChunks(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"ok"}}`,
		`not json at all`,
		`{"done":true}`,
	}, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	res, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "ok" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestChatInjectsSystemPromptOnce(t *testing.T) {
	var got chatReq
	srv := streamServer(t, []string{`{"done":true}`}, &got)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", SystemPrompt: "be brief"})
	if _, err := c.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[0].Content != "be brief" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestChatSendsSamplingOptions(t *testing.T) {
	var got chatReq
	srv := streamServer(t, []string{`{"done":true}`}, &got)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", Effort: "high", Temperature: 1.0})
	if _, err := c.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatal(err)
	}
	if got.Options.Temperature != 1.2 || got.Options.TopP != 1.0 {
		t.Fatalf("options = %+v", got.Options)
	}
	if got.Model != "m" || !got.Stream {
		t.Fatalf("req = %+v", got)
	}
}

func TestChatReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	_, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v", err)
	}
}
