package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ollamaClient struct {
	http *http.Client
	cfg  Config
}

// NewClient returns a streaming chat client for an Ollama daemon.
func NewClient(cfg Config) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &ollamaClient{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

type chatReq struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// chatChunk covers the response shapes the daemon emits across versions:
// the chat shape nests text under message.content, the legacy generate
// shape puts it in response, and failures arrive as an error field on an
// otherwise normal chunk.
type chatChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (c *chatChunk) text() string {
	if c.Message.Content != "" {
		return c.Message.Content
	}
	return c.Response
}

func (c *ollamaClient) Chat(ctx context.Context, req Request) (Result, error) {
	temperature, topP := c.cfg.Sampling()

	msgs := req.Messages
	if c.cfg.SystemPrompt != "" && (len(msgs) == 0 || msgs[0].Role != "system") {
		msgs = append([]Message{{Role: "system", Content: c.cfg.SystemPrompt}}, msgs...)
	}

	body, _ := json.Marshal(chatReq{
		Model:    c.cfg.Model,
		Messages: msgs,
		Stream:   true,
		Options:  chatOptions{Temperature: temperature, TopP: topP},
	})

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("ollama at %s: %w", c.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return Result{}, fmt.Errorf("ollama http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	content, err := readStream(resp.Body, req.OnDelta)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: content, Elapsed: time.Since(start)}, nil
}

// readStream consumes the newline-delimited JSON chunks, forwarding each
// text delta and accumulating the full reply. A malformed line is skipped
// rather than aborting a reply that is already half-printed.
func readStream(r io.Reader, onDelta func(string)) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var text strings.Builder
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		if d := chunk.text(); d != "" {
			if onDelta != nil {
				onDelta(d)
			}
			text.WriteString(d)
		}
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return text.String(), nil
}
