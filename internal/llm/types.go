// Package llm talks to a local Ollama daemon: request composition,
// streaming chat, sampling derived from a reasoning-effort knob, and
// separation of reasoning traces from final answers.
package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages []Message

	// If set, called with incremental text deltas as they arrive.
	OnDelta func(delta string)
}

type Result struct {
	Content string
	Elapsed time.Duration
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
