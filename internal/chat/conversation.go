// Package chat holds the client-side session state: the conversation
// transcript sent back to the model each turn, the on-disk sentinel that
// remembers whether a model session is active, and the shutdown hook that
// releases resources exactly once.
package chat

import (
	"time"

	"github.com/mkravchenko/hpcchat/internal/llm"
)

// Turn is one completed exchange. Reasoning is stored but never sent back
// to the model; only user text and final answers re-enter the context.
type Turn struct {
	User      string
	Assistant string
	Reasoning string
	When      time.Time
	Elapsed   time.Duration
}

type Conversation struct {
	System string
	turns  []Turn
}

func NewConversation(system string) *Conversation {
	return &Conversation{System: system}
}

func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

func (c *Conversation) Clear() {
	c.turns = nil
}

func (c *Conversation) Turns() []Turn {
	return c.turns
}

// Messages renders the transcript plus the next user prompt in the order
// the model expects: optional system message, then alternating user and
// assistant messages.
func (c *Conversation) Messages(next string) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(c.turns)+2)
	if c.System != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: c.System})
	}
	for _, t := range c.turns {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: t.User},
			llm.Message{Role: "assistant", Content: t.Assistant},
		)
	}
	return append(msgs, llm.Message{Role: "user", Content: next})
}
