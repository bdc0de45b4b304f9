package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mkravchenko/hpcchat/internal/chat"
	"github.com/mkravchenko/hpcchat/internal/llm"
)

// runREPL is the line-based loop: one prompt in, one streamed answer out.
// Used for piped stdio and for operators who prefer --plain over the
// full-screen UI.
func runREPL(ctx context.Context, client llm.Client, conv *chat.Conversation, flags *chatFlags, interactive bool) error {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if interactive {
		fmt.Printf("hpcchat: model %s at %s (/reset clears history, /exit quits)\n", flags.model, flags.host)
	}

	for {
		if interactive {
			fmt.Print("you> ")
		}
		if !in.Scan() {
			if interactive {
				fmt.Println()
			}
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			conv.Clear()
			if interactive {
				fmt.Println("history cleared")
			}
			continue
		}

		p := newStreamPrinter(os.Stdout, interactive)
		res, err := client.Chat(ctx, llm.Request{
			Messages: conv.Messages(line),
			OnDelta:  p.Delta,
		})
		p.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}

		reasoning, answer := llm.SplitReasoning(res.Content)
		if flags.showReasoning && reasoning != "" {
			fmt.Fprintf(os.Stderr, "[reasoning]\n%s\n", reasoning)
		}
		if interactive {
			fmt.Printf("(%.1fs)\n", res.Elapsed.Seconds())
		}
		conv.Append(chat.Turn{
			User:      line,
			Assistant: answer,
			Reasoning: reasoning,
			When:      time.Now(),
			Elapsed:   res.Elapsed,
		})
	}
}
