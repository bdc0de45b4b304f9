// Command hpcchat is the local front-end for chatting with a model served
// by an Ollama daemon, typically one reached through the tunnel hpcrun's
// bootstrap prints. It runs a full-screen TUI on a terminal, a plain line
// REPL when asked (or when stdio is piped), and a one-shot mode when a
// prompt is passed as arguments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkravchenko/hpcchat/internal/chat"
	"github.com/mkravchenko/hpcchat/internal/llm"
)

type chatFlags struct {
	model       string
	host        string
	effort      string
	temperature float64
	system      string
	timeoutS    int

	showReasoning bool
	plain         bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hpcchat:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "hpcchat [prompt ...]",
		Short: "Chat with a locally served model",
		Long: `hpcchat talks to an Ollama daemon (local, or remote through an ssh tunnel,
see hpcrun --interactive-app). With no arguments it opens an interactive
session; with arguments it sends them as a single prompt and exits.`,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, args)
		},
	}

	defaults := llm.FromEnv()
	f := cmd.Flags()
	f.StringVarP(&flags.model, "model", "m", defaults.Model, "model name")
	f.StringVar(&flags.host, "host", defaults.BaseURL, "Ollama base URL (also via OLLAMA_HOST)")
	f.StringVar(&flags.effort, "effort", defaults.Effort, "reasoning effort: low, medium or high")
	f.Float64Var(&flags.temperature, "temperature", defaults.Temperature, "base sampling temperature")
	f.StringVar(&flags.system, "system", defaults.SystemPrompt, "system prompt")
	f.IntVar(&flags.timeoutS, "timeout", int(defaults.Timeout/time.Second), "per-request timeout in seconds")
	f.BoolVar(&flags.showReasoning, "show-reasoning", false, "print the model's reasoning trace above each answer")
	f.BoolVar(&flags.plain, "plain", false, "line-based REPL instead of the full-screen UI")
	return cmd
}

func runChat(cmd *cobra.Command, flags *chatFlags, args []string) error {
	cfg := llm.Config{
		BaseURL:      flags.host,
		Model:        flags.model,
		Effort:       flags.effort,
		Temperature:  flags.temperature,
		SystemPrompt: "", // the conversation carries the system prompt
		Timeout:      time.Duration(flags.timeoutS) * time.Second,
	}
	client := llm.NewClient(cfg)
	conv := chat.NewConversation(flags.system)

	tracker, err := chat.NewTracker()
	if err != nil {
		return err
	}
	// Reconcile: a sentinel left behind by a previous run means a session
	// may still be live (or the process died without cleanup). Either way
	// the daemon is the source of truth, so just surface the belief.
	if prev, active := tracker.Model(); active && prev != flags.model {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: previous session used model %q, now using %q\n", prev, flags.model)
	}
	if err := tracker.Activate(flags.model); err != nil {
		return err
	}

	var hook chat.Hook
	hook.Add(func() { _ = tracker.Deactivate() })
	defer hook.Run()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		hook.Run()
	}()

	if len(args) > 0 {
		return runOnce(ctx, client, conv, flags, strings.Join(args, " "))
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive && !flags.plain {
		return runTUI(ctx, client, conv, flags)
	}
	return runREPL(ctx, client, conv, flags, interactive)
}

// runOnce sends a single prompt, streams the answer, and exits.
func runOnce(ctx context.Context, client llm.Client, conv *chat.Conversation, flags *chatFlags, prompt string) error {
	p := newStreamPrinter(os.Stdout, false)
	res, err := client.Chat(ctx, llm.Request{
		Messages: conv.Messages(prompt),
		OnDelta:  p.Delta,
	})
	p.Close()
	if err != nil {
		return err
	}
	if flags.showReasoning {
		if reasoning, _ := llm.SplitReasoning(res.Content); reasoning != "" {
			fmt.Fprintf(os.Stderr, "\n[reasoning]\n%s\n", reasoning)
		}
	}
	return nil
}
