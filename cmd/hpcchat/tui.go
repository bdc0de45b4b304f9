package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mkravchenko/hpcchat/internal/chat"
	"github.com/mkravchenko/hpcchat/internal/llm"
)

var (
	youStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	reasoningStyle = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type deltaMsg string

type doneMsg struct {
	turn chat.Turn
	err  error
}

type tuiModel struct {
	ctx    context.Context
	client llm.Client
	conv   *chat.Conversation

	showReasoning bool
	model         string

	viewport viewport.Model
	composer textarea.Model
	status   string

	content string
	live    string
	busy    bool

	events chan tea.Msg
}

func runTUI(ctx context.Context, client llm.Client, conv *chat.Conversation, flags *chatFlags) error {
	ta := textarea.New()
	ta.Placeholder = "Type a message… (Ctrl+S send • Ctrl+R reasoning • Esc quit)"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.SetHeight(3)
	ta.SetWidth(80)

	vp := viewport.New(0, 0)
	vp.SetContent("")

	m := tuiModel{
		ctx:           ctx,
		client:        client,
		conv:          conv,
		showReasoning: flags.showReasoning,
		model:         flags.model,
		viewport:      vp,
		composer:      ta,
		status:        "ready",
		events:        make(chan tea.Msg, 64),
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (m tuiModel) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = t.Width
		m.composer.SetWidth(t.Width - 2)
		m.viewport.Height = t.Height - 1 - m.composer.Height()
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		m.viewport.YPosition = 0
		return m, nil

	case tea.KeyMsg:
		switch t.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+r":
			m.showReasoning = !m.showReasoning
			if m.showReasoning {
				m.status = "reasoning shown"
			} else {
				m.status = "reasoning hidden"
			}
			return m, nil
		case "ctrl+s", "alt+enter":
			if m.busy {
				return m, nil
			}
			prompt := strings.TrimSpace(m.composer.Value())
			m.composer.SetValue("")
			if prompt == "" {
				return m, nil
			}
			m.append(youStyle.Render("you:") + " " + prompt + "\n")
			m.busy = true
			m.status = "thinking…"
			return m, tea.Batch(m.startTurn(prompt), m.waitEvent())
		}

	case deltaMsg:
		m.live += string(t)
		m.render()
		return m, m.waitEvent()

	case doneMsg:
		m.busy = false
		m.live = ""
		if t.err != nil {
			m.status = "error"
			m.append(errorStyle.Render("error: "+t.err.Error()) + "\n")
			return m, nil
		}
		if m.showReasoning && t.turn.Reasoning != "" {
			m.append(reasoningStyle.Render("[reasoning] "+t.turn.Reasoning) + "\n")
		}
		m.append(assistantStyle.Render("assistant:") + " " + t.turn.Assistant + "\n")
		m.conv.Append(t.turn)
		m.status = fmt.Sprintf("done in %.1fs", t.turn.Elapsed.Seconds())
		return m, nil
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	header := fmt.Sprintf("hpcchat %s | %d turns | %s | Ctrl+S send • Ctrl+R reasoning • Esc quit\n",
		m.model, m.conv.Len(), m.status)
	return header + m.viewport.View() + "\n" + m.composer.View()
}

func (m *tuiModel) append(s string) {
	m.content += s
	m.render()
}

func (m *tuiModel) render() {
	content := m.content
	if m.live != "" {
		content += assistantStyle.Render("assistant:") + " " + m.live
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// startTurn runs the chat request off the UI goroutine, pushing streaming
// deltas and the final turn through the event channel.
func (m tuiModel) startTurn(prompt string) tea.Cmd {
	msgs := m.conv.Messages(prompt)
	client, ctx, events := m.client, m.ctx, m.events
	return func() tea.Msg {
		go func() {
			res, err := client.Chat(ctx, llm.Request{
				Messages: msgs,
				OnDelta:  func(d string) { events <- deltaMsg(d) },
			})
			reasoning, answer := llm.SplitReasoning(res.Content)
			events <- doneMsg{
				turn: chat.Turn{User: prompt, Assistant: answer, Reasoning: reasoning, When: time.Now(), Elapsed: res.Elapsed},
				err:  err,
			}
		}()
		return nil
	}
}

func (m tuiModel) waitEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}
