package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/history"
	"github.com/llmchat-dev/llmchat/internal/llm"
	"github.com/llmchat-dev/llmchat/internal/session"
)

type (
	errMsg            struct{ err error }
	streamStartedMsg  struct{ stream llm.TextStream }
	streamFragmentMsg string
	streamDoneMsg     struct{}
)

// ChatModel is the main conversation view: a viewport over the rendered
// history, a textarea for input, and a spinner while a reply streams in.
type ChatModel struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	controller *session.Controller
	cfg        *config.Manager
	store      *history.Store

	messages []llm.Message
	stream   llm.TextStream
	partial  string

	err      error
	loading  bool
	width    int
	height   int
	ready    bool
	showHelp bool
	helpView viewport.Model
}

// NewChatModel wires the chat view to the session controller.
func NewChatModel(controller *session.Controller, cfg *config.Manager) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Your message..."
	ta.Focus()
	ta.Prompt = " "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(0, 0)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	hv := viewport.New(0, 0)
	hv.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	help := ChatHelp
	if renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	); err == nil {
		if out, err := renderer.Render(ChatHelp); err == nil {
			help = out
		}
	}
	hv.SetContent(help)

	var store *history.Store
	if app := cfg.App(); app.SaveHistory {
		store = history.NewStore(cfg.Dir(), app.MaxHistory)
	}

	return ChatModel{
		textarea:   ta,
		viewport:   vp,
		spinner:    sp,
		controller: controller,
		cfg:        cfg,
		store:      store,
		messages:   []llm.Message{},
		helpView:   hv,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		cmd   tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 6

		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		m.textarea.SetWidth(msg.Width - 4)
		m.ready = true

		m.helpView.Width = msg.Width - 6
		m.helpView.Height = msg.Height - 10

	case tea.KeyMsg:
		if m.showHelp {
			switch msg.String() {
			case "esc", "?", "enter":
				m.showHelp = false
				return m, nil
			default:
				m.helpView, cmd = m.helpView.Update(msg)
				return m, cmd
			}
		}

		switch msg.Type {
		case tea.KeyRunes:
			if msg.String() == "?" && strings.TrimSpace(m.textarea.Value()) == "" {
				m.showHelp = true
				m.helpView.GotoTop()
				return m, nil
			}
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m, func() tea.Msg { return BackMsg{} }
		case tea.KeyCtrlP:
			if m.loading {
				return m, nil
			}
			return m, func() tea.Msg { return SwitchViewMsg{TargetState: StateProviderPicker} }
		case tea.KeyCtrlO:
			if m.loading {
				return m, nil
			}
			return m, func() tea.Msg { return SwitchViewMsg{TargetState: StateModelPicker} }
		case tea.KeyCtrlS:
			if m.loading {
				return m, nil
			}
			return m, func() tea.Msg { return SwitchViewMsg{TargetState: StateSettings} }
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := m.textarea.Value()
			if strings.TrimSpace(input) == "" {
				return m, nil
			}

			history := append([]llm.Message(nil), m.messages...)
			m.messages = append(m.messages, llm.NewMessage(llm.RoleUser, input))
			m.err = nil
			m.renderMessages()

			m.textarea.Reset()
			m.loading = true

			return m, tea.Batch(m.spinner.Tick, m.startStream(input, history))
		}

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case streamStartedMsg:
		m.stream = msg.stream
		m.partial = ""
		return m, readFragment(m.stream)

	case streamFragmentMsg:
		m.partial += string(msg)
		m.renderMessages()
		return m, readFragment(m.stream)

	case streamDoneMsg:
		m.messages = append(m.messages, llm.NewMessage(llm.RoleAssistant, m.partial))
		m.partial = ""
		m.stream = nil
		m.loading = false
		m.renderMessages()
		m.saveHistory()
		return m, nil

	case errMsg:
		m.err = msg.err
		m.partial = ""
		m.stream = nil
		m.loading = false
		m.renderMessages()
		return m, nil
	}

	if !m.showHelp {
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.viewport, vpCmd = m.viewport.Update(msg)
	}

	return m, tea.Batch(tiCmd, vpCmd, cmd)
}

// startStream kicks off one completion against the selected provider.
func (m ChatModel) startStream(prompt string, hist []llm.Message) tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		st, err := controller.Stream(context.Background(), prompt, hist)
		if err != nil {
			return errMsg{err}
		}
		return streamStartedMsg{stream: st}
	}
}

// readFragment pulls one fragment off the stream; the Update loop re-issues
// it until the backend closes the connection.
func readFragment(st llm.TextStream) tea.Cmd {
	return func() tea.Msg {
		frag, err := st.Recv()
		if errors.Is(err, io.EOF) {
			st.Close()
			return streamDoneMsg{}
		}
		if err != nil {
			st.Close()
			return errMsg{err}
		}
		return streamFragmentMsg(frag)
	}
}

func (m *ChatModel) saveHistory() {
	if m.store == nil || len(m.messages) == 0 {
		return
	}
	// Best effort: history failures must not disturb the conversation.
	if _, err := m.store.Add(string(m.controller.Selected()), m.messages); err != nil {
		m.err = fmt.Errorf("saving history: %w", err)
	}
}

func (m *ChatModel) renderMessages() {
	var sb strings.Builder

	mdRenderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width-10),
	)

	render := func(content string) string {
		if mdRenderer == nil {
			return content
		}
		rendered, err := mdRenderer.Render(content)
		if err != nil {
			return content
		}
		return rendered
	}

	label := assistantLabelStyle.Render(providerLabel(m.controller.Selected()))
	for _, msg := range m.messages {
		if msg.Role == llm.RoleUser {
			sb.WriteString(userStyle.Render("You: "+msg.Content) + "\n\n")
		} else {
			sb.WriteString(label + "\n" + assistantStyle.Render(render(msg.Content)) + "\n")
		}
	}
	if m.partial != "" {
		sb.WriteString(label + "\n" + assistantStyle.Render(render(m.partial)) + "\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m ChatModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center,
				titleStyle.MarginBottom(1).Render("Chat Help"),
				m.helpView.View(),
				hintStyle.MarginTop(1).Render("Press [Esc] or [?] to go back"),
			),
		)
	}

	header := headerStyle.Width(m.width).
		Render(fmt.Sprintf(" llmchat :: %s ", providerLabel(m.controller.Selected())))

	chatView := m.viewport.View()

	var footerContent string
	hint := hintStyle.Render(" [?] Help • [Ctrl+P] Provider • [Ctrl+S] Settings • [Esc] Quit")
	switch {
	case m.loading:
		footerContent = fmt.Sprintf("%s Generating response...", m.spinner.View())
	case m.err != nil:
		footerContent = fmt.Sprintf("%s\n%s\n%s",
			errStyle.Render("Error: "+m.err.Error()), m.textarea.View(), hint)
	default:
		footerContent = m.textarea.View() + "\n" + hint
	}

	footer := inputBoxStyle.Width(m.width - 2).Render(footerContent)

	return lipgloss.JoinVertical(lipgloss.Left, header, chatView, footer)
}

func providerLabel(id llm.ProviderID) string {
	switch id {
	case llm.ProviderMistral:
		return "Mistral"
	case llm.ProviderGemini:
		return "Google Gemini"
	case llm.ProviderLMStudio:
		return "LM Studio"
	case llm.ProviderOllama:
		return "Ollama"
	}
	return string(id)
}
