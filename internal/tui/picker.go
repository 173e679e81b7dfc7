package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/llm"
	"github.com/llmchat-dev/llmchat/internal/llm/providers"
)

// ProviderChosenMsg reports the backend picked in the provider picker.
type ProviderChosenMsg struct{ ID llm.ProviderID }

// ModelChosenMsg reports the model picked in the model picker.
type ModelChosenMsg struct{ Model string }

type modelsLoadedMsg struct{ names []string }
type modelsErrMsg struct{ err error }

// PickerModel is a filterable list used both for switching provider and for
// choosing a model on backends that expose an inventory. Typing narrows the
// list with fuzzy matching.
type PickerModel struct {
	title   string
	items   []string
	labels  map[string]string
	forward func(choice string) tea.Msg

	filter   textinput.Model
	matches  []string
	cursor   int
	loading  bool
	err      error
	width    int
	height   int
}

// NewProviderPicker lists the supported backends.
func NewProviderPicker(selected llm.ProviderID) PickerModel {
	items := make([]string, 0, 4)
	labels := map[string]string{}
	for _, id := range llm.ProviderIDs() {
		items = append(items, string(id))
		labels[string(id)] = providerLabel(id)
	}
	m := newPicker("Switch provider", items, func(choice string) tea.Msg {
		return ProviderChosenMsg{ID: llm.ProviderID(choice)}
	})
	m.labels = labels
	for i, it := range items {
		if it == string(selected) {
			m.cursor = i
		}
	}
	return m
}

// NewModelPicker lists the models reported by the selected local backend.
// The inventory is fetched asynchronously via Init.
func NewModelPicker(cfg *config.Manager, selected llm.ProviderID) PickerModel {
	m := newPicker(fmt.Sprintf("Pick a model (%s)", providerLabel(selected)), nil, func(choice string) tea.Msg {
		return ModelChosenMsg{Model: choice}
	})
	m.loading = true
	return m
}

func newPicker(title string, items []string, forward func(string) tea.Msg) PickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.Focus()

	return PickerModel{
		title:   title,
		items:   items,
		matches: items,
		forward: forward,
		filter:  ti,
	}
}

// LoadModels fetches the model inventory for backends that expose one.
func LoadModels(cfg *config.Manager, selected llm.ProviderID) tea.Cmd {
	return func() tea.Msg {
		mc, err := cfg.ModelConfig(selected)
		if err != nil {
			return modelsErrMsg{err}
		}
		p, err := providers.New(mc)
		if err != nil {
			return modelsErrMsg{err}
		}
		defer p.Close()

		lister, ok := p.(providers.ModelLister)
		if !ok {
			return modelsErrMsg{fmt.Errorf("%s does not expose a model listing", providerLabel(selected))}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		names, err := lister.ListModels(ctx)
		if err != nil {
			return modelsErrMsg{err}
		}
		return modelsLoadedMsg{names: names}
	}
}

func (m PickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case modelsLoadedMsg:
		m.loading = false
		m.items = msg.names
		m.matches = msg.names
		m.cursor = 0
		return m, nil

	case modelsErrMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m, func() tea.Msg { return BackMsg{} }
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown:
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		case tea.KeyEnter:
			if len(m.matches) == 0 {
				return m, nil
			}
			choice := m.matches[m.cursor]
			forward := m.forward
			return m, func() tea.Msg { return forward(choice) }
		}
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refilter()
	return m, cmd
}

func (m *PickerModel) refilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.matches = m.items
	} else {
		ranked := fuzzy.Find(query, m.items)
		matches := make([]string, 0, len(ranked))
		for _, r := range ranked {
			matches = append(matches, r.Str)
		}
		m.matches = matches
	}
	if m.cursor >= len(m.matches) {
		m.cursor = 0
	}
}

func (m PickerModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title) + "\n\n")
	sb.WriteString(m.filter.View() + "\n\n")

	switch {
	case m.loading:
		sb.WriteString(hintStyle.Render("Loading models..."))
	case m.err != nil:
		sb.WriteString(errStyle.Render("Error: " + m.err.Error()))
	case len(m.matches) == 0:
		sb.WriteString(hintStyle.Render("No matches"))
	default:
		for i, item := range m.matches {
			label := item
			if l, ok := m.labels[item]; ok {
				label = l
			}
			if i == m.cursor {
				sb.WriteString(selectedStyle.Render("> "+label) + "\n")
			} else {
				sb.WriteString("  " + label + "\n")
			}
		}
	}

	sb.WriteString("\n" + hintStyle.Render("[↑/↓] Move • [Enter] Choose • [Esc] Back"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, sb.String())
}
