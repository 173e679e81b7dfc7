package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/llm"
)

const (
	fieldModel = iota
	fieldAPIKey
	fieldBaseURL
	fieldTemperature
	fieldCount
)

// SettingsModel edits the selected backend's connection parameters and the
// running temperature. The API key is routed to the secret store on save.
type SettingsModel struct {
	cfg      *config.Manager
	provider llm.ProviderID

	inputs     []textinput.Model
	focusedIdx int
	err        error
	successMsg string
	showHelp   bool
	width      int
	height     int
	helpView   helpOverlay
}

type helpOverlay struct {
	content string
}

// TemperatureChangedMsg reports a saved temperature so the session
// controller can pick it up.
type TemperatureChangedMsg struct{ Temperature float64 }

// NewSettingsModel builds the form pre-filled from the saved config.
func NewSettingsModel(cfg *config.Manager, provider llm.ProviderID) SettingsModel {
	mc, err := cfg.ModelConfig(provider)

	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldModel] = textinput.New()
	inputs[fieldModel].Prompt = "Model: "
	inputs[fieldModel].Placeholder = "backend-specific model name"
	inputs[fieldModel].SetValue(mc.Model)
	inputs[fieldModel].CharLimit = 60
	inputs[fieldModel].Width = 40
	inputs[fieldModel].Focus()

	inputs[fieldAPIKey] = textinput.New()
	inputs[fieldAPIKey].Prompt = "API Key: "
	inputs[fieldAPIKey].Placeholder = "only for hosted backends"
	inputs[fieldAPIKey].EchoMode = textinput.EchoPassword
	inputs[fieldAPIKey].SetValue(mc.APIKey)
	inputs[fieldAPIKey].CharLimit = 120
	inputs[fieldAPIKey].Width = 40

	inputs[fieldBaseURL] = textinput.New()
	inputs[fieldBaseURL].Prompt = "Base URL: "
	inputs[fieldBaseURL].Placeholder = "empty for the default endpoint"
	inputs[fieldBaseURL].SetValue(mc.BaseURL)
	inputs[fieldBaseURL].CharLimit = 120
	inputs[fieldBaseURL].Width = 50

	inputs[fieldTemperature] = textinput.New()
	inputs[fieldTemperature].Prompt = "Temperature: "
	inputs[fieldTemperature].Placeholder = "0.0 – 1.0"
	inputs[fieldTemperature].SetValue(strconv.FormatFloat(cfg.App().Temperature, 'f', 1, 64))
	inputs[fieldTemperature].CharLimit = 4
	inputs[fieldTemperature].Width = 10

	renderer, rerr := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(70),
	)
	help := SettingsHelp
	if rerr == nil {
		if out, err := renderer.Render(SettingsHelp); err == nil {
			help = out
		}
	}

	return SettingsModel{
		cfg:      cfg,
		provider: provider,
		inputs:   inputs,
		err:      err,
		helpView: helpOverlay{content: help},
	}
}

func (m SettingsModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			switch msg.String() {
			case "esc", "?", "enter":
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m, func() tea.Msg { return BackMsg{} }
		case tea.KeyTab, tea.KeyDown:
			m.focusNext(1)
			return m, textinput.Blink
		case tea.KeyShiftTab, tea.KeyUp:
			m.focusNext(-1)
			return m, textinput.Blink
		case tea.KeyRunes:
			if msg.String() == "?" {
				m.showHelp = true
				return m, nil
			}
		case tea.KeyEnter:
			return m.save()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focusedIdx], cmd = m.inputs[m.focusedIdx].Update(msg)
	return m, cmd
}

func (m *SettingsModel) focusNext(dir int) {
	m.inputs[m.focusedIdx].Blur()
	m.focusedIdx = (m.focusedIdx + dir + fieldCount) % fieldCount
	m.inputs[m.focusedIdx].Focus()
}

func (m SettingsModel) save() (tea.Model, tea.Cmd) {
	m.err = nil
	m.successMsg = ""

	temp, err := strconv.ParseFloat(strings.TrimSpace(m.inputs[fieldTemperature].Value()), 64)
	if err != nil || temp < 0 || temp > 1 {
		m.err = fmt.Errorf("temperature must be a number between 0 and 1")
		return m, nil
	}

	mc, err := m.cfg.ModelConfig(m.provider)
	if err != nil {
		m.err = err
		return m, nil
	}
	mc.Model = strings.TrimSpace(m.inputs[fieldModel].Value())
	mc.APIKey = strings.TrimSpace(m.inputs[fieldAPIKey].Value())
	mc.BaseURL = strings.TrimSpace(m.inputs[fieldBaseURL].Value())

	if err := m.cfg.SaveModelConfig(mc); err != nil {
		m.err = err
		return m, nil
	}

	app := m.cfg.App()
	app.Temperature = temp
	if err := m.cfg.SaveApp(app); err != nil {
		m.err = err
		return m, nil
	}

	m.successMsg = "Saved."
	return m, func() tea.Msg { return TemperatureChangedMsg{Temperature: temp} }
}

func (m SettingsModel) View() string {
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.helpView.content+"\n"+hintStyle.Render("Press [Esc] or [?] to go back"))
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Settings — %s", providerLabel(m.provider))) + "\n\n")
	for i := range m.inputs {
		sb.WriteString(m.inputs[i].View() + "\n")
	}
	sb.WriteString("\n")

	switch {
	case m.err != nil:
		sb.WriteString(errStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.successMsg != "":
		sb.WriteString(successStyle.Render(m.successMsg) + "\n")
	}

	sb.WriteString(hintStyle.Render("[Tab] Next field • [Enter] Save • [?] Help • [Esc] Back"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, sb.String())
}
