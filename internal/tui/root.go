package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/session"
)

// Global States
const (
	StateChat = iota
	StateProviderPicker
	StateModelPicker
	StateSettings
)

// SwitchViewMsg asks the root model to change the active view.
type SwitchViewMsg struct {
	TargetState int
}

// BackMsg returns to the chat view (or quits when already there).
type BackMsg struct{}

// RootModel multiplexes the chat view and its overlays. The chat model is
// kept alive across overlay visits so the conversation survives.
type RootModel struct {
	state  int
	width  int
	height int

	controller *session.Controller
	cfg        *config.Manager

	chat     ChatModel
	picker   PickerModel
	settings SettingsModel

	err error
}

// NewRootModel wires the root to the session controller and config manager.
func NewRootModel(controller *session.Controller, cfg *config.Manager) RootModel {
	return RootModel{
		state:      StateChat,
		controller: controller,
		cfg:        cfg,
		chat:       NewChatModel(controller, cfg),
	}
}

func (m RootModel) Init() tea.Cmd {
	return m.chat.Init()
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Fall through to the active model below.

	case SwitchViewMsg:
		m.state = msg.TargetState
		size := tea.WindowSizeMsg{Width: m.width, Height: m.height}

		switch m.state {
		case StateProviderPicker:
			m.picker = NewProviderPicker(m.controller.Selected())
			var pm tea.Model
			pm, cmd = m.picker.Update(size)
			m.picker = pm.(PickerModel)
			cmds = append(cmds, cmd, m.picker.Init())

		case StateModelPicker:
			m.picker = NewModelPicker(m.cfg, m.controller.Selected())
			var pm tea.Model
			pm, cmd = m.picker.Update(size)
			m.picker = pm.(PickerModel)
			cmds = append(cmds, cmd, m.picker.Init(), LoadModels(m.cfg, m.controller.Selected()))

		case StateSettings:
			m.settings = NewSettingsModel(m.cfg, m.controller.Selected())
			var sm tea.Model
			sm, cmd = m.settings.Update(size)
			m.settings = sm.(SettingsModel)
			cmds = append(cmds, cmd, m.settings.Init())
		}
		return m, tea.Batch(cmds...)

	case BackMsg:
		if m.state == StateChat {
			return m, tea.Quit
		}
		m.state = StateChat
		var cm tea.Model
		cm, cmd = m.chat.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		m.chat = cm.(ChatModel)
		return m, cmd

	case ProviderChosenMsg:
		if err := m.controller.Select(msg.ID); err != nil {
			m.chat.err = err
		} else {
			app := m.cfg.App()
			app.Provider = string(msg.ID)
			if err := m.cfg.SaveApp(app); err != nil {
				m.chat.err = err
			}
		}
		m.state = StateChat
		m.chat.renderMessages()
		return m, nil

	case ModelChosenMsg:
		if mc, err := m.cfg.ModelConfig(m.controller.Selected()); err != nil {
			m.chat.err = err
		} else {
			mc.Model = msg.Model
			if err := m.cfg.SaveModelConfig(mc); err != nil {
				m.chat.err = err
			}
		}
		m.state = StateChat
		return m, nil

	case TemperatureChangedMsg:
		if err := m.controller.SetTemperature(msg.Temperature); err != nil {
			m.chat.err = err
		}
		// Stay in settings; the user leaves with Esc.
	}

	switch m.state {
	case StateChat:
		var cm tea.Model
		cm, cmd = m.chat.Update(msg)
		m.chat = cm.(ChatModel)
	case StateProviderPicker, StateModelPicker:
		var pm tea.Model
		pm, cmd = m.picker.Update(msg)
		m.picker = pm.(PickerModel)
	case StateSettings:
		var sm tea.Model
		sm, cmd = m.settings.Update(msg)
		m.settings = sm.(SettingsModel)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m RootModel) View() string {
	switch m.state {
	case StateProviderPicker, StateModelPicker:
		return m.picker.View()
	case StateSettings:
		return m.settings.View()
	default:
		return m.chat.View()
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(controller *session.Controller, cfg *config.Manager) {
	p := tea.NewProgram(NewRootModel(controller, cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running chat: %v\n", err)
		os.Exit(1)
	}
}
