// Package config persists the application settings and the per-backend
// connection parameters. Non-secret settings live in YAML files under the
// app directory; credentials go through the SecretStore so they never land
// in the main configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/llmchat-dev/llmchat/internal/llm"
)

const Version = "v1.0.0"

// AppConfig is the application-level configuration.
type AppConfig struct {
	Provider    string  `mapstructure:"provider"`
	Temperature float64 `mapstructure:"temperature"`
	SaveHistory bool    `mapstructure:"save_history"`
	MaxHistory  int     `mapstructure:"max_history"`
	LogLevel    string  `mapstructure:"log_level"`
}

// Manager loads and saves the app config, the per-provider model configs,
// and the secret store, all rooted at one directory.
type Manager struct {
	dir     string
	v       *viper.Viper
	app     AppConfig
	secrets *SecretStore
}

// Load opens the manager rooted at ~/.llmchat.
func Load() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(home, ".llmchat"))
}

// LoadFrom opens the manager rooted at dir, creating it if needed. Missing
// files fall back to defaults.
func LoadFrom(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("provider", string(llm.ProviderMistral))
	v.SetDefault("temperature", 0.7)
	v.SetDefault("save_history", true)
	v.SetDefault("max_history", 100)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var app AppConfig
	if err := v.Unmarshal(&app); err != nil {
		return nil, err
	}

	return &Manager{
		dir:     dir,
		v:       v,
		app:     app,
		secrets: NewSecretStore(filepath.Join(dir, "secrets.json")),
	}, nil
}

// Dir returns the app directory.
func (m *Manager) Dir() string { return m.dir }

// App returns the current application config.
func (m *Manager) App() AppConfig { return m.app }

// Secrets returns the credential store.
func (m *Manager) Secrets() *SecretStore { return m.secrets }

// SaveApp persists the application config.
func (m *Manager) SaveApp(app AppConfig) error {
	m.app = app
	m.v.Set("provider", app.Provider)
	m.v.Set("temperature", app.Temperature)
	m.v.Set("save_history", app.SaveHistory)
	m.v.Set("max_history", app.MaxHistory)
	m.v.Set("log_level", app.LogLevel)
	return m.v.WriteConfigAs(filepath.Join(m.dir, "config.yaml"))
}

// defaultModelConfig mirrors the built-in backends: hosted Mistral and
// Gemini, LM Studio and Ollama on their standard local ports.
func defaultModelConfig(id llm.ProviderID) (llm.ModelConfig, bool) {
	switch id {
	case llm.ProviderMistral:
		return llm.ModelConfig{Provider: id, Kind: llm.KindRemote, Model: "codestral-2501"}, true
	case llm.ProviderGemini:
		return llm.ModelConfig{Provider: id, Kind: llm.KindRemote, Model: "gemini-1.5-flash"}, true
	case llm.ProviderLMStudio:
		return llm.ModelConfig{Provider: id, Kind: llm.KindLocal, Model: "local-model", BaseURL: "http://localhost:1234"}, true
	case llm.ProviderOllama:
		return llm.ModelConfig{Provider: id, Kind: llm.KindLocal, Model: "mistral", BaseURL: "http://localhost:11434"}, true
	}
	return llm.ModelConfig{}, false
}

// ModelConfig returns the saved config for a provider, falling back to the
// built-in default, with the credential resolved from the secret store.
func (m *Manager) ModelConfig(id llm.ProviderID) (llm.ModelConfig, error) {
	saved, err := m.readProviders()
	if err != nil {
		return llm.ModelConfig{}, err
	}

	cfg, ok := saved[string(id)]
	if !ok {
		cfg, ok = defaultModelConfig(id)
		if !ok {
			return llm.ModelConfig{}, &llm.ValidationError{Reason: fmt.Sprintf("no configuration for provider %q", id)}
		}
	}

	if cfg.Kind == llm.KindRemote {
		key, err := m.secrets.Get(string(id))
		if err != nil {
			return llm.ModelConfig{}, err
		}
		cfg.APIKey = key
	}
	return cfg, nil
}

// SaveModelConfig persists one backend's config, routing the credential to
// the secret store and keeping it out of the YAML file.
func (m *Manager) SaveModelConfig(cfg llm.ModelConfig) error {
	if !cfg.Provider.Valid() {
		return &llm.ValidationError{Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
	if cfg.APIKey != "" {
		if err := m.secrets.Set(string(cfg.Provider), cfg.APIKey); err != nil {
			return err
		}
		cfg.APIKey = ""
	}

	saved, err := m.readProviders()
	if err != nil {
		return err
	}
	if saved == nil {
		saved = map[string]llm.ModelConfig{}
	}
	saved[string(cfg.Provider)] = cfg
	return m.writeProviders(saved)
}

// ResetModelConfig drops one backend's saved config and stored credential,
// falling back to the built-in default.
func (m *Manager) ResetModelConfig(id llm.ProviderID) error {
	if !id.Valid() {
		return &llm.ValidationError{Reason: fmt.Sprintf("unknown provider %q", id)}
	}
	if err := m.secrets.Delete(string(id)); err != nil {
		return err
	}
	saved, err := m.readProviders()
	if err != nil {
		return err
	}
	if _, ok := saved[string(id)]; !ok {
		return nil
	}
	delete(saved, string(id))
	return m.writeProviders(saved)
}

func (m *Manager) providersPath() string {
	return filepath.Join(m.dir, "providers.yaml")
}

func (m *Manager) readProviders() (map[string]llm.ModelConfig, error) {
	data, err := os.ReadFile(m.providersPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var saved map[string]llm.ModelConfig
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.providersPath(), err)
	}
	return saved, nil
}

func (m *Manager) writeProviders(saved map[string]llm.ModelConfig) error {
	data, err := yaml.Marshal(saved)
	if err != nil {
		return err
	}
	return os.WriteFile(m.providersPath(), data, 0o644)
}
