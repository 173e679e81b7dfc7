package llm

// ProviderID tags one of the supported backends.
type ProviderID string

const (
	ProviderMistral  ProviderID = "mistral"
	ProviderGemini   ProviderID = "gemini"
	ProviderLMStudio ProviderID = "lmstudio"
	ProviderOllama   ProviderID = "ollama"
)

// ProviderIDs returns the supported backends in display order.
func ProviderIDs() []ProviderID {
	return []ProviderID{ProviderMistral, ProviderGemini, ProviderLMStudio, ProviderOllama}
}

// Valid reports whether id names a supported backend.
func (id ProviderID) Valid() bool {
	switch id {
	case ProviderMistral, ProviderGemini, ProviderLMStudio, ProviderOllama:
		return true
	}
	return false
}

// Kind separates hosted, key-authenticated APIs from locally served models.
type Kind string

const (
	KindRemote Kind = "api"
	KindLocal  Kind = "local"
)

// ModelConfig carries the connection parameters for one backend. One
// instance exists per provider and is persisted independently; the API key
// never travels with the rest of the config (see the config package).
type ModelConfig struct {
	Provider   ProviderID             `yaml:"provider" json:"provider"`
	Kind       Kind                   `yaml:"kind" json:"kind"`
	Model      string                 `yaml:"model" json:"model"`
	APIKey     string                 `yaml:"-" json:"-"`
	BaseURL    string                 `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Validate rejects configs that would only fail later at request time: a
// remote config must carry a credential, a local one an endpoint.
func (c ModelConfig) Validate() error {
	if !c.Provider.Valid() {
		return validationf("unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return validationf("%s: model name is required", c.Provider)
	}
	switch c.Kind {
	case KindRemote:
		if c.APIKey == "" {
			return validationf("%s: API key is required for a hosted backend", c.Provider)
		}
	case KindLocal:
		if c.BaseURL == "" {
			return validationf("%s: base URL is required for a local backend", c.Provider)
		}
	default:
		return validationf("%s: unknown backend kind %q", c.Provider, c.Kind)
	}
	return nil
}
