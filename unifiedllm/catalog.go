package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Local         bool     `json:"local"` // served without an API key
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in catalog. The first entry per provider is that
// provider's default.
var Models = []ModelInfo{
	// Ollama
	{
		ID: "phi4-mini", Provider: "ollama", DisplayName: "Phi-4 Mini",
		ContextWindow: 131072, MaxOutput: 4096, Local: true,
		Aliases: []string{"phi4", "microsoft/Phi-4-mini-instruct"},
	},
	{
		ID: "llama3.2", Provider: "ollama", DisplayName: "Llama 3.2",
		ContextWindow: 131072, MaxOutput: 4096, Local: true,
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: 8192,
		Aliases: []string{"haiku"},
	},

	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: 16384,
		Aliases: []string{"4o-mini"},
	},
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: 16384,
	},
}

// GetModelInfo returns the catalog entry for a model id or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	var result []ModelInfo
	for _, m := range Models {
		if provider == "" || m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the default model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// ResolveModel expands an alias to its canonical id. Unknown ids are
// returned unchanged so callers can use models the catalog does not list.
func ResolveModel(modelID string) string {
	if info := GetModelInfo(modelID); info != nil {
		return info.ID
	}
	return modelID
}
