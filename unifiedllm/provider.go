package unifiedllm

import "context"

// ProviderAdapter is a backend that turns a Request into one completion.
type ProviderAdapter interface {
	// Name returns the provider identifier ("ollama", "anthropic", ...).
	Name() string

	Complete(ctx context.Context, req Request) (*Response, error)
}
