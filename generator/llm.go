package generator

import "context"

// ImageModel abstracts the hosted generation service so it can be swapped or mocked.
type ImageModel interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// LLMSettings is the provider configuration handed to concrete implementations.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
