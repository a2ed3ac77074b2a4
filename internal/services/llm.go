package services

import "context"

// LLMService is the interface for narrative generation providers.
type LLMService interface {
	// InitModel prepares the named model for use.
	InitModel(ctx context.Context, modelName string) error

	// Generate produces the raw provider output for a prompt. Callers
	// never trust the shape of the reply; normalization happens upstream.
	Generate(ctx context.Context, prompt string) (string, error)
}
