// Package genai adapts Google's Gemini API to the engine's generator port.
package genai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator implements ports.Generator over the Gemini API.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// Option configures the Generator.
type Option func(*Generator)

// WithModel overrides the Gemini model name.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTemperature sets the sampling temperature. The default of 0.4 keeps
// the agent close to its script while leaving room for natural phrasing.
func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = t }
}

// New creates a Generator authenticated with the given API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	g := &Generator{
		client:      client,
		model:       DefaultModel,
		temperature: 0.4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends the prompt and returns the model's text. On any failure it
// returns the fixed fallback reply alongside the error, so callers always
// have something safe to speak.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return ports.FallbackReply, fmt.Errorf("gemini generation failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return ports.FallbackReply, fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
