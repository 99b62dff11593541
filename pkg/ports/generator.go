package ports

import "context"

// Generator produces a free-form reply for a fully built prompt. Adapters
// must not let upstream failures escape the boundary: on error they return a
// fixed apology string and a non-nil error so the caller can still speak.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// FallbackReply is the safe scripted reply used when the generator fails or
// times out. The conversation continues; the failure never stalls a session.
const FallbackReply = "Sorry, something went wrong on my end. Could you please repeat that?"
