// Package llm abstracts the external generative-model service as a
// black-box text-completion endpoint.
package llm

import "context"

// Request carries one completion call's prompt and sampling parameters.
type Request struct {
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Client issues completion requests. Implementations must honor ctx
// cancellation and surface transport errors and timeouts as errors
// wrapping errdefs.ErrUnavailable.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Settings configures a concrete client.
type Settings struct {
	Model   string
	APIKey  string
	BaseURL string
}
