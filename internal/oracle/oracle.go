// Package oracle abstracts the language-model collaborator behind a small
// prompt-in, text-out interface. Callers never see provider details; they
// get back text that may be malformed and must be parsed leniently.
package oracle

import "context"

// Client is the oracle interface. Implementations must be safe for
// sequential use from a single goroutine; the research loop is synchronous.
type Client interface {
	// Query sends a prompt and returns the raw completion text.
	Query(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options carries per-call generation parameters.
type Options struct {
	// Temperature is the sampling temperature. Zero means provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means 2000.
	MaxTokens int
}

func (o Options) maxTokens() int64 {
	if o.MaxTokens <= 0 {
		return 2000
	}
	return int64(o.MaxTokens)
}
