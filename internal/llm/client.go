// Package llm provides the language-model collaborator used for grounded answers.
package llm

import "context"

// Client is an opaque text transformer: prompt in, completion out.
// No structured output is assumed.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}
