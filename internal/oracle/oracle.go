// Package oracle talks to the language model that produces task assistance.
// Every provider satisfies Oracle; replies are untrusted text that callers
// sanitize with Decode before use.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps transport, auth, quota and timeout failures.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrContractViolation means the reply could not be parsed into the
	// expected shape.
	ErrContractViolation = errors.New("oracle reply violated contract")
)

// Oracle produces a text completion for a prompt.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TokenLimiter is implemented by providers that accept a per-call output
// token budget.
type TokenLimiter interface {
	WithMaxTokens(n int) Oracle
}

// WithMaxTokens returns o limited to n output tokens when the provider
// supports it, and o unchanged otherwise.
func WithMaxTokens(o Oracle, n int) Oracle {
	if l, ok := o.(TokenLimiter); ok && n > 0 {
		return l.WithMaxTokens(n)
	}
	return o
}

// Disabled is the oracle used when no provider is configured.
type Disabled struct{}

// Complete always fails with ErrUnavailable.
func (Disabled) Complete(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no provider configured", ErrUnavailable)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func unavailableErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
