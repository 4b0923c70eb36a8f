package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Call runs o.Complete and normalizes its error: anything that is not
// already a contract violation is reported as ErrUnavailable.
func Call(ctx context.Context, o Oracle, prompt string) (string, error) {
	if o == nil {
		return "", fmt.Errorf("%w: no oracle", ErrUnavailable)
	}
	reply, err := o.Complete(ctx, prompt)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrContractViolation) {
		return "", err
	}
	return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
}
