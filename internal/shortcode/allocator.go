// Package shortcode assigns unique short codes to links.
package shortcode

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrAliasTaken is returned when a requested custom alias already
	// identifies another link.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrAllocationExhausted is returned when the maximum number of retries
	// for generating a free short code is exceeded.
	ErrAllocationExhausted = errors.New("maximum retries exceeded for generating short code")
)

// ExistsFunc reports whether a code is already assigned to a link.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Allocator picks short codes with a generate-check-retry loop over an
// existence predicate, which keeps it testable without a real store.
type Allocator struct {
	length     int
	maxRetries int
	exists     ExistsFunc
}

func New(length, maxRetries int, exists ExistsFunc) *Allocator {
	return &Allocator{
		length:     length,
		maxRetries: maxRetries,
		exists:     exists,
	}
}

// Allocate returns a free short code. A non-empty customAlias is returned
// unchanged when free and fails with ErrAliasTaken otherwise. Generated
// codes are retried on collision up to the configured cap.
func (a *Allocator) Allocate(ctx context.Context, customAlias string) (string, error) {
	const op = "shortcode.Allocator.Allocate"

	if customAlias != "" {
		taken, err := a.exists(ctx, customAlias)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check alias: %w", op, err)
		}
		if taken {
			return "", fmt.Errorf("%s: %w", op, ErrAliasTaken)
		}

		return customAlias, nil
	}

	for i := 0; i < a.maxRetries; i++ {
		code, err := gonanoid.New(a.length)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		taken, err := a.exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrAllocationExhausted)
}
