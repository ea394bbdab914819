package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/sethvargo/go-retry"
)

const maxBackoff = 5 * time.Second

type retrying struct {
	next       WeightStorage
	base       time.Duration
	maxRetries uint64
}

// NewRetrying retries failed calls to next with exponential backoff.
// Missing keys and invalid keys fail immediately.
func NewRetrying(next WeightStorage, maxRetries uint64, base time.Duration) (WeightStorage, error) {
	if base <= 0 {
		return nil, fmt.Errorf("retry base interval must be positive, got %s", base)
	}

	return &retrying{
		next:       next,
		base:       base,
		maxRetries: maxRetries,
	}, nil
}

func (r *retrying) Write(ctx context.Context, key string, blob []byte) error {
	return r.do(ctx, func(ctx context.Context) error {
		return r.next.Write(ctx, key, blob)
	})
}

func (r *retrying) Read(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		blob, err = r.next.Read(ctx, key)

		return err
	})
	if err != nil {
		return nil, err
	}

	return blob, nil
}

func (r *retrying) do(ctx context.Context, f func(ctx context.Context) error) error {
	b := retry.NewExponential(r.base)
	b = retry.WithCappedDuration(maxBackoff, b)
	b = retry.WithMaxRetries(r.maxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := f(ctx)
		if err == nil || permanent(err) {
			return err
		}

		return retry.RetryableError(err)
	})
}

func permanent(err error) bool {
	return errors.Is(err, pkgerrors.ErrNotFound) ||
		errors.Is(err, pkgerrors.ErrEmptyKey) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
