package storage

import (
	"context"
	"fmt"

	"github.com/golang/snappy"
)

type compressed struct {
	next WeightStorage
}

// NewCompressed snappy-compresses blobs before handing them to next.
func NewCompressed(next WeightStorage) WeightStorage {
	return &compressed{next: next}
}

func (c *compressed) Write(ctx context.Context, key string, blob []byte) error {
	return c.next.Write(ctx, key, snappy.Encode(nil, blob))
}

func (c *compressed) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := c.next.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	blob, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecompress, key, err)
	}

	return blob, nil
}
