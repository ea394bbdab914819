package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/absmach/fedcoord/pkg/storage/badger"
)

type Config struct {
	Type string `env:"TYPE" envDefault:"memory"`

	FilePath   string `env:"FILE_PATH"   envDefault:"./data/weights"`
	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/badger"`

	S3 S3Config `envPrefix:"S3_"`

	Compress   bool          `env:"COMPRESS"    envDefault:"false"`
	MaxRetries uint64        `env:"MAX_RETRIES" envDefault:"3"`
	RetryBase  time.Duration `env:"RETRY_BASE"  envDefault:"100ms"`
	CacheSize  int           `env:"CACHE_SIZE"  envDefault:"64"`
}

type Backend struct {
	Weights WeightStorage
	// Closer closes the underlying persistent storage.
	// It is nil for backends that hold no resources.
	Closer io.Closer
}

// NewBackend builds the configured store and wraps it with compression,
// retries and caching, in that order from the inside out.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	b, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Compress {
		b.Weights = NewCompressed(b.Weights)
	}
	if cfg.MaxRetries > 0 {
		if b.Weights, err = NewRetrying(b.Weights, cfg.MaxRetries, cfg.RetryBase); err != nil {
			return nil, closeOnErr(b, err)
		}
	}
	if cfg.CacheSize > 0 {
		if b.Weights, err = NewCached(b.Weights, cfg.CacheSize); err != nil {
			return nil, closeOnErr(b, err)
		}
	}

	return b, nil
}

func newBase(ctx context.Context, cfg Config) (*Backend, error) {
	switch cfg.Type {
	case "memory":
		return &Backend{Weights: NewInMemoryStorage()}, nil
	case "file":
		fs, err := NewFileStorage(cfg.FilePath)
		if err != nil {
			return nil, err
		}

		return &Backend{Weights: fs}, nil
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return &Backend{Weights: db, Closer: db}, nil
	case "s3":
		s, err := NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}

		return &Backend{Weights: s}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Type)
	}
}

func closeOnErr(b *Backend, err error) error {
	if b.Closer != nil {
		_ = b.Closer.Close()
	}

	return err
}
