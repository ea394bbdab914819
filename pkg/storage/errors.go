package storage

import "errors"

var (
	ErrInvalidKey         = errors.New("invalid storage key")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
	ErrMissingBucket      = errors.New("s3 bucket is required")
	ErrDecompress         = errors.New("failed to decompress stored blob")
)
