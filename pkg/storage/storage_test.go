package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/absmach/fedcoord/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")

func TestKeys(t *testing.T) {
	assert.Equal(t, "participants/p-1/rounds/4", storage.LocalWeightsKey("p-1", 4))
	assert.Equal(t, "global/0", storage.GlobalWeightsKey(0))
}

func TestParseLocalWeightsKey(t *testing.T) {
	cases := []struct {
		desc  string
		key   string
		id    string
		round int
		ok    bool
	}{
		{desc: "local key", key: storage.LocalWeightsKey("p-1", 4), id: "p-1", round: 4, ok: true},
		{desc: "id with slash", key: storage.LocalWeightsKey("site/p-1", 0), id: "site/p-1", round: 0, ok: true},
		{desc: "global key", key: storage.GlobalWeightsKey(1)},
		{desc: "missing id", key: "participants/rounds/1"},
		{desc: "round is not a number", key: "participants/p-1/rounds/last"},
		{desc: "negative round", key: "participants/p-1/rounds/-2"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			id, round, ok := storage.ParseLocalWeightsKey(tc.key)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.id, id)
			assert.Equal(t, tc.round, round)
		})
	}
}

func TestBackends(t *testing.T) {
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	backends := map[string]storage.WeightStorage{
		"memory":            storage.NewInMemoryStorage(),
		"file":              fs,
		"compressed memory": storage.NewCompressed(storage.NewInMemoryStorage()),
	}

	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := storage.LocalWeightsKey("participant-1", 0)

			cases := []struct {
				desc  string
				write bool
				key   string
				blob  []byte
				err   error
			}{
				{desc: "write blob", write: true, key: key, blob: []byte("weights")},
				{desc: "read blob back", key: key, blob: []byte("weights")},
				{desc: "overwrite blob", write: true, key: key, blob: []byte("newer weights")},
				{desc: "read overwritten blob", key: key, blob: []byte("newer weights")},
				{desc: "read missing blob", key: storage.GlobalWeightsKey(7), err: pkgerrors.ErrNotFound},
				{desc: "read empty key", key: "", err: pkgerrors.ErrEmptyKey},
			}

			for _, tc := range cases {
				if tc.write {
					require.NoError(t, s.Write(ctx, tc.key, tc.blob), tc.desc)

					continue
				}
				got, err := s.Read(ctx, tc.key)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err, tc.desc)

					continue
				}
				require.NoError(t, err, tc.desc)
				assert.Equal(t, tc.blob, got, tc.desc)
			}
		})
	}
}

func TestFileStorageRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	fs, err := storage.NewFileStorage(filepath.Join(root, "weights"))
	require.NoError(t, err)

	cases := []string{
		"../escape",
		"participants/../../escape",
		"participants//rounds",
		"participants/a b/rounds/1",
	}

	for _, key := range cases {
		t.Run(key, func(t *testing.T) {
			err := fs.Write(context.Background(), key, []byte("x"))
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
		})
	}
}

func TestRetrying(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures are retried", func(t *testing.T) {
		m := new(mocks.WeightStorage)
		m.On("Read", mock.Anything, "k").Return(nil, errTransient).Twice()
		m.On("Read", mock.Anything, "k").Return([]byte{1}, nil).Once()

		s, err := storage.NewRetrying(m, 3, time.Millisecond)
		require.NoError(t, err)

		got, err := s.Read(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got)
		m.AssertNumberOfCalls(t, "Read", 3)
	})

	t.Run("missing keys are not retried", func(t *testing.T) {
		m := new(mocks.WeightStorage)
		m.On("Read", mock.Anything, "k").Return(nil, pkgerrors.ErrNotFound)

		s, err := storage.NewRetrying(m, 3, time.Millisecond)
		require.NoError(t, err)

		_, err = s.Read(ctx, "k")
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		m.AssertNumberOfCalls(t, "Read", 1)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		m := new(mocks.WeightStorage)
		m.On("Write", mock.Anything, "k", []byte{1}).Return(errTransient)

		s, err := storage.NewRetrying(m, 2, time.Millisecond)
		require.NoError(t, err)

		err = s.Write(ctx, "k", []byte{1})
		assert.ErrorIs(t, err, errTransient)
		m.AssertNumberOfCalls(t, "Write", 3)
	})

	t.Run("non-positive base", func(t *testing.T) {
		_, err := storage.NewRetrying(storage.NewInMemoryStorage(), 1, 0)
		assert.Error(t, err)
	})
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	m := new(mocks.WeightStorage)
	m.On("Read", mock.Anything, "global/1").Return([]byte{9}, nil).Once()
	m.On("Write", mock.Anything, "global/2", []byte{7}).Return(nil).Once()

	s, err := storage.NewCached(m, 8)
	require.NoError(t, err)

	for range 3 {
		got, err := s.Read(ctx, "global/1")
		require.NoError(t, err)
		assert.Equal(t, []byte{9}, got)
	}

	require.NoError(t, s.Write(ctx, "global/2", []byte{7}))
	got, err := s.Read(ctx, "global/2")
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got)

	m.AssertExpectations(t)
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		desc string
		cfg  storage.Config
		err  error
	}{
		{
			desc: "memory with every decorator",
			cfg:  storage.Config{Type: "memory", Compress: true, MaxRetries: 2, RetryBase: time.Millisecond, CacheSize: 4},
		},
		{
			desc: "file",
			cfg:  storage.Config{Type: "file", FilePath: filepath.Join(dir, "files")},
		},
		{
			desc: "badger",
			cfg:  storage.Config{Type: "badger", BadgerPath: filepath.Join(dir, "badger")},
		},
		{
			desc: "s3 without bucket",
			cfg:  storage.Config{Type: "s3"},
			err:  storage.ErrMissingBucket,
		},
		{
			desc: "unknown backend",
			cfg:  storage.Config{Type: "tape"},
			err:  storage.ErrUnsupportedBackend,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := storage.NewBackend(context.Background(), tc.cfg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			if b.Closer != nil {
				defer b.Closer.Close()
			}

			ctx := context.Background()
			require.NoError(t, b.Weights.Write(ctx, "global/0", []byte("model")))
			got, err := b.Weights.Read(ctx, "global/0")
			require.NoError(t, err)
			assert.Equal(t, []byte("model"), got)
		})
	}
}
