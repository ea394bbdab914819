package mocks

import (
	"context"

	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/stretchr/testify/mock"
)

var _ storage.WeightStorage = (*WeightStorage)(nil)

type WeightStorage struct {
	mock.Mock
}

func (m *WeightStorage) Write(ctx context.Context, key string, blob []byte) error {
	args := m.Called(ctx, key, blob)

	return args.Error(0)
}

func (m *WeightStorage) Read(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)

	var blob []byte
	if b, ok := args.Get(0).([]byte); ok {
		blob = b
	}

	return blob, args.Error(1)
}
