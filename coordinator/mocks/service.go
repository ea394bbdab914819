package mocks

import (
	"context"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*Service)(nil)

// Service is a mock implementation of coordinator.Service.
type Service struct {
	mock.Mock
}

func (m *Service) Rendezvous(ctx context.Context, participantID string) (coordinator.RendezvousResult, error) {
	args := m.Called(ctx, participantID)

	return args.Get(0).(coordinator.RendezvousResult), args.Error(1)
}

func (m *Service) Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (coordinator.HeartbeatResult, error) {
	args := m.Called(ctx, participantID, state, round)

	return args.Get(0).(coordinator.HeartbeatResult), args.Error(1)
}

func (m *Service) StartTrainingRound(ctx context.Context, participantID string) (coordinator.TrainingParams, error) {
	args := m.Called(ctx, participantID)

	return args.Get(0).(coordinator.TrainingParams), args.Error(1)
}

func (m *Service) EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) error {
	args := m.Called(ctx, participantID, req)

	return args.Error(0)
}

func (m *Service) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error {
	args := m.Called(ctx, participantID, round, blob)

	return args.Error(0)
}

func (m *Service) GlobalWeights(ctx context.Context, round int) ([]byte, error) {
	args := m.Called(ctx, round)

	var blob []byte
	if b, ok := args.Get(0).([]byte); ok {
		blob = b
	}

	return blob, args.Error(1)
}

func (m *Service) RemoveParticipant(ctx context.Context, participantID string) error {
	args := m.Called(ctx, participantID)

	return args.Error(0)
}

func (m *Service) EvictParticipant(ctx context.Context, participantID string) (bool, error) {
	args := m.Called(ctx, participantID)

	return args.Bool(0), args.Error(1)
}

func (m *Service) Status(ctx context.Context) (coordinator.Status, error) {
	args := m.Called(ctx)

	return args.Get(0).(coordinator.Status), args.Error(1)
}
