package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/coordinator/mocks"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	mqttmocks "github.com/absmach/fedcoord/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const channel = "mnist"

func TestTopics(t *testing.T) {
	assert.Equal(t, "fl/mnist/coordinator/state", coordinator.StateTopic(channel))
	assert.Equal(t, "fl/mnist/participants/p1/heartbeat", coordinator.HeartbeatTopic(channel, "p1"))
	assert.Equal(t, "fl/mnist/participants/p1/disconnect", coordinator.DisconnectTopic(channel, "p1"))
}

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		desc     string
		topic    string
		msg      map[string]any
		setup    func(svc *mocks.Service)
		err      error
		anyError bool
	}{
		{
			desc:  "heartbeat",
			topic: coordinator.HeartbeatTopic(channel, "p1"),
			msg:   map[string]any{"state": "ROUND", "round": float64(2)},
			setup: func(svc *mocks.Service) {
				svc.On("Heartbeat", mock.Anything, "p1", coordinator.StateRound, 2).
					Return(coordinator.HeartbeatResult{State: coordinator.StateRound, Round: 2}, nil)
			},
		},
		{
			desc:  "heartbeat from unknown participant",
			topic: coordinator.HeartbeatTopic(channel, "ghost"),
			msg:   map[string]any{},
			setup: func(svc *mocks.Service) {
				svc.On("Heartbeat", mock.Anything, "ghost", coordinator.StateStandby, 0).
					Return(coordinator.HeartbeatResult{}, pkgerrors.ErrPermissionDenied)
			},
			err: pkgerrors.ErrPermissionDenied,
		},
		{
			desc:  "heartbeat with unknown state",
			topic: coordinator.HeartbeatTopic(channel, "p1"),
			msg:   map[string]any{"state": "TRAINING"},
			err:   coordinator.ErrUnknownState,
		},
		{
			desc:  "disconnect",
			topic: coordinator.DisconnectTopic(channel, "p1"),
			msg:   map[string]any{"participant_id": "p1"},
			setup: func(svc *mocks.Service) {
				svc.On("RemoveParticipant", mock.Anything, "p1").Return(nil)
			},
		},
		{
			desc:     "participant id does not match topic",
			topic:    coordinator.DisconnectTopic(channel, "p1"),
			msg:      map[string]any{"participant_id": "p2"},
			anyError: true,
		},
		{
			desc:     "missing participant id",
			topic:    coordinator.BaseTopic(channel) + "/participants/",
			msg:      map[string]any{},
			anyError: true,
		},
		{
			desc:  "foreign topic",
			topic: "fl/other/participants/p1/heartbeat",
			msg:   map[string]any{},
		},
		{
			desc:  "unknown action",
			topic: coordinator.BaseTopic(channel) + "/participants/p1/metrics",
			msg:   map[string]any{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			svc := new(mocks.Service)
			if tc.setup != nil {
				tc.setup(svc)
			}

			handler := coordinator.Handle(context.Background(), coordinator.BaseTopic(channel), svc, logger)
			err := handler(tc.topic, tc.msg)

			switch {
			case tc.anyError:
				assert.Error(t, err)
			default:
				assert.ErrorIs(t, err, tc.err)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSubscribe(t *testing.T) {
	pubsub := new(mqttmocks.PubSub)
	svc := new(mocks.Service)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pubsub.On("Subscribe", mock.Anything, "fl/mnist/participants/#", mock.Anything).Return(nil).Once()
	require.NoError(t, coordinator.Subscribe(context.Background(), channel, pubsub, svc, logger))

	errSubscribe := errors.New("broker down")
	pubsub.On("Subscribe", mock.Anything, "fl/mnist/participants/#", mock.Anything).Return(errSubscribe).Once()
	assert.ErrorIs(t, coordinator.Subscribe(context.Background(), channel, pubsub, svc, logger), errSubscribe)

	pubsub.AssertExpectations(t)
}

func TestMQTTNotifier(t *testing.T) {
	pubsub := new(mqttmocks.PubSub)
	transition := coordinator.Transition{State: coordinator.StateRound, Round: 1, EpochBase: 5}
	pubsub.On("Publish", mock.Anything, coordinator.StateTopic(channel), transition).Return(nil)

	notifier := coordinator.NewMQTTNotifier(pubsub, channel)
	require.NoError(t, notifier.Notify(context.Background(), transition))

	pubsub.AssertExpectations(t)
}
