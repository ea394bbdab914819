package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/absmach/fedcoord/pkg/mqtt"
)

const (
	heartbeatAction  = "heartbeat"
	disconnectAction = "disconnect"
)

var errInvalidMessage = errors.New("invalid participant message")

// BaseTopic is the root of every topic used for one training channel.
func BaseTopic(channel string) string {
	return "fl/" + channel
}

// StateTopic carries the coordinator's transitions.
func StateTopic(channel string) string {
	return BaseTopic(channel) + "/coordinator/state"
}

// HeartbeatTopic is where a participant publishes heartbeats.
func HeartbeatTopic(channel, participantID string) string {
	return BaseTopic(channel) + "/participants/" + participantID + "/" + heartbeatAction
}

// DisconnectTopic is where a participant, or the broker on its behalf via
// the last will, announces that it is leaving.
func DisconnectTopic(channel, participantID string) string {
	return BaseTopic(channel) + "/participants/" + participantID + "/" + disconnectAction
}

// Subscribe routes heartbeat and disconnect messages for channel into svc.
func Subscribe(ctx context.Context, channel string, pubsub mqtt.PubSub, svc Service, logger *slog.Logger) error {
	baseTopic := BaseTopic(channel)

	return pubsub.Subscribe(ctx, baseTopic+"/participants/#", Handle(ctx, baseTopic, svc, logger))
}

func Handle(ctx context.Context, baseTopic string, svc Service, logger *slog.Logger) mqtt.Handler {
	prefix := baseTopic + "/participants/"

	return func(topic string, msg map[string]any) error {
		rest, ok := strings.CutPrefix(topic, prefix)
		if !ok {
			return nil
		}
		participantID, action, ok := strings.Cut(rest, "/")
		if !ok || participantID == "" {
			return fmt.Errorf("%w: topic %s", errInvalidMessage, topic)
		}
		if id, ok := msg["participant_id"].(string); ok && id != participantID {
			return fmt.Errorf("%w: participant_id %s does not match topic %s", errInvalidMessage, id, topic)
		}

		switch action {
		case heartbeatAction:
			state, round, err := decodeHeartbeat(msg)
			if err != nil {
				return err
			}
			_, err = svc.Heartbeat(ctx, participantID, state, round)

			return err
		case disconnectAction:
			if err := svc.RemoveParticipant(ctx, participantID); err != nil {
				return err
			}
			logger.InfoContext(ctx, "participant disconnected over mqtt", slog.String("participant_id", participantID))
		}

		return nil
	}
}

func decodeHeartbeat(msg map[string]any) (State, int, error) {
	var state State
	if s, ok := msg["state"].(string); ok {
		st, err := ParseState(s)
		if err != nil {
			return 0, 0, err
		}
		state = st
	}

	var round int
	if r, ok := msg["round"].(float64); ok {
		round = int(r)
	}

	return state, round, nil
}

type mqttNotifier struct {
	pubsub mqtt.PubSub
	topic  string
}

// NewMQTTNotifier publishes transitions to the state topic of channel.
func NewMQTTNotifier(pubsub mqtt.PubSub, channel string) Notifier {
	return &mqttNotifier{
		pubsub: pubsub,
		topic:  StateTopic(channel),
	}
}

func (n *mqttNotifier) Notify(ctx context.Context, t Transition) error {
	return n.pubsub.Publish(ctx, n.topic, t)
}
