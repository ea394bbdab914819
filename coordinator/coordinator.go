package coordinator

import (
	"context"
	"fmt"
)

// State is the lifecycle state of the coordinator as seen on the wire.
type State uint8

const (
	StateStandby State = iota
	StateRound
	StateFinished
)

const (
	standbyName  = "STANDBY"
	roundName    = "ROUND"
	finishedName = "FINISHED"
)

func (s State) String() string {
	switch s {
	case StateStandby:
		return standbyName
	case StateRound:
		return roundName
	case StateFinished:
		return finishedName
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st

	return nil
}

func ParseState(s string) (State, error) {
	switch s {
	case standbyName:
		return StateStandby, nil
	case roundName:
		return StateRound, nil
	case finishedName:
		return StateFinished, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// Reply is the answer to a rendezvous request.
type Reply uint8

const (
	Accept Reply = iota
	Later
)

func (r Reply) String() string {
	if r == Later {
		return "LATER"
	}

	return "ACCEPT"
}

func (r Reply) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reply) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ACCEPT":
		*r = Accept
	case "LATER":
		*r = Later
	default:
		return fmt.Errorf("unknown rendezvous reply %q", text)
	}

	return nil
}

type RendezvousResult struct {
	Reply         Reply  `json:"reply"`
	ParticipantID string `json:"participant_id"`
}

// HeartbeatResult tells a participant where the coordinator is. Selected
// and Submitted describe the participant's part in the current round.
type HeartbeatResult struct {
	State     State `json:"state"`
	Round     int   `json:"round"`
	Selected  bool  `json:"selected,omitempty"`
	Submitted bool  `json:"submitted,omitempty"`
}

type TrainingParams struct {
	Epochs    int `json:"epochs"`
	EpochBase int `json:"epoch_base"`
	Round     int `json:"round"`
}

// UpdateRequest describes a finished local training run. The weights
// themselves live in weight storage under WeightsRef.
type UpdateRequest struct {
	WeightsRef string         `json:"weights_ref,omitempty"`
	NumSamples int            `json:"num_samples"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

type Status struct {
	State        State `json:"state"`
	Round        int   `json:"round"`
	TotalRounds  int   `json:"total_rounds"`
	EpochBase    int   `json:"epoch_base"`
	Participants int   `json:"participants"`
	Selected     int   `json:"selected"`
	Updates      int   `json:"updates"`
	Expected     int   `json:"expected"`
}

// Transition is published every time the coordinator changes state or round.
type Transition struct {
	State     State `json:"state"`
	Round     int   `json:"round"`
	EpochBase int   `json:"epoch_base"`
}

// Notifier is told about transitions after the coordinator lock is released.
type Notifier interface {
	Notify(ctx context.Context, t Transition) error
}

// Service is the set of operations participants use to take part in
// federated training.
type Service interface {
	// Rendezvous registers a participant. An empty id gets a generated one.
	Rendezvous(ctx context.Context, participantID string) (RendezvousResult, error)
	Heartbeat(ctx context.Context, participantID string, state State, round int) (HeartbeatResult, error)
	StartTrainingRound(ctx context.Context, participantID string) (TrainingParams, error)
	EndTrainingRound(ctx context.Context, participantID string, req UpdateRequest) error
	// UploadWeights stores a participant's weights for a round so that a
	// following EndTrainingRound can reference them.
	UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error
	// GlobalWeights returns the global model a round starts from. A negative
	// round selects the current one.
	GlobalWeights(ctx context.Context, round int) ([]byte, error)
	RemoveParticipant(ctx context.Context, participantID string) error
	// EvictParticipant removes a participant only if its heartbeat deadline
	// has passed, and reports whether it did.
	EvictParticipant(ctx context.Context, participantID string) (bool, error)
	Status(ctx context.Context) (Status, error)
}
