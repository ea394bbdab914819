package sdk

import (
	"context"
	"errors"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
)

var errNoModel = errors.New("no global model and no initial weights")

// TrainResult is what one local training run produces.
type TrainResult struct {
	Weights    []byte
	NumSamples int
	Metrics    map[string]any
}

// Trainer runs local training. global is nil when the coordinator has no
// model for the round yet.
type Trainer interface {
	Train(ctx context.Context, global []byte, params coordinator.TrainingParams) (TrainResult, error)
}

// EchoTrainer pretends to train by adding Step to every weight once per
// epoch. It is meant for demos and tests.
type EchoTrainer struct {
	Initial    fl.Weights
	Step       float64
	NumSamples int
}

func (t EchoTrainer) Train(_ context.Context, global []byte, params coordinator.TrainingParams) (TrainResult, error) {
	var weights fl.Weights
	switch {
	case len(global) > 0:
		w, err := fl.DecodeWeights(global)
		if err != nil {
			return TrainResult{}, err
		}
		weights = w
	case t.Initial != nil:
		weights = t.Initial.Clone()
	default:
		return TrainResult{}, errNoModel
	}

	delta := t.Step * float64(max(params.Epochs, 1))
	for _, tensor := range weights {
		for i := range tensor.Data {
			tensor.Data[i] += delta
		}
	}

	blob, err := fl.EncodeWeights(weights)
	if err != nil {
		return TrainResult{}, err
	}

	return TrainResult{
		Weights:    blob,
		NumSamples: t.NumSamples,
		Metrics: map[string]any{
			"epochs":     params.Epochs,
			"epoch_base": params.EpochBase,
		},
	}, nil
}
