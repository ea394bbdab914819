package sdk

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
	"gonum.org/v1/gonum/floats"
)

var errModelLayout = errors.New("logistic model must be a weight vector followed by a scalar bias")

// Sample is one labelled example for LogisticTrainer.
type Sample struct {
	X []float64
	Y float64
}

// LogisticTrainer fits a logistic regression model with mini-batch SGD.
// The model is two tensors: the weight vector and a one-element bias.
type LogisticTrainer struct {
	Dataset      []Sample
	LearningRate float64
	BatchSize    int
	Seed         uint64
}

// NewLogisticTrainer builds a trainer over a synthetic dataset derived from
// participantID, so each participant sees a different but stable shard.
func NewLogisticTrainer(participantID string, features, samples int, lr float64) *LogisticTrainer {
	seed := seedFor(participantID)
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	dataset := make([]Sample, samples)
	for i := range dataset {
		x := make([]float64, features)
		for j := range x {
			x[j] = rng.Float64()
		}
		var y float64
		if floats.Sum(x) > float64(features)/2 {
			y = 1
		}
		dataset[i] = Sample{X: x, Y: y}
	}

	return &LogisticTrainer{
		Dataset:      dataset,
		LearningRate: lr,
		BatchSize:    16,
		Seed:         seed,
	}
}

// InitialLogisticModel returns an all-zero model for features inputs.
func InitialLogisticModel(features int) fl.Weights {
	return fl.Weights{
		{Shape: []int{features}, Data: make([]float64, features)},
		{Shape: []int{1}, Data: []float64{0}},
	}
}

func (t *LogisticTrainer) Train(_ context.Context, global []byte, params coordinator.TrainingParams) (TrainResult, error) {
	features := 0
	if len(t.Dataset) > 0 {
		features = len(t.Dataset[0].X)
	}

	model := InitialLogisticModel(features)
	if len(global) > 0 {
		w, err := fl.DecodeWeights(global)
		if err != nil {
			return TrainResult{}, err
		}
		model = w
	}
	if len(model) != 2 || len(model[1].Data) != 1 || len(model[0].Data) != features {
		return TrainResult{}, errModelLayout
	}

	weights := model[0].Data
	bias := model[1].Data[0]
	batch := max(t.BatchSize, 1)
	order := make([]int, len(t.Dataset))
	for i := range order {
		order[i] = i
	}
	// Shuffles differ per epoch but stay reproducible across restarts.
	rng := rand.New(rand.NewPCG(t.Seed, uint64(params.EpochBase)))

	grad := make([]float64, features)
	for range max(params.Epochs, 1) {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += batch {
			end := min(start+batch, len(order))
			for i := range grad {
				grad[i] = 0
			}
			var gradBias float64
			for _, idx := range order[start:end] {
				s := t.Dataset[idx]
				e := predict(weights, bias, s.X) - s.Y
				floats.AddScaled(grad, e, s.X)
				gradBias += e
			}
			n := float64(end - start)
			floats.AddScaled(weights, -t.LearningRate/n, grad)
			bias -= t.LearningRate * gradBias / n
		}
	}
	model[1].Data[0] = bias

	blob, err := fl.EncodeWeights(model)
	if err != nil {
		return TrainResult{}, err
	}

	loss, accuracy := t.evaluate(weights, bias)

	return TrainResult{
		Weights:    blob,
		NumSamples: len(t.Dataset),
		Metrics: map[string]any{
			"loss":     loss,
			"accuracy": accuracy,
			"epochs":   params.Epochs,
		},
	}, nil
}

func (t *LogisticTrainer) evaluate(weights []float64, bias float64) (float64, float64) {
	if len(t.Dataset) == 0 {
		return 0, 0
	}

	var loss, correct float64
	for _, s := range t.Dataset {
		p := predict(weights, bias, s.X)
		p = math.Min(math.Max(p, 1e-12), 1-1e-12)
		loss -= s.Y*math.Log(p) + (1-s.Y)*math.Log(1-p)
		if (p >= 0.5) == (s.Y == 1) {
			correct++
		}
	}
	n := float64(len(t.Dataset))

	return loss / n, correct / n
}

func predict(weights []float64, bias float64, x []float64) float64 {
	z := floats.Dot(weights, x) + bias
	z = math.Min(math.Max(z, -20), 20)

	return 1 / (1 + math.Exp(-z))
}

func seedFor(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))

	return h.Sum64()
}
