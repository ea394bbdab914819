package fl

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	FedAvg      = "fedavg"
	Median      = "median"
	TrimmedMean = "trimmed_mean"
)

// NewAggregator returns the aggregation strategy registered under name.
func NewAggregator(name string, trimRatio float64) (Aggregator, error) {
	switch name {
	case FedAvg, "":
		return NewFedAvgAggregator(), nil
	case Median:
		return NewMedianAggregator(), nil
	case TrimmedMean:
		return NewTrimmedMeanAggregator(trimRatio)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAggregator, name)
	}
}

type FedAvgAggregator struct{}

// NewFedAvgAggregator averages updates element-wise, weighting each by its
// sample count. When every update reports zero samples the plain mean is used.
func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(updates map[string]Update) ([]byte, error) {
	ids, decoded, err := decodeUpdates(updates)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, id := range ids {
		total += float64(updates[id].NumSamples)
	}

	result := decoded[0].Zeros()
	for i, id := range ids {
		coef := 1 / float64(len(ids))
		if total > 0 {
			coef = float64(updates[id].NumSamples) / total
		}
		for l := range result {
			floats.AddScaled(result[l].Data, coef, decoded[i][l].Data)
		}
	}

	return EncodeWeights(result)
}

// decodeUpdates decodes every update in a stable order and checks that all
// of them share the shape of the first one.
func decodeUpdates(updates map[string]Update) ([]string, []Weights, error) {
	if len(updates) == 0 {
		return nil, nil, ErrEmptyAggregationSet
	}

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	decoded := make([]Weights, len(ids))
	for i, id := range ids {
		u := updates[id]
		if u.NumSamples < 0 {
			return nil, nil, fmt.Errorf("%w: participant %s", ErrNegativeSamples, id)
		}
		w, err := DecodeWeights(u.Weights)
		if err != nil {
			return nil, nil, fmt.Errorf("participant %s: %w", id, err)
		}
		if i > 0 && !SameLayout(decoded[0], w) {
			return nil, nil, fmt.Errorf("%w: participant %s", ErrShapeMismatch, id)
		}
		decoded[i] = w
	}

	return ids, decoded, nil
}

// SameLayout reports whether a and b have the same number of layers with
// the same shapes.
func SameLayout(a, b Weights) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].sameShape(b[i]) {
			return false
		}
	}

	return true
}
