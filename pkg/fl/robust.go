package fl

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

type MedianAggregator struct{}

// NewMedianAggregator takes the coordinate-wise median of the updates.
// Sample counts are ignored.
func NewMedianAggregator() Aggregator {
	return &MedianAggregator{}
}

func (m *MedianAggregator) Aggregate(updates map[string]Update) ([]byte, error) {
	return coordinateWise(updates, func(column []float64) float64 {
		slices.Sort(column)
		mid := len(column) / 2
		if len(column)%2 == 1 {
			return column[mid]
		}

		return (column[mid-1] + column[mid]) / 2
	})
}

type TrimmedMeanAggregator struct {
	ratio float64
}

// NewTrimmedMeanAggregator drops the ratio largest and ratio smallest values
// of every coordinate before averaging the rest.
func NewTrimmedMeanAggregator(ratio float64) (Aggregator, error) {
	if ratio < 0 || ratio >= 0.5 {
		return nil, ErrInvalidTrimRatio
	}

	return &TrimmedMeanAggregator{ratio: ratio}, nil
}

func (t *TrimmedMeanAggregator) Aggregate(updates map[string]Update) ([]byte, error) {
	return coordinateWise(updates, func(column []float64) float64 {
		slices.Sort(column)
		k := int(t.ratio * float64(len(column)))

		return stat.Mean(column[k:len(column)-k], nil)
	})
}

func coordinateWise(updates map[string]Update, reduce func(column []float64) float64) ([]byte, error) {
	_, decoded, err := decodeUpdates(updates)
	if err != nil {
		return nil, err
	}

	result := decoded[0].Zeros()
	column := make([]float64, len(decoded))
	for l := range result {
		for e := range result[l].Data {
			for i := range decoded {
				column[i] = decoded[i][l].Data[e]
			}
			result[l].Data[e] = reduce(column)
		}
	}

	return EncodeWeights(result)
}
