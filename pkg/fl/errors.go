package fl

import "errors"

var (
	ErrEmptyAggregationSet = errors.New("no updates provided for aggregation")
	ErrShapeMismatch       = errors.New("update weights do not match the model shape")
	ErrInvalidTensor       = errors.New("tensor data does not match its shape")
	ErrEmptyModel          = errors.New("weights have no layers")
	ErrNegativeSamples     = errors.New("update reports a negative sample count")
	ErrUnknownAggregator   = errors.New("unknown aggregator")
	ErrInvalidTrimRatio    = errors.New("trim ratio must be in [0, 0.5)")
)
