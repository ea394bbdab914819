package fl

// Tensor is one layer of a model: a dense float64 buffer plus its shape.
type Tensor struct {
	Shape []int     `cbor:"1,keyasint" json:"shape"`
	Data  []float64 `cbor:"2,keyasint" json:"data"`
}

// Weights is the full set of layers of a model, in a fixed order.
type Weights []Tensor

// Update is one participant's contribution to a round. Weights stays
// encoded; only aggregators decode it.
type Update struct {
	ParticipantID string         `json:"participant_id"`
	Round         int            `json:"round"`
	Weights       []byte         `json:"-"`
	NumSamples    int            `json:"num_samples"`
	Metrics       map[string]any `json:"metrics,omitempty"`
}

// Aggregator combines the updates of one round into new global weights.
type Aggregator interface {
	Aggregate(updates map[string]Update) ([]byte, error)
}

// AggregatorFunc adapts a plain function to the Aggregator interface.
type AggregatorFunc func(updates map[string]Update) ([]byte, error)

func (f AggregatorFunc) Aggregate(updates map[string]Update) ([]byte, error) {
	return f(updates)
}

func (t Tensor) size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}

	return n
}

func (t Tensor) sameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for i, t := range w {
		out[i] = Tensor{
			Shape: append([]int(nil), t.Shape...),
			Data:  append([]float64(nil), t.Data...),
		}
	}

	return out
}

// Layout returns the shapes of w without their data.
func (w Weights) Layout() Weights {
	out := make(Weights, len(w))
	for i, t := range w {
		out[i] = Tensor{Shape: append([]int(nil), t.Shape...)}
	}

	return out
}

// Zeros returns weights of the same shape as w with every element zero.
func (w Weights) Zeros() Weights {
	out := make(Weights, len(w))
	for i, t := range w {
		out[i] = Tensor{
			Shape: append([]int(nil), t.Shape...),
			Data:  make([]float64, len(t.Data)),
		}
	}

	return out
}
