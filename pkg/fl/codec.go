package fl

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ContentType is the media type of encoded weights on the wire.
const ContentType = "application/cbor"

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

// EncodeWeights serializes w with deterministic CBOR, so equal weights
// always produce equal blobs.
func EncodeWeights(w Weights) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	return encMode.Marshal(w)
}

// DecodeUpdate decodes the weights of a participant update and rejects
// models without layers.
func DecodeUpdate(data []byte) (Weights, error) {
	w, err := DecodeWeights(data)
	if err != nil {
		return nil, err
	}
	if len(w) == 0 {
		return nil, ErrEmptyModel
	}

	return w, nil
}

func DecodeWeights(data []byte) (Weights, error) {
	var w Weights
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	return w, nil
}

// Validate checks that every tensor holds exactly as many elements as its
// shape describes.
func (w Weights) Validate() error {
	for i, t := range w {
		for _, d := range t.Shape {
			if d < 0 {
				return fmt.Errorf("%w: layer %d has negative dimension", ErrInvalidTensor, i)
			}
		}
		if t.size() != len(t.Data) {
			return fmt.Errorf("%w: layer %d has %d elements, shape %v needs %d", ErrInvalidTensor, i, len(t.Data), t.Shape, t.size())
		}
	}

	return nil
}
