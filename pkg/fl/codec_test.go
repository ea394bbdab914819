package fl_test

import (
	"testing"

	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWeights(t *testing.T) {
	cases := []struct {
		desc    string
		weights fl.Weights
		err     error
	}{
		{
			desc: "matrix and bias",
			weights: fl.Weights{
				{Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}},
				{Shape: []int{2}, Data: []float64{0.5, -0.5}},
			},
		},
		{
			desc:    "scalar layer",
			weights: fl.Weights{{Shape: []int{}, Data: []float64{42}}},
		},
		{
			desc:    "data shorter than shape",
			weights: fl.Weights{{Shape: []int{3}, Data: []float64{1, 2}}},
			err:     fl.ErrInvalidTensor,
		},
		{
			desc:    "negative dimension",
			weights: fl.Weights{{Shape: []int{-1}, Data: nil}},
			err:     fl.ErrInvalidTensor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			blob, err := fl.EncodeWeights(tc.weights)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)

			again, err := fl.EncodeWeights(tc.weights.Clone())
			require.NoError(t, err)
			assert.Equal(t, blob, again, "encoding must be deterministic")
		})
	}
}

func TestDecodeWeightsRejectsGarbage(t *testing.T) {
	_, err := fl.DecodeWeights([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestDecodeUpdate(t *testing.T) {
	valid, err := fl.EncodeWeights(fl.Weights{{Shape: []int{2}, Data: []float64{1, 2}}})
	require.NoError(t, err)
	empty, err := fl.EncodeWeights(fl.Weights{})
	require.NoError(t, err)

	cases := []struct {
		desc    string
		blob    []byte
		wantErr bool
		err     error
	}{
		{desc: "valid model", blob: valid},
		{desc: "no layers", blob: empty, wantErr: true, err: fl.ErrEmptyModel},
		{desc: "not cbor", blob: []byte("garbage"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			w, err := fl.DecodeUpdate(tc.blob)
			if tc.wantErr {
				assert.Error(t, err)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err)
				}

				return
			}
			require.NoError(t, err)
			assert.Len(t, w, 1)
		})
	}
}

func TestSameLayout(t *testing.T) {
	model := fl.Weights{
		{Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}},
		{Shape: []int{2}, Data: []float64{5, 6}},
	}

	cases := []struct {
		desc  string
		other fl.Weights
		same  bool
	}{
		{desc: "layout of itself", other: model.Layout(), same: true},
		{desc: "zeros", other: model.Zeros(), same: true},
		{desc: "missing layer", other: model[:1], same: false},
		{desc: "different shape", other: fl.Weights{{Shape: []int{4}}, {Shape: []int{2}}}, same: false},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.same, fl.SameLayout(model, tc.other))
		})
	}

	assert.Nil(t, model.Layout()[0].Data)
}
