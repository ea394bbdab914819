package sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedcoord/coordinator"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantOperations(t *testing.T) {
	tc := newCoordinator(t, coordinatorConfig(2, 1))
	ctx := context.Background()

	res, err := tc.sdk.Rendezvous(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, coordinator.RendezvousResult{Reply: coordinator.Accept, ParticipantID: "p1"}, res)

	res, err = tc.sdk.Rendezvous(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, coordinator.Accept, res.Reply)
	second := res.ParticipantID
	require.NotEmpty(t, second)

	res, err = tc.sdk.Rendezvous(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, coordinator.Later, res.Reply)

	hb, err := tc.sdk.Heartbeat(ctx, "p1", coordinator.StateStandby, 0)
	require.NoError(t, err)
	assert.Equal(t, coordinator.HeartbeatResult{State: coordinator.StateRound, Round: 0, Selected: true}, hb)

	params, err := tc.sdk.StartTrainingRound(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, coordinator.TrainingParams{Epochs: 1, EpochBase: 0, Round: 0}, params)

	blob, err := fl.EncodeWeights(fl.Weights{{Shape: []int{2}, Data: []float64{2, 4}}})
	require.NoError(t, err)
	require.NoError(t, tc.sdk.UploadWeights(ctx, "p1", 0, blob))
	require.NoError(t, tc.sdk.EndTrainingRound(ctx, "p1", coordinator.UpdateRequest{
		WeightsRef: storage.LocalWeightsKey("p1", 0),
		NumSamples: 10,
	}))

	err = tc.sdk.EndTrainingRound(ctx, "p1", coordinator.UpdateRequest{NumSamples: 10})
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyExists)

	_, err = tc.sdk.StartTrainingRound(ctx, "stranger")
	assert.ErrorIs(t, err, pkgerrors.ErrPermissionDenied)

	st, err := tc.sdk.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.Status{
		State:        coordinator.StateRound,
		TotalRounds:  1,
		Participants: 2,
		Selected:     2,
		Updates:      1,
		Expected:     2,
	}, st)

	require.NoError(t, tc.sdk.UploadWeights(ctx, second, 0, blob))
	require.NoError(t, tc.sdk.EndTrainingRound(ctx, second, coordinator.UpdateRequest{NumSamples: 30}))

	global, err := tc.sdk.GlobalWeights(ctx, -1)
	require.NoError(t, err)
	w, err := fl.DecodeWeights(global)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, w[0].Data)

	_, err = tc.sdk.GlobalWeights(ctx, 7)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = tc.sdk.StartTrainingRound(ctx, "p1")
	assert.ErrorIs(t, err, pkgerrors.ErrFailedPrecondition)

	require.NoError(t, tc.sdk.Disconnect(ctx, "p1"))
	_, err = tc.sdk.Heartbeat(ctx, "p1", coordinator.StateFinished, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrPermissionDenied)
}

func TestErrorDecoding(t *testing.T) {
	cases := []struct {
		desc   string
		status int
		body   string
		err    error
	}{
		{desc: "forbidden", status: http.StatusForbidden, body: `{"error":"participant has not completed rendezvous"}`, err: pkgerrors.ErrPermissionDenied},
		{desc: "precondition failed", status: http.StatusPreconditionFailed, body: `{"error":"not in round"}`, err: pkgerrors.ErrFailedPrecondition},
		{desc: "conflict", status: http.StatusConflict, err: pkgerrors.ErrAlreadyExists},
		{desc: "bad gateway", status: http.StatusBadGateway, err: pkgerrors.ErrStorage},
		{desc: "not found", status: http.StatusNotFound, err: pkgerrors.ErrNotFound},
		{desc: "bad request", status: http.StatusBadRequest, err: pkgerrors.ErrMalformedEntity},
		{desc: "too large", status: http.StatusRequestEntityTooLarge, err: pkgerrors.ErrTooLarge},
		{desc: "server error", status: http.StatusInternalServerError, body: "boom", err: sdk.ErrUnexpectedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			client := sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL})
			_, err := client.Status(context.Background())
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
