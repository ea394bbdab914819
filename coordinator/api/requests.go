package api

import (
	"github.com/absmach/fedcoord/coordinator"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type rendezvousReq struct {
	ParticipantID string `json:"participant_id,omitempty"`
}

func (r *rendezvousReq) validate() error {
	return nil
}

type heartbeatReq struct {
	ParticipantID string            `json:"participant_id"`
	State         coordinator.State `json:"state"`
	Round         int               `json:"round"`
}

func (r *heartbeatReq) validate() error {
	if r.ParticipantID == "" {
		return apiutil.ErrMissingID
	}
	if r.Round < 0 {
		return pkgerrors.ErrMalformedEntity
	}

	return nil
}

type participantReq struct {
	ParticipantID string `json:"participant_id"`
}

func (r *participantReq) validate() error {
	if r.ParticipantID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type endRoundReq struct {
	ParticipantID string `json:"participant_id"`
	coordinator.UpdateRequest
}

func (r *endRoundReq) validate() error {
	if r.ParticipantID == "" {
		return apiutil.ErrMissingID
	}
	if r.NumSamples < 0 {
		return pkgerrors.ErrMalformedEntity
	}

	return nil
}

type uploadWeightsReq struct {
	participantID string
	round         int
	weights       []byte
}

func (r *uploadWeightsReq) validate() error {
	if r.participantID == "" {
		return apiutil.ErrMissingID
	}
	if r.round < 0 || len(r.weights) == 0 {
		return pkgerrors.ErrMalformedEntity
	}

	return nil
}

type globalWeightsReq struct {
	round int
}

type statusReq struct{}
