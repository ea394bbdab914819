package api

import (
	"context"
	"errors"

	"github.com/absmach/fedcoord/coordinator"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/storage"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func rendezvousEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(rendezvousReq)
		if !ok {
			return rendezvousRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return rendezvousRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Rendezvous(ctx, req.ParticipantID)
		if err != nil {
			return rendezvousRes{}, err
		}

		return rendezvousRes{RendezvousResult: res}, nil
	}
}

func heartbeatEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(heartbeatReq)
		if !ok {
			return heartbeatRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return heartbeatRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Heartbeat(ctx, req.ParticipantID, req.State, req.Round)
		if err != nil {
			return heartbeatRes{}, err
		}

		return heartbeatRes{HeartbeatResult: res}, nil
	}
}

func startRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(participantReq)
		if !ok {
			return trainingParamsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return trainingParamsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		params, err := svc.StartTrainingRound(ctx, req.ParticipantID)
		if err != nil {
			return trainingParamsRes{}, err
		}

		return trainingParamsRes{TrainingParams: params}, nil
	}
}

func endRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(endRoundReq)
		if !ok {
			return endRoundRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return endRoundRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.EndTrainingRound(ctx, req.ParticipantID, req.UpdateRequest); err != nil {
			return endRoundRes{}, err
		}

		return endRoundRes{}, nil
	}
}

func uploadWeightsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(uploadWeightsReq)
		if !ok {
			return uploadWeightsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return uploadWeightsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.UploadWeights(ctx, req.participantID, req.round, req.weights); err != nil {
			return uploadWeightsRes{}, err
		}

		return uploadWeightsRes{location: storage.LocalWeightsKey(req.participantID, req.round)}, nil
	}
}

func globalWeightsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(globalWeightsReq)
		if !ok {
			return weightsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}

		weights, err := svc.GlobalWeights(ctx, req.round)
		if err != nil {
			return weightsRes{}, err
		}

		return weightsRes{weights: weights}, nil
	}
}

func removeParticipantEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(participantReq)
		if !ok {
			return removeParticipantRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}
		if err := req.validate(); err != nil {
			return removeParticipantRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.RemoveParticipant(ctx, req.ParticipantID); err != nil {
			return removeParticipantRes{}, err
		}

		return removeParticipantRes{}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(statusReq); !ok {
			return statusRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrMalformedEntity)
		}

		st, err := svc.Status(ctx)
		if err != nil {
			return statusRes{}, err
		}

		return statusRes{Status: st}, nil
	}
}
