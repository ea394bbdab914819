package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/api"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	participantIDKey = "participantID"
	roundKey         = "round"
)

var maxWeightsSize int64 = 1024 * 1024 * 256

var errInvalidRound = errors.New("round must be a non-negative integer")

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/rendezvous", otelhttp.NewHandler(kithttp.NewServer(
		rendezvousEndpoint(svc),
		decodeRendezvousReq,
		api.EncodeResponse,
		opts...,
	), "rendezvous").ServeHTTP)

	mux.Post("/heartbeat", otelhttp.NewHandler(kithttp.NewServer(
		heartbeatEndpoint(svc),
		decodeHeartbeatReq,
		api.EncodeResponse,
		opts...,
	), "heartbeat").ServeHTTP)

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/start", otelhttp.NewHandler(kithttp.NewServer(
			startRoundEndpoint(svc),
			decodeParticipantReq,
			api.EncodeResponse,
			opts...,
		), "start-training-round").ServeHTTP)
		r.Post("/end", otelhttp.NewHandler(kithttp.NewServer(
			endRoundEndpoint(svc),
			decodeEndRoundReq,
			api.EncodeResponse,
			opts...,
		), "end-training-round").ServeHTTP)
	})

	mux.Route("/participants/{participantID}", func(r chi.Router) {
		r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
			removeParticipantEndpoint(svc),
			decodeRemoveParticipantReq,
			api.EncodeResponse,
			opts...,
		), "remove-participant").ServeHTTP)
		r.With(middleware.RequestSize(maxWeightsSize)).Put("/rounds/{round}/weights", otelhttp.NewHandler(kithttp.NewServer(
			uploadWeightsEndpoint(svc),
			decodeUploadWeightsReq,
			api.EncodeResponse,
			opts...,
		), "upload-weights").ServeHTTP)
	})

	mux.Route("/weights", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			globalWeightsEndpoint(svc),
			decodeCurrentWeightsReq,
			encodeWeightsResponse,
			opts...,
		), "current-weights").ServeHTTP)
		r.Get("/{round}", otelhttp.NewHandler(kithttp.NewServer(
			globalWeightsEndpoint(svc),
			decodeGlobalWeightsReq,
			encodeWeightsResponse,
			opts...,
		), "global-weights").ServeHTTP)
	})

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		decodeStatusReq,
		api.EncodeResponse,
		opts...,
	), "status").ServeHTTP)

	mux.Get("/health", supermq.Health("fedcoord", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeJSON(r *http.Request, v any) error {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(err, apiutil.ErrValidation)
	}

	return nil
}

func decodeRendezvousReq(_ context.Context, r *http.Request) (any, error) {
	var req rendezvousReq
	if r.ContentLength == 0 {
		return req, nil
	}
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeHeartbeatReq(_ context.Context, r *http.Request) (any, error) {
	var req heartbeatReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeParticipantReq(_ context.Context, r *http.Request) (any, error) {
	var req participantReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeEndRoundReq(_ context.Context, r *http.Request) (any, error) {
	var req endRoundReq
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeRemoveParticipantReq(_ context.Context, r *http.Request) (any, error) {
	return participantReq{
		ParticipantID: chi.URLParam(r, participantIDKey),
	}, nil
}

func decodeUploadWeightsReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), fl.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}
	round, err := readRound(r)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r.Body)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, fmt.Errorf("%w: weights exceed %d bytes", pkgerrors.ErrTooLarge, tooLarge.Limit)
	case err != nil:
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return uploadWeightsReq{
		participantID: chi.URLParam(r, participantIDKey),
		round:         round,
		weights:       data,
	}, nil
}

func decodeCurrentWeightsReq(_ context.Context, _ *http.Request) (any, error) {
	return globalWeightsReq{round: -1}, nil
}

func decodeGlobalWeightsReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, err
	}

	return globalWeightsReq{round: round}, nil
}

func decodeStatusReq(_ context.Context, _ *http.Request) (any, error) {
	return statusReq{}, nil
}

func readRound(r *http.Request) (int, error) {
	round, err := strconv.Atoi(chi.URLParam(r, roundKey))
	if err != nil || round < 0 {
		return 0, errors.Join(apiutil.ErrValidation, errInvalidRound)
	}

	return round, nil
}

func encodeWeightsResponse(_ context.Context, w http.ResponseWriter, response any) error {
	res, ok := response.(weightsRes)
	if !ok {
		return api.EncodeResponse(context.Background(), w, response)
	}

	w.Header().Set("Content-Type", fl.ContentType)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(res.weights)

	return err
}
