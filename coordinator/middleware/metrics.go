package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) Rendezvous(ctx context.Context, participantID string) (coordinator.RendezvousResult, error) {
	defer mm.observe("rendezvous", time.Now())

	return mm.svc.Rendezvous(ctx, participantID)
}

func (mm *metricsMiddleware) Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (coordinator.HeartbeatResult, error) {
	defer mm.observe("heartbeat", time.Now())

	return mm.svc.Heartbeat(ctx, participantID, state, round)
}

func (mm *metricsMiddleware) StartTrainingRound(ctx context.Context, participantID string) (coordinator.TrainingParams, error) {
	defer mm.observe("start-training-round", time.Now())

	return mm.svc.StartTrainingRound(ctx, participantID)
}

func (mm *metricsMiddleware) EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) error {
	defer mm.observe("end-training-round", time.Now())

	return mm.svc.EndTrainingRound(ctx, participantID, req)
}

func (mm *metricsMiddleware) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error {
	defer mm.observe("upload-weights", time.Now())

	return mm.svc.UploadWeights(ctx, participantID, round, blob)
}

func (mm *metricsMiddleware) GlobalWeights(ctx context.Context, round int) ([]byte, error) {
	defer mm.observe("global-weights", time.Now())

	return mm.svc.GlobalWeights(ctx, round)
}

func (mm *metricsMiddleware) RemoveParticipant(ctx context.Context, participantID string) error {
	defer mm.observe("remove-participant", time.Now())

	return mm.svc.RemoveParticipant(ctx, participantID)
}

func (mm *metricsMiddleware) EvictParticipant(ctx context.Context, participantID string) (bool, error) {
	defer mm.observe("evict-participant", time.Now())

	return mm.svc.EvictParticipant(ctx, participantID)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.Status, error) {
	defer mm.observe("status", time.Now())

	return mm.svc.Status(ctx)
}
