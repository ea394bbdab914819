package middleware

import (
	"context"

	"github.com/absmach/fedcoord/coordinator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Rendezvous(ctx context.Context, participantID string) (resp coordinator.RendezvousResult, err error) {
	ctx, span := tm.tracer.Start(ctx, "rendezvous", trace.WithAttributes(
		attribute.String("participant_id", participantID),
	))
	defer endSpan(span, &err)

	return tm.svc.Rendezvous(ctx, participantID)
}

func (tm *tracing) Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (resp coordinator.HeartbeatResult, err error) {
	ctx, span := tm.tracer.Start(ctx, "heartbeat", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.String("state", state.String()),
		attribute.Int("round", round),
	))
	defer endSpan(span, &err)

	return tm.svc.Heartbeat(ctx, participantID, state, round)
}

func (tm *tracing) StartTrainingRound(ctx context.Context, participantID string) (resp coordinator.TrainingParams, err error) {
	ctx, span := tm.tracer.Start(ctx, "start-training-round", trace.WithAttributes(
		attribute.String("participant_id", participantID),
	))
	defer endSpan(span, &err)

	return tm.svc.StartTrainingRound(ctx, participantID)
}

func (tm *tracing) EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) (err error) {
	ctx, span := tm.tracer.Start(ctx, "end-training-round", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.String("weights_ref", req.WeightsRef),
		attribute.Int("num_samples", req.NumSamples),
	))
	defer endSpan(span, &err)

	return tm.svc.EndTrainingRound(ctx, participantID, req)
}

func (tm *tracing) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) (err error) {
	ctx, span := tm.tracer.Start(ctx, "upload-weights", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.Int("round", round),
		attribute.Int("size", len(blob)),
	))
	defer endSpan(span, &err)

	return tm.svc.UploadWeights(ctx, participantID, round, blob)
}

func (tm *tracing) GlobalWeights(ctx context.Context, round int) (resp []byte, err error) {
	ctx, span := tm.tracer.Start(ctx, "global-weights", trace.WithAttributes(
		attribute.Int("round", round),
	))
	defer endSpan(span, &err)

	return tm.svc.GlobalWeights(ctx, round)
}

func (tm *tracing) RemoveParticipant(ctx context.Context, participantID string) (err error) {
	ctx, span := tm.tracer.Start(ctx, "remove-participant", trace.WithAttributes(
		attribute.String("participant_id", participantID),
	))
	defer endSpan(span, &err)

	return tm.svc.RemoveParticipant(ctx, participantID)
}

func (tm *tracing) EvictParticipant(ctx context.Context, participantID string) (evicted bool, err error) {
	ctx, span := tm.tracer.Start(ctx, "evict-participant", trace.WithAttributes(
		attribute.String("participant_id", participantID),
	))
	defer endSpan(span, &err)

	return tm.svc.EvictParticipant(ctx, participantID)
}

func (tm *tracing) Status(ctx context.Context) (resp coordinator.Status, err error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer endSpan(span, &err)

	return tm.svc.Status(ctx)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
