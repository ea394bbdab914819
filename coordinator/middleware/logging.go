package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedcoord/coordinator"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Rendezvous(ctx context.Context, participantID string) (resp coordinator.RendezvousResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("requested_id", participantID),
				slog.String("id", resp.ParticipantID),
				slog.String("reply", resp.Reply.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Rendezvous failed", args...)

			return
		}
		lm.logger.Info("Rendezvous completed successfully", args...)
	}(time.Now())

	return lm.svc.Rendezvous(ctx, participantID)
}

// Successful heartbeats are logged at debug level.
func (lm *loggingMiddleware) Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (resp coordinator.HeartbeatResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
			slog.String("state", state.String()),
			slog.Int("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Heartbeat failed", args...)

			return
		}
		lm.logger.Debug("Heartbeat completed successfully", args...)
	}(time.Now())

	return lm.svc.Heartbeat(ctx, participantID, state, round)
}

func (lm *loggingMiddleware) StartTrainingRound(ctx context.Context, participantID string) (resp coordinator.TrainingParams, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
			slog.Group("params",
				slog.Int("round", resp.Round),
				slog.Int("epochs", resp.Epochs),
				slog.Int("epoch_base", resp.EpochBase),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start training round failed", args...)

			return
		}
		lm.logger.Info("Start training round completed successfully", args...)
	}(time.Now())

	return lm.svc.StartTrainingRound(ctx, participantID)
}

func (lm *loggingMiddleware) EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("participant_id", participantID),
				slog.String("weights_ref", req.WeightsRef),
				slog.Int("num_samples", req.NumSamples),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("End training round failed", args...)

			return
		}
		lm.logger.Info("End training round completed successfully", args...)
	}(time.Now())

	return lm.svc.EndTrainingRound(ctx, participantID, req)
}

func (lm *loggingMiddleware) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
			slog.Int("round", round),
			slog.Int("size", len(blob)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Upload weights failed", args...)

			return
		}
		lm.logger.Info("Upload weights completed successfully", args...)
	}(time.Now())

	return lm.svc.UploadWeights(ctx, participantID, round, blob)
}

func (lm *loggingMiddleware) GlobalWeights(ctx context.Context, round int) (resp []byte, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", round),
			slog.Int("size", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global weights failed", args...)

			return
		}
		lm.logger.Info("Get global weights completed successfully", args...)
	}(time.Now())

	return lm.svc.GlobalWeights(ctx, round)
}

func (lm *loggingMiddleware) RemoveParticipant(ctx context.Context, participantID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Remove participant failed", args...)

			return
		}
		lm.logger.Info("Remove participant completed successfully", args...)
	}(time.Now())

	return lm.svc.RemoveParticipant(ctx, participantID)
}

func (lm *loggingMiddleware) EvictParticipant(ctx context.Context, participantID string) (evicted bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
			slog.Bool("evicted", evicted),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Evict participant failed", args...)

			return
		}
		lm.logger.Info("Evict participant completed successfully", args...)
	}(time.Now())

	return lm.svc.EvictParticipant(ctx, participantID)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (resp coordinator.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Debug("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}
