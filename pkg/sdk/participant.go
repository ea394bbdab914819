package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/sethvargo/go-retry"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultRetryInterval     = 10 * time.Second
	disconnectTimeout        = 5 * time.Second
)

var errLater = errors.New("coordinator replied LATER")

type ParticipantConfig struct {
	// ID is sent on rendezvous. When empty the coordinator assigns one.
	ID                string
	HeartbeatInterval time.Duration
	// RetryInterval is how long to wait before retrying a LATER rendezvous.
	RetryInterval time.Duration
	// Disconnect tells the coordinator when Run returns.
	Disconnect bool
}

// Participant follows the coordinator's state through heartbeats and
// trains once per round it is selected for.
type Participant struct {
	sdk     SDK
	trainer Trainer
	cfg     ParticipantConfig
	logger  *slog.Logger

	id    string
	state coordinator.State
	round int
}

func NewParticipant(sdk SDK, trainer Trainer, cfg ParticipantConfig, logger *slog.Logger) *Participant {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	return &Participant{
		sdk:     sdk,
		trainer: trainer,
		cfg:     cfg,
		logger:  logger,
		id:      cfg.ID,
	}
}

// ID is the participant's id once rendezvous has succeeded.
func (p *Participant) ID() string {
	return p.id
}

// Run joins the federation and takes part in rounds until the coordinator
// finishes or ctx is cancelled.
func (p *Participant) Run(ctx context.Context) error {
	if err := p.rendezvous(ctx); err != nil {
		return p.exit(ctx, err)
	}

	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		finished, err := p.step(ctx)
		if err != nil {
			return p.exit(ctx, err)
		}
		if finished {
			p.logger.Info("training finished", slog.String("participant_id", p.id), slog.Int("rounds", p.round))

			return p.exit(ctx, nil)
		}

		select {
		case <-ctx.Done():
			return p.exit(ctx, nil)
		case <-ticker.C:
		}
	}
}

func (p *Participant) rendezvous(ctx context.Context) error {
	backoff := retry.NewConstant(p.cfg.RetryInterval)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := p.sdk.Rendezvous(ctx, p.id)
		if err != nil {
			return err
		}
		if res.Reply == coordinator.Later {
			p.logger.Info("coordinator is full, retrying", slog.Duration("retry_interval", p.cfg.RetryInterval))

			return retry.RetryableError(errLater)
		}
		p.id = res.ParticipantID
		p.logger.Info("joined coordinator", slog.String("participant_id", p.id))

		return nil
	})
}

// step sends one heartbeat and acts on the reply.
func (p *Participant) step(ctx context.Context) (bool, error) {
	hb, err := p.sdk.Heartbeat(ctx, p.id, p.state, p.round)
	switch {
	case errors.Is(err, pkgerrors.ErrPermissionDenied):
		p.logger.Warn("coordinator forgot this participant, joining again", slog.String("participant_id", p.id))
		p.state = coordinator.StateStandby

		return false, p.rendezvous(ctx)
	case err != nil:
		if ctx.Err() != nil {
			return false, nil
		}
		p.logger.Warn("heartbeat failed", slog.String("participant_id", p.id), slog.Any("error", err))

		return false, nil
	}

	p.state, p.round = hb.State, hb.Round

	switch hb.State {
	case coordinator.StateFinished:
		return true, nil
	case coordinator.StateRound:
		if !hb.Selected || hb.Submitted {
			return false, nil
		}
		if err := p.train(ctx); err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			p.logger.Warn("training round failed",
				slog.String("participant_id", p.id),
				slog.Int("round", p.round),
				slog.Any("error", err),
			)
		}
	}

	return false, nil
}

// train runs one local round. A round that moved on meanwhile is not an
// error; the next heartbeat shows where the coordinator is.
func (p *Participant) train(ctx context.Context) error {
	params, err := p.sdk.StartTrainingRound(ctx, p.id)
	switch {
	case errors.Is(err, pkgerrors.ErrFailedPrecondition):
		return nil
	case err != nil:
		return err
	}

	global, err := p.sdk.GlobalWeights(ctx, params.Round)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}

	res, err := p.trainer.Train(ctx, global, params)
	if err != nil {
		return fmt.Errorf("local training failed: %w", err)
	}

	if err := p.sdk.UploadWeights(ctx, p.id, params.Round, res.Weights); err != nil {
		return err
	}

	err = p.sdk.EndTrainingRound(ctx, p.id, coordinator.UpdateRequest{
		WeightsRef: storage.LocalWeightsKey(p.id, params.Round),
		NumSamples: res.NumSamples,
		Metrics:    res.Metrics,
	})
	switch {
	case err == nil, errors.Is(err, pkgerrors.ErrAlreadyExists), errors.Is(err, pkgerrors.ErrFailedPrecondition):
		p.logger.Info("submitted update",
			slog.String("participant_id", p.id),
			slog.Int("round", params.Round),
			slog.Int("num_samples", res.NumSamples),
		)

		return nil
	default:
		return err
	}
}

func (p *Participant) exit(ctx context.Context, err error) error {
	if p.cfg.Disconnect && p.id != "" {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()
		if derr := p.sdk.Disconnect(dctx, p.id); derr != nil {
			p.logger.Warn("failed to disconnect", slog.String("participant_id", p.id), slog.Any("error", derr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
