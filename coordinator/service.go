package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/google/uuid"
)

var _ Service = (*service)(nil)

type service struct {
	// mu guards every field below it and every registry mutation.
	mu            sync.Mutex
	cfg           Config
	registry      *Registry
	state         State
	round         int
	epochBase     int
	generation    uint64
	current       *Round
	globalWeights []byte
	initial       []byte
	// layout is the shape of the global model once one is known.
	layout fl.Weights

	aggregator fl.Aggregator
	weights    storage.WeightStorage
	notifier   Notifier
	logger     *slog.Logger
}

// globalUpdate is a freshly aggregated model waiting to be persisted once
// the lock is released.
type globalUpdate struct {
	round   int
	weights []byte
}

// NewService returns the coordinator. initialWeights may be nil when
// there is no starting model.
func NewService(cfg Config, registry *Registry, aggregator fl.Aggregator, weights storage.WeightStorage, notifier Notifier, initialWeights []byte, logger *slog.Logger) Service {
	var layout fl.Weights
	if initialWeights != nil {
		if w, err := fl.DecodeUpdate(initialWeights); err == nil {
			layout = w.Layout()
		}
	}

	return &service{
		layout:        layout,
		cfg:           cfg,
		registry:      registry,
		state:         StateStandby,
		epochBase:     cfg.EpochBase,
		globalWeights: initialWeights,
		initial:       initialWeights,
		aggregator:    aggregator,
		weights:       weights,
		notifier:      notifier,
		logger:        logger,
	}
}

func (svc *service) Rendezvous(ctx context.Context, participantID string) (RendezvousResult, error) {
	if participantID == "" {
		participantID = uuid.NewString()
	}

	svc.mu.Lock()
	reply, events := svc.rendezvous(participantID)
	svc.mu.Unlock()

	svc.publish(ctx, events)

	return RendezvousResult{Reply: reply, ParticipantID: participantID}, nil
}

func (svc *service) rendezvous(id string) (Reply, []Transition) {
	if svc.registry.Contains(id) {
		_ = svc.registry.Refresh(id)

		return Accept, nil
	}

	if svc.registry.Count() >= svc.cfg.Capacity() {
		return Later, nil
	}

	if err := svc.registry.Add(id); err != nil {
		return Accept, nil
	}
	svc.logger.Info("participant joined",
		slog.String("participant_id", id),
		slog.Int("participants", svc.registry.Count()),
	)

	if svc.state == StateStandby && svc.registry.Count() >= svc.cfg.MinConnected() {
		return Accept, []Transition{svc.startRound()}
	}

	return Accept, nil
}

func (svc *service) Heartbeat(_ context.Context, participantID string, state State, round int) (HeartbeatResult, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.registry.Refresh(participantID); err != nil {
		return HeartbeatResult{}, fmt.Errorf("%w: %s", pkgerrors.ErrPermissionDenied, participantID)
	}

	if state != svc.state || round != svc.round {
		svc.logger.Debug("participant is behind the coordinator",
			slog.String("participant_id", participantID),
			slog.String("reported_state", state.String()),
			slog.Int("reported_round", round),
		)
	}

	res := HeartbeatResult{State: svc.state, Round: svc.round}
	if svc.state == StateRound {
		res.Selected = svc.current.Selected(participantID)
		res.Submitted = svc.current.HasUpdate(participantID)
	}

	return res, nil
}

func (svc *service) StartTrainingRound(_ context.Context, participantID string) (TrainingParams, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.checkSelected(participantID); err != nil {
		return TrainingParams{}, err
	}
	svc.current.MarkStarted(participantID)

	return TrainingParams{
		Epochs:    svc.cfg.Epochs,
		EpochBase: svc.epochBase,
		Round:     svc.round,
	}, nil
}

func (svc *service) EndTrainingRound(ctx context.Context, participantID string, req UpdateRequest) error {
	if req.NumSamples < 0 {
		return fmt.Errorf("%w: negative sample count", pkgerrors.ErrMalformedEntity)
	}

	svc.mu.Lock()
	round, generation, err := svc.checkUpdate(participantID)
	svc.mu.Unlock()
	if err != nil {
		return err
	}

	key := storage.LocalWeightsKey(participantID, round)
	if err := checkWeightsRef(req.WeightsRef, key, participantID, round); err != nil {
		return err
	}

	blob, err := svc.weights.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrStorage, err)
	}
	weights, err := fl.DecodeUpdate(blob)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrMalformedEntity, err)
	}

	svc.mu.Lock()
	if _, _, err := svc.checkUpdate(participantID); err != nil {
		svc.mu.Unlock()

		return err
	}
	if svc.current.Generation() != generation {
		svc.mu.Unlock()

		return fmt.Errorf("%w: round %d restarted while weights were being read", pkgerrors.ErrFailedPrecondition, round)
	}
	if err := svc.checkLayout(weights); err != nil {
		svc.mu.Unlock()

		return err
	}
	if !svc.current.Started(participantID) {
		svc.logger.Warn("update from participant that never started the round", slog.String("participant_id", participantID))
	}
	if err := svc.current.Add(fl.Update{
		ParticipantID: participantID,
		Round:         round,
		Weights:       blob,
		NumSamples:    req.NumSamples,
		Metrics:       req.Metrics,
	}); err != nil {
		svc.mu.Unlock()

		return err
	}
	svc.current.SetLayout(weights)

	var (
		global *globalUpdate
		events []Transition
	)
	if svc.current.Finished() {
		global, events, err = svc.completeRound()
	}
	svc.mu.Unlock()

	svc.publish(ctx, events)
	if err != nil {
		return err
	}

	return svc.persist(ctx, global)
}

func (svc *service) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty weights", pkgerrors.ErrMalformedEntity)
	}
	weights, err := fl.DecodeUpdate(blob)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrMalformedEntity, err)
	}

	svc.mu.Lock()
	known := svc.registry.Contains(participantID)
	current := svc.round
	layoutErr := svc.checkLayout(weights)
	svc.mu.Unlock()

	if !known {
		return fmt.Errorf("%w: %s", pkgerrors.ErrPermissionDenied, participantID)
	}
	if round != current {
		return fmt.Errorf("%w: weights are accepted for round %d only", pkgerrors.ErrFailedPrecondition, current)
	}
	if layoutErr != nil {
		return layoutErr
	}

	if err := svc.weights.Write(ctx, storage.LocalWeightsKey(participantID, round), blob); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrStorage, err)
	}

	return nil
}

func (svc *service) GlobalWeights(ctx context.Context, round int) ([]byte, error) {
	svc.mu.Lock()
	if round < 0 {
		round = svc.round
	}
	var blob []byte
	switch {
	case round == svc.round && svc.globalWeights != nil:
		blob = append(blob, svc.globalWeights...)
	case round == 0 && svc.initial != nil:
		blob = append(blob, svc.initial...)
	}
	svc.mu.Unlock()
	if blob != nil {
		return blob, nil
	}

	blob, err := svc.weights.Read(ctx, storage.GlobalWeightsKey(round))
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return nil, fmt.Errorf("%w: no global weights for round %d", pkgerrors.ErrNotFound, round)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrStorage, err)
	}

	return blob, nil
}

func (svc *service) RemoveParticipant(ctx context.Context, participantID string) error {
	_, err := svc.remove(ctx, participantID, svc.registry.Remove)

	return err
}

func (svc *service) EvictParticipant(ctx context.Context, participantID string) (bool, error) {
	return svc.remove(ctx, participantID, svc.registry.RemoveExpired)
}

// remove takes participantID out of the registry with removeFn, under the
// same lock that heartbeats refresh deadlines with, and repairs the round.
func (svc *service) remove(ctx context.Context, participantID string, removeFn func(id string) bool) (bool, error) {
	svc.mu.Lock()
	if !removeFn(participantID) {
		svc.mu.Unlock()

		return false, nil
	}
	svc.logger.Info("participant left",
		slog.String("participant_id", participantID),
		slog.Int("participants", svc.registry.Count()),
	)
	global, events, err := svc.afterRemoval(participantID)
	svc.mu.Unlock()

	svc.publish(ctx, events)
	if err != nil {
		return true, err
	}

	return true, svc.persist(ctx, global)
}

func (svc *service) Status(_ context.Context) (Status, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := Status{
		State:        svc.state,
		Round:        svc.round,
		TotalRounds:  svc.cfg.TotalRounds,
		EpochBase:    svc.epochBase,
		Participants: svc.registry.Count(),
	}
	if svc.current != nil {
		st.Selected = svc.current.SelectedCount()
		st.Updates = svc.current.Len()
		st.Expected = svc.current.Expected()
	}

	return st, nil
}

// checkSelected must be called with mu held.
func (svc *service) checkSelected(id string) error {
	if !svc.registry.Contains(id) {
		return fmt.Errorf("%w: %s", pkgerrors.ErrPermissionDenied, id)
	}
	if svc.state != StateRound {
		return fmt.Errorf("%w: coordinator is %s", pkgerrors.ErrFailedPrecondition, svc.state)
	}
	if !svc.current.Selected(id) {
		return fmt.Errorf("%w: participant %s is not selected for round %d", pkgerrors.ErrFailedPrecondition, id, svc.round)
	}

	return nil
}

// checkUpdate must be called with mu held.
func (svc *service) checkUpdate(id string) (int, uint64, error) {
	if err := svc.checkSelected(id); err != nil {
		return 0, 0, err
	}
	if svc.current.HasUpdate(id) {
		return 0, 0, fmt.Errorf("%w: participant %s, round %d", pkgerrors.ErrAlreadyExists, id, svc.round)
	}

	return svc.round, svc.current.Generation(), nil
}

// checkLayout rejects weights whose shape differs from the global model,
// or from the round's first update while no global model exists. It must
// be called with mu held.
func (svc *service) checkLayout(w fl.Weights) error {
	layout := svc.layout
	if layout == nil && svc.current != nil {
		layout = svc.current.Layout()
	}
	if layout != nil && !fl.SameLayout(layout, w) {
		return fmt.Errorf("%w: %w", pkgerrors.ErrMalformedEntity, fl.ErrShapeMismatch)
	}

	return nil
}

// checkWeightsRef accepts an empty ref or the key of the current round.
// A key of another round is stale rather than malformed.
func checkWeightsRef(ref, key, participantID string, round int) error {
	if ref == "" || ref == key {
		return nil
	}
	if id, refRound, ok := storage.ParseLocalWeightsKey(ref); ok && id == participantID {
		return fmt.Errorf("%w: weights_ref is for round %d, coordinator is in round %d", pkgerrors.ErrFailedPrecondition, refRound, round)
	}

	return fmt.Errorf("%w: weights_ref must be %q", pkgerrors.ErrMalformedEntity, key)
}

// selectParticipants picks ExpectedCount of the registered participants at
// random. It must be called with mu held.
func (svc *service) selectParticipants() []string {
	ids := svc.registry.IDs()
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	selected := ids[:ExpectedCount(len(ids), svc.cfg.Fraction)]
	slices.Sort(selected)

	return selected
}

// startRound must be called with mu held.
func (svc *service) startRound() Transition {
	svc.generation++
	svc.current = NewRound(svc.round, svc.generation, svc.selectParticipants())
	svc.state = StateRound
	svc.logger.Info("round started",
		slog.Int("round", svc.round),
		slog.Int("selected", svc.current.SelectedCount()),
		slog.Int("expected", svc.current.Expected()),
	)

	return svc.transition()
}

// abortRound drops the current round and its updates. A fresh round with
// the same number starts right away if enough participants remain.
// It must be called with mu held.
func (svc *service) abortRound(reason string) Transition {
	svc.logger.Warn("round aborted",
		slog.Int("round", svc.round),
		slog.Int("updates_discarded", svc.current.Len()),
		slog.String("reason", reason),
	)
	svc.current = nil
	if svc.registry.Count() >= svc.cfg.MinConnected() {
		return svc.startRound()
	}
	svc.state = StateStandby

	return svc.transition()
}

// afterRemoval keeps the current round consistent with the registry.
// It must be called with mu held.
func (svc *service) afterRemoval(id string) (*globalUpdate, []Transition, error) {
	if svc.state != StateRound {
		return nil, nil, nil
	}

	if svc.registry.Count() < svc.cfg.MinConnected() {
		return nil, []Transition{svc.abortRound("not enough participants")}, nil
	}
	if !svc.current.Selected(id) {
		return nil, nil, nil
	}

	remaining := svc.current.Resize(svc.registry.Contains)
	switch {
	case svc.current.Finished():
		return svc.completeRound()
	case remaining == 0:
		return nil, []Transition{svc.abortRound("every selected participant left")}, nil
	default:
		return nil, nil, nil
	}
}

// completeRound aggregates the finished round and moves to the next one.
// It must be called with mu held.
func (svc *service) completeRound() (*globalUpdate, []Transition, error) {
	updates := svc.current.Updates()
	weights, err := svc.aggregator.Aggregate(updates)
	if err != nil {
		svc.logger.Error("aggregation failed", slog.Int("round", svc.round), slog.Any("error", err))
		t := svc.abortRound("aggregation failed")

		return nil, []Transition{t}, fmt.Errorf("aggregation of round %d failed: %w", svc.round, err)
	}

	svc.globalWeights = weights
	if svc.layout == nil {
		svc.layout = svc.current.Layout()
	}
	svc.epochBase += svc.cfg.Epochs
	svc.round++
	svc.current = nil
	svc.logger.Info("round completed",
		slog.Int("round", svc.round-1),
		slog.Int("updates", len(updates)),
		slog.Int("epoch_base", svc.epochBase),
	)

	global := &globalUpdate{round: svc.round, weights: weights}
	switch {
	case svc.round >= svc.cfg.TotalRounds:
		svc.state = StateFinished
		svc.logger.Info("training finished", slog.Int("rounds", svc.round))
	case svc.registry.Count() >= svc.cfg.MinConnected():
		return global, []Transition{svc.startRound()}, nil
	default:
		svc.state = StateStandby
	}

	return global, []Transition{svc.transition()}, nil
}

func (svc *service) transition() Transition {
	return Transition{State: svc.state, Round: svc.round, EpochBase: svc.epochBase}
}

func (svc *service) persist(ctx context.Context, global *globalUpdate) error {
	if global == nil {
		return nil
	}
	if err := svc.weights.Write(ctx, storage.GlobalWeightsKey(global.round), global.weights); err != nil {
		svc.logger.Error("failed to persist global weights", slog.Int("round", global.round), slog.Any("error", err))

		return fmt.Errorf("%w: %w", pkgerrors.ErrStorage, err)
	}

	return nil
}

func (svc *service) publish(ctx context.Context, events []Transition) {
	if svc.notifier == nil {
		return
	}
	for _, t := range events {
		if err := svc.notifier.Notify(ctx, t); err != nil {
			svc.logger.Warn("failed to publish transition",
				slog.String("state", t.State.String()),
				slog.Int("round", t.Round),
				slog.Any("error", err),
			)
		}
	}
}
