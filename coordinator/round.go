package coordinator

import (
	"fmt"
	"maps"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
)

// Round collects the updates of one training round. It is not safe for
// concurrent use; the coordinator serializes access.
type Round struct {
	number     int
	generation uint64
	expected   int
	layout     fl.Weights
	selected   map[string]struct{}
	started    map[string]struct{}
	updates    map[string]fl.Update
}

// NewRound starts round number for the selected participants, each of
// which must send one update. generation tells apart rounds that reuse a
// number after an abort.
func NewRound(number int, generation uint64, participants []string) *Round {
	selected := make(map[string]struct{}, len(participants))
	for _, id := range participants {
		selected[id] = struct{}{}
	}

	return &Round{
		number:     number,
		generation: generation,
		expected:   len(selected),
		selected:   selected,
		started:    make(map[string]struct{}),
		updates:    make(map[string]fl.Update),
	}
}

func (r *Round) Number() int {
	return r.number
}

func (r *Round) Generation() uint64 {
	return r.generation
}

func (r *Round) Expected() int {
	return r.expected
}

func (r *Round) Selected(id string) bool {
	_, ok := r.selected[id]

	return ok
}

func (r *Round) SelectedCount() int {
	return len(r.selected)
}

func (r *Round) MarkStarted(id string) {
	r.started[id] = struct{}{}
}

func (r *Round) Started(id string) bool {
	_, ok := r.started[id]

	return ok
}

func (r *Round) HasUpdate(id string) bool {
	_, ok := r.updates[id]

	return ok
}

func (r *Round) Len() int {
	return len(r.updates)
}

// Add records u. A second update from the same participant fails with
// ErrAlreadyExists and leaves the first one in place.
func (r *Round) Add(u fl.Update) error {
	if r.HasUpdate(u.ParticipantID) {
		return pkgerrors.ErrAlreadyExists
	}
	if len(r.updates) >= r.expected {
		panic(fmt.Sprintf("round %d: update from %s beyond expected count %d", r.number, u.ParticipantID, r.expected))
	}
	r.updates[u.ParticipantID] = u

	return nil
}

// Layout is the shape of the first accepted update, or nil before one
// arrives.
func (r *Round) Layout() fl.Weights {
	return r.layout
}

// SetLayout records the layout of an accepted update. Only the first call
// has an effect.
func (r *Round) SetLayout(w fl.Weights) {
	if r.layout == nil {
		r.layout = w.Layout()
	}
}

func (r *Round) Finished() bool {
	return len(r.updates) > 0 && len(r.updates) == r.expected
}

func (r *Round) Updates() map[string]fl.Update {
	return maps.Clone(r.updates)
}

// Resize drops selected participants that are no longer registered and
// have not reported from the expected count. It returns how many selected
// participants are still registered.
func (r *Round) Resize(registered func(id string) bool) int {
	remaining, expected := 0, 0
	for id := range r.selected {
		ok := registered(id)
		if ok {
			remaining++
		}
		if ok || r.HasUpdate(id) {
			expected++
		}
	}
	r.expected = expected

	return remaining
}
