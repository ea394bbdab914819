package coordinator

import (
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ParticipantContext is what the coordinator knows about one participant.
type ParticipantContext struct {
	ID                string        `json:"id"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `json:"heartbeat_timeout"`
	Deadline          time.Time     `json:"deadline"`
	JoinedAt          time.Time     `json:"joined_at"`
}

// Registry tracks registered participants and their liveness deadlines.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	clock        clock.Clock
	interval     time.Duration
	timeout      time.Duration
	participants map[string]*ParticipantContext
}

func NewRegistry(clk clock.Clock, interval, timeout time.Duration) *Registry {
	return &Registry{
		clock:        clk,
		interval:     interval,
		timeout:      timeout,
		participants: make(map[string]*ParticipantContext),
	}
}

func (r *Registry) Add(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; ok {
		return ErrAlreadyKnown
	}

	now := r.clock.Now()
	r.participants[id] = &ParticipantContext{
		ID:                id,
		HeartbeatInterval: r.interval,
		HeartbeatTimeout:  r.timeout,
		Deadline:          now.Add(r.timeout),
		JoinedAt:          now,
	}

	return nil
}

// Remove reports whether id was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)

	return true
}

// RemoveExpired removes id only if its deadline has passed, and reports
// whether it did.
func (r *Registry) RemoveExpired(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok || !r.clock.Now().After(p.Deadline) {
		return false
	}
	delete(r.participants, id)

	return true
}

func (r *Registry) Refresh(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	p.Deadline = r.clock.Now().Add(p.HeartbeatTimeout)

	return nil
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.participants)
}

func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.participants[id]

	return ok
}

func (r *Registry) Get(id string) (ParticipantContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ParticipantContext{}, false
	}

	return *p, true
}

// IDs returns the registered participant IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Expired returns copies of every context whose deadline has passed.
func (r *Registry) Expired() []ParticipantContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var expired []ParticipantContext
	for _, p := range r.participants {
		if now.After(p.Deadline) {
			expired = append(expired, *p)
		}
	}

	return expired
}
