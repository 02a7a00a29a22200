package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryEventRepo keeps events in process. It backs development servers
// started without DATABASE_URL and the offline CLI.
type memoryEventRepo struct {
	mu     sync.RWMutex
	events map[string]Event
	order  []string
}

// NewMemoryEventRepo returns an in-memory repository seeded with events.
// Seed events keep their ids and are given to owner.
func NewMemoryEventRepo(owner string, seed []Event) EventRepository {
	r := &memoryEventRepo{events: make(map[string]Event)}
	for _, e := range seed {
		e.OwnerID = owner
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		r.put(e)
	}
	return r
}

func (r *memoryEventRepo) put(e Event) {
	if _, ok := r.events[e.ID]; !ok {
		r.order = append(r.order, e.ID)
	}
	r.events[e.ID] = e
}

func (r *memoryEventRepo) Create(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	r.put(*e)
	return nil
}

func (r *memoryEventRepo) GetByID(_ context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.Source = SourceUser
	return &e, nil
}

func (r *memoryEventRepo) Update(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	r.events[e.ID] = *e
	return nil
}

func (r *memoryEventRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryEventRepo) ListByOwner(_ context.Context, ownerID string) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, id := range r.order {
		if e := r.events[id]; e.OwnerID == ownerID {
			e.Source = SourceUser
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEventRepo) ListByOwnerPaged(ctx context.Context, ownerID string, limit, offset int) ([]*Event, int, error) {
	all, _ := r.ListByOwner(ctx, ownerID)
	sort.SliceStable(all, func(i, j int) bool {
		si, _ := all[i].Range()
		sj, _ := all[j].Range()
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return all[i].StartTime < all[j].StartTime
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*Event, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, &all[i])
	}
	return out, total, nil
}
