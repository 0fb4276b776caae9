// Package localstore is the synchronized client cache: a persisted key/value
// mirror of whole collections with per-key change notifications.
//
// Every write replaces the full collection stored under a key. Collection
// serialises its read-modify-write per key within one process; two processes
// (or two tabs) that write without merging still lose one write entirely.
package localstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Well known collection keys.
const (
	KeyPatients  = "medibridge_patients_list"
	KeyReferrals = "medibridge_referrals_list"
	KeyHospitals = "medibridge_hospitals_beds"
	KeyUsers     = "medibridge_users_list"
	KeyActivity  = "medibridge_activity_log"
)

var ErrNotFound = errors.New("localstore: key not found")

type Op string

const (
	OpCreated  Op = "created"
	OpUpdated  Op = "updated"
	OpDeleted  Op = "deleted"
	OpReplaced Op = "replaced"
)

// Change describes one write to a key. ID is empty for whole-collection
// replacements.
type Change struct {
	Key string    `json:"key"`
	Op  Op        `json:"op"`
	ID  string    `json:"id,omitempty"`
	At  time.Time `json:"at"`
}

// Store persists raw collection payloads and notifies subscribers exactly once
// per successful Set.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, change Change) error
	Subscribe(key string, fn func(Change)) (cancel func())
}

// broker fans changes out to per-key subscribers. Callbacks run synchronously
// on the writer's goroutine, after the value is stored.
type broker struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func(Change)
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[int]func(Change))}
}

func (b *broker) subscribe(key string, fn func(Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]func(Change))
	}
	b.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[key], id)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
		})
	}
}

func (b *broker) publish(change Change) {
	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.subs[change.Key]))
	for _, fn := range b.subs[change.Key] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// MemoryStore keeps payloads in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	broker *broker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		broker: newBroker(),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	s.data[key] = stored
	s.mu.Unlock()

	s.broker.publish(normalise(key, change))
	return nil
}

func (s *MemoryStore) Subscribe(key string, fn func(Change)) func() {
	return s.broker.subscribe(key, fn)
}

func normalise(key string, change Change) Change {
	change.Key = key
	if change.Op == "" {
		change.Op = OpReplaced
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	return change
}
