package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExists is returned by InsertUnique when the item clashes with a stored one.
var ErrExists = errors.New("localstore: item exists")

type lockKey struct {
	store Store
	key   string
}

// keyLocks holds one mutex per (store, key), shared by every Collection over
// that key in this process.
var keyLocks sync.Map

func lockFor(store Store, key string) *sync.Mutex {
	mu, _ := keyLocks.LoadOrStore(lockKey{store: store, key: key}, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Collection is a typed view over the JSON array stored under one key.
// Each mutation reads the collection, applies the change, writes the whole
// collection back and emits one Change, holding the key's lock throughout.
// Writers in other processes are not excluded.
type Collection[T any] struct {
	store Store
	key   string
	mu    *sync.Mutex
	id    func(T) string
	seed  func() []T
	limit int
	now   func() time.Time
}

func NewCollection[T any](store Store, key string, id func(T) string) *Collection[T] {
	return &Collection[T]{store: store, key: key, mu: lockFor(store, key), id: id, now: time.Now}
}

// WithSeed returns a copy of the collection that writes seed() the first time
// the key is read while absent or unreadable.
func (c *Collection[T]) WithSeed(seed func() []T) *Collection[T] {
	cp := *c
	cp.seed = seed
	return &cp
}

// WithLimit returns a copy of the collection whose inserts drop the oldest
// items beyond n.
func (c *Collection[T]) WithLimit(n int) *Collection[T] {
	cp := *c
	cp.limit = n
	return &cp
}

// Subscribe registers fn for changes to this collection.
func (c *Collection[T]) Subscribe(fn func(Change)) func() {
	return c.store.Subscribe(c.key, fn)
}

// All returns the stored items. Missing or corrupt payloads read as empty,
// or as the seed when one is configured.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var items []T
	if err == nil {
		if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil && items != nil {
			return items, nil
		}
	}

	if c.seed == nil {
		return []T{}, nil
	}
	items = c.seed()
	if err := c.write(ctx, items, OpReplaced, ""); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns the item with the given id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := c.All(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if c.id(item) == id {
			return item, nil
		}
	}
	return zero, ErrNotFound
}

// Insert prepends item so the newest entry comes first.
func (c *Collection[T]) Insert(ctx context.Context, item T) error {
	return c.InsertUnique(ctx, item, nil)
}

// InsertUnique prepends item unless clash reports a match against a stored
// item, in which case it returns ErrExists. A nil clash never matches.
func (c *Collection[T]) InsertUnique(ctx context.Context, item T, clash func(T) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	if clash != nil {
		for _, existing := range items {
			if clash(existing) {
				return ErrExists
			}
		}
	}
	items = append([]T{item}, items...)
	if c.limit > 0 && len(items) > c.limit {
		items = items[:c.limit]
	}
	return c.write(ctx, items, OpCreated, c.id(item))
}

// Update applies fn to the item with id and stores the result. An error from
// fn aborts the write.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	items, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	for i := range items {
		if c.id(items[i]) != id {
			continue
		}
		if err := fn(&items[i]); err != nil {
			return zero, err
		}
		if err := c.write(ctx, items, OpUpdated, id); err != nil {
			return zero, err
		}
		return items[i], nil
	}
	return zero, ErrNotFound
}

// Delete removes the item with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.DeleteIf(ctx, id, nil)
}

// DeleteIf removes the item with id once check accepts it. An error from
// check aborts the write.
func (c *Collection[T]) DeleteIf(ctx context.Context, id string, check func(T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	found := false
	for _, item := range items {
		if c.id(item) == id {
			if check != nil {
				if err := check(item); err != nil {
					return err
				}
			}
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return ErrNotFound
	}
	return c.write(ctx, kept, OpDeleted, id)
}

// Replace overwrites the whole collection.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, items, OpReplaced, "")
}

func (c *Collection[T]) write(ctx context.Context, items []T, op Op, id string) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	return c.store.Set(ctx, c.key, raw, Change{Key: c.key, Op: op, ID: id, At: c.now().UTC()})
}
