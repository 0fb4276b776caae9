package localstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type hospital struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available int    `json:"availableBeds"`
}

func hospitalID(h hospital) string { return h.ID }

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestCollection_InsertUpdateDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			col := NewCollection(store, KeyHospitals, hospitalID)
			rec := &recorder{}
			defer col.Subscribe(rec.record)()

			if err := col.Insert(ctx, hospital{ID: "h_1", Name: "Rajpur", Available: 12}); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if err := col.Insert(ctx, hospital{ID: "h_2", Name: "Sundarpur", Available: 3}); err != nil {
				t.Fatalf("insert: %v", err)
			}

			items, err := col.All(ctx)
			if err != nil {
				t.Fatalf("all: %v", err)
			}
			if len(items) != 2 || items[0].ID != "h_2" {
				t.Fatalf("expected newest first, got %+v", items)
			}

			updated, err := col.Update(ctx, "h_1", func(h *hospital) error {
				h.Available = 10
				return nil
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Available != 10 {
				t.Errorf("expected 10 available, got %d", updated.Available)
			}

			if err := col.Delete(ctx, "h_2"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := col.Delete(ctx, "h_2"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}

			changes := rec.all()
			wantOps := []Op{OpCreated, OpCreated, OpUpdated, OpDeleted}
			if len(changes) != len(wantOps) {
				t.Fatalf("expected %d changes, got %+v", len(wantOps), changes)
			}
			for i, op := range wantOps {
				if changes[i].Op != op || changes[i].Key != KeyHospitals {
					t.Errorf("change %d: expected %s on %s, got %+v", i, op, KeyHospitals, changes[i])
				}
			}
			if changes[2].ID != "h_1" {
				t.Errorf("expected update change for h_1, got %q", changes[2].ID)
			}
		})
	}
}

func TestCollection_ConcurrentInsertsAllSurvive(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			col := NewCollection(store, KeyHospitals, hospitalID)
			// A second view over the same key shares the lock.
			other := NewCollection(store, KeyHospitals, hospitalID)

			const n = 50
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					target := col
					if i%2 == 1 {
						target = other
					}
					if err := target.Insert(ctx, hospital{ID: fmt.Sprintf("h_%d", i)}); err != nil {
						t.Errorf("insert %d: %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			items, err := col.All(ctx)
			if err != nil {
				t.Fatalf("all: %v", err)
			}
			if len(items) != n {
				t.Errorf("expected %d items, got %d", n, len(items))
			}
		})
	}
}

func TestCollection_InsertUniqueRejectsClash(t *testing.T) {
	ctx := context.Background()
	col := NewCollection(Store(NewMemoryStore()), KeyHospitals, hospitalID)
	sameName := func(h hospital) func(hospital) bool {
		return func(existing hospital) bool { return existing.Name == h.Name }
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := hospital{ID: fmt.Sprintf("h_%d", i), Name: "Rajpur"}
			err := col.InsertUnique(ctx, h, sameName(h))
			switch {
			case err == nil:
				mu.Lock()
				created++
				mu.Unlock()
			case !errors.Is(err, ErrExists):
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly one insert, got %d", created)
	}
	if items, _ := col.All(ctx); len(items) != 1 {
		t.Errorf("expected one stored item, got %d", len(items))
	}
}

func TestCollection_DeleteIfAbortKeepsItem(t *testing.T) {
	ctx := context.Background()
	col := NewCollection(Store(NewMemoryStore()), KeyHospitals, hospitalID)
	_ = col.Insert(ctx, hospital{ID: "h_1"})

	boom := errors.New("not yours")
	if err := col.DeleteIf(ctx, "h_1", func(hospital) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
	if _, err := col.Get(ctx, "h_1"); err != nil {
		t.Errorf("expected item to remain, got %v", err)
	}
}

func TestCollection_LimitDropsOldest(t *testing.T) {
	ctx := context.Background()
	col := NewCollection(Store(NewMemoryStore()), KeyActivity, hospitalID).WithLimit(3)

	for i := 1; i <= 5; i++ {
		if err := col.Insert(ctx, hospital{ID: fmt.Sprintf("h_%d", i)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	items, err := col.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 3 || items[0].ID != "h_5" || items[2].ID != "h_3" {
		t.Errorf("expected the 3 newest, got %+v", items)
	}
}

func TestCollection_UpdateMissing(t *testing.T) {
	col := NewCollection(Store(NewMemoryStore()), KeyHospitals, hospitalID)
	_, err := col.Update(context.Background(), "nope", func(*hospital) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCollection_UpdateAbortDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	col := NewCollection(Store(store), KeyHospitals, hospitalID)
	_ = col.Insert(ctx, hospital{ID: "h_1", Available: 1})

	rec := &recorder{}
	defer col.Subscribe(rec.record)()

	boom := errors.New("rejected")
	if _, err := col.Update(ctx, "h_1", func(*hospital) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("expected no notification for aborted update")
	}
}

// Two views read the same collection, each appends without merging, and the
// second write replaces the first entirely.
func TestCollection_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tabA := NewCollection(Store(store), KeyHospitals, hospitalID)
	tabB := NewCollection(Store(store), KeyHospitals, hospitalID)

	if err := tabA.Replace(ctx, []hospital{{ID: "h_1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := &recorder{}
	defer store.Subscribe(KeyHospitals, rec.record)()

	readA, _ := tabA.All(ctx)
	readB, _ := tabB.All(ctx)

	if err := tabA.Replace(ctx, append(readA, hospital{ID: "from_a"})); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := tabB.Replace(ctx, append(readB, hospital{ID: "from_b"})); err != nil {
		t.Fatalf("write b: %v", err)
	}

	final, err := tabA.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(final) != 2 || final[0].ID != "h_1" || final[1].ID != "from_b" {
		t.Errorf("expected exactly the second writer's collection, got %+v", final)
	}
	if got := len(rec.all()); got != 2 {
		t.Errorf("expected one notification per write (2), got %d", got)
	}
}

func TestCollection_SeedOnFirstRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	calls := 0
	col := NewCollection(Store(store), KeyHospitals, hospitalID).WithSeed(func() []hospital {
		calls++
		return []hospital{{ID: "h_1"}, {ID: "h_2"}}
	})

	first, err := col.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	second, _ := col.All(ctx)

	if len(first) != 2 || len(second) != 2 {
		t.Errorf("expected seeded items, got %+v / %+v", first, second)
	}
	if calls != 1 {
		t.Errorf("expected seed to run once, ran %d times", calls)
	}
}

func TestCollection_CorruptPayloadReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, KeyPatients, []byte("{not json"), Change{})

	items, err := NewCollection(Store(store), KeyPatients, hospitalID).All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty collection, got %+v", items)
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := &recorder{}
	cancel := store.Subscribe(KeyReferrals, rec.record)

	_ = store.Set(ctx, KeyReferrals, []byte("[]"), Change{Op: OpReplaced})
	cancel()
	cancel()
	_ = store.Set(ctx, KeyReferrals, []byte("[]"), Change{Op: OpReplaced})

	if got := len(rec.all()); got != 1 {
		t.Errorf("expected 1 change before cancel, got %d", got)
	}
}

func TestStore_SubscribersAreScopedByKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := &recorder{}
	defer store.Subscribe(KeyPatients, rec.record)()

	_ = store.Set(ctx, KeyReferrals, []byte("[]"), Change{})
	if len(rec.all()) != 0 {
		t.Error("expected no change for another key")
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := NewCollection(Store(first), KeyHospitals, hospitalID).Insert(ctx, hospital{ID: "h_9"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second, _ := NewFileStore(dir)
	items, err := NewCollection(Store(second), KeyHospitals, hospitalID).All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 || items[0].ID != "h_9" {
		t.Errorf("expected persisted item, got %+v", items)
	}
	if _, err := os.Stat(filepath.Join(dir, KeyHospitals+".json")); err != nil {
		t.Errorf("expected payload file: %v", err)
	}
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	if err := store.Set(context.Background(), "../escape", []byte("[]"), Change{}); err == nil {
		t.Error("expected error for key with path separators")
	}
}

func TestFileStore_MissingKey(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	if _, err := store.Get(context.Background(), KeyUsers); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
