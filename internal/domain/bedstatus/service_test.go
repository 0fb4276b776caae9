package bedstatus

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
)

func intPtr(n int) *int { return &n }

func newTestService() (*Service, *localstore.MemoryStore) {
	store := localstore.NewMemoryStore()
	return NewService(NewLocalRepo(store), zerolog.Nop()), store
}

func TestService_ListSeedsDefaultsOnce(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	var changes []localstore.Change
	store.Subscribe(localstore.KeyHospitals, func(c localstore.Change) { changes = append(changes, c) })

	first, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 || first[0].ID != "h_1" || first[0].TotalBeds != 120 || first[0].AvailableBeds != 12 {
		t.Fatalf("unexpected defaults %+v", first)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(changes) != 1 || changes[0].Op != localstore.OpReplaced {
		t.Errorf("expected one seeding write, got %+v", changes)
	}
}

func TestService_UpdateValidatesAndRefreshesTimestamp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	before, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	got, err := svc.Update(ctx, "h_2", Patch{AvailableBeds: intPtr(5), ExtraNeeds: strPtr("oxygen cylinders")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.AvailableBeds != 5 || got.TotalBeds != 42 || got.ExtraNeeds != "oxygen cylinders" {
		t.Errorf("unexpected hospital %+v", got)
	}
	if got.LastUpdated.Before(before[1].LastUpdated) {
		t.Error("expected lastUpdated to move forward")
	}

	if _, err := svc.Update(ctx, "h_2", Patch{AvailableBeds: intPtr(50)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected available > total to be rejected, got %v", err)
	}
	if _, err := svc.Update(ctx, "h_2", Patch{TotalBeds: intPtr(-1)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected negative total to be rejected, got %v", err)
	}

	list, _ := svc.List(ctx)
	if list[1].AvailableBeds != 5 {
		t.Errorf("rejected updates must not be stored, got %d", list[1].AvailableBeds)
	}

	if _, err := svc.Update(ctx, "h_404", Patch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_AddPrepends(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	h := &Hospital{Name: "Sub-District Hospital - Kheri", TotalBeds: 30, AvailableBeds: 30}
	if err := svc.Add(ctx, h); err != nil {
		t.Fatalf("add: %v", err)
	}
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 4 || list[0].ID != h.ID {
		t.Errorf("expected new hospital first among 4, got %d entries", len(list))
	}

	if err := svc.Add(ctx, &Hospital{Name: "Bad", TotalBeds: 1, AvailableBeds: 2}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := svc.Add(ctx, &Hospital{TotalBeds: 1}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected missing name rejected, got %v", err)
	}
}

func TestService_BedCountsAreBounded(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Add(ctx, &Hospital{Name: "Huge", TotalBeds: MaxBeds * 10}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected oversized total rejected on add, got %v", err)
	}
	if _, err := svc.Update(ctx, "h_1", Patch{TotalBeds: intPtr(MaxBeds + 1)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected oversized total rejected on update, got %v", err)
	}
	if _, err := svc.Update(ctx, "h_1", Patch{TotalBeds: intPtr(MaxBeds)}); err != nil {
		t.Errorf("expected total at the cap to be accepted, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
