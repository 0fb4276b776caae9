//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/domain/patient"
	"github.com/itsaddyon/MediBridge/internal/domain/referral"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

func newReferralServices() (*patient.Service, *referral.Service) {
	refRepo := referral.NewRepo(globalPool)
	patients := patient.NewService(patient.NewRepo(globalPool), refRepo, zerolog.Nop(), nil)
	return patients, referral.NewService(refRepo, patients, nil, zerolog.Nop(), nil)
}

func createTestReferral(t *testing.T, ctx context.Context, svc *referral.Service, owner, patientID uuid.UUID) *referral.Referral {
	t.Helper()
	ref, err := svc.Create(ctx, owner, referral.CreateInput{
		PatientID:           patientID.String(),
		OriginClinic:        "PHC Rampur",
		DestinationFacility: "District Hospital",
		Department:          "Cardiology",
		Urgency:             "urgent",
		Symptoms:            "chest pain",
	})
	if err != nil {
		t.Fatalf("create referral: %v", err)
	}
	return ref
}

func TestReferralLifecycle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	patients, svc := newReferralServices()
	owner := createTestUser(t, ctx, "referrer@clinic.in")
	p := createTestPatient(t, ctx, owner, "Sita", "Devi")

	ref := createTestReferral(t, ctx, svc, owner, p.ID)
	if ref.Status != referral.StatusPending || ref.PatientName != "Sita Devi" {
		t.Fatalf("unexpected referral %+v", ref)
	}

	t.Run("SkipRejected", func(t *testing.T) {
		_, err := svc.Transition(ctx, ref.ID, owner, referral.StatusDiagnosed, referral.Details{})
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("PatientDeleteBlockedWhileOpen", func(t *testing.T) {
		err := patients.Delete(ctx, owner, p.ID)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("FullPath", func(t *testing.T) {
		if _, err := svc.Transition(ctx, ref.ID, owner, referral.StatusAccepted, referral.Details{}); err != nil {
			t.Fatalf("accept: %v", err)
		}
		diag, err := svc.Transition(ctx, ref.ID, owner, referral.StatusDiagnosed, referral.Details{
			Diagnosis:   ptrStr("unstable angina"),
			Medications: ptrStr("aspirin"),
		})
		if err != nil {
			t.Fatalf("diagnose: %v", err)
		}
		if diag.Diagnosis == nil || *diag.Diagnosis != "unstable angina" {
			t.Errorf("diagnosis not stored: %v", diag.Diagnosis)
		}
		closed, err := svc.Transition(ctx, ref.ID, owner, referral.StatusClosed, referral.Details{})
		if err != nil {
			t.Fatalf("close: %v", err)
		}
		if closed.Diagnosis == nil || *closed.Diagnosis != "unstable angina" {
			t.Error("closing dropped the recorded diagnosis")
		}
		if _, err := svc.Transition(ctx, ref.ID, owner, referral.StatusClosed, referral.Details{}); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("expected closed to be terminal, got %v", err)
		}
	})

	t.Run("SnapshotOutlivesPatient", func(t *testing.T) {
		if err := patients.Delete(ctx, owner, p.ID); err != nil {
			t.Fatalf("delete patient: %v", err)
		}
		got, err := svc.Get(ctx, ref.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.PatientName != "Sita Devi" {
			t.Errorf("expected snapshot name, got %q", got.PatientName)
		}
	})
}

func TestReferralConcurrentTransition(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, svc := newReferralServices()
	owner := createTestUser(t, ctx, "race@clinic.in")
	p := createTestPatient(t, ctx, owner, "Ram", "Lal")
	ref := createTestReferral(t, ctx, svc, owner, p.ID)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(ctx, ref.ID, owner, referral.StatusAccepted, referral.Details{})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Errorf("expected exactly one successful transition, got %d", success)
	}
}

func TestReferralListFilterAndPaging(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, svc := newReferralServices()
	owner := createTestUser(t, ctx, "list@clinic.in")
	p := createTestPatient(t, ctx, owner, "Asha", "Kumari")

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, createTestReferral(t, ctx, svc, owner, p.ID).ID)
	}
	if _, err := svc.Transition(ctx, ids[0], owner, referral.StatusAccepted, referral.Details{}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	page, total, err := svc.List(ctx, referral.Filter{}, pagination.Params{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Errorf("expected 2 of 5, got %d of %d", len(page), total)
	}
	if page[0].ID != ids[4] {
		t.Error("expected newest referral first")
	}

	beyond, total, err := svc.List(ctx, referral.Filter{}, pagination.Params{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("list beyond end: %v", err)
	}
	if len(beyond) != 0 || total != 5 {
		t.Errorf("expected empty page with total 5, got %d items, total %d", len(beyond), total)
	}

	accepted := referral.StatusAccepted
	filtered, total, err := svc.List(ctx, referral.Filter{Status: &accepted}, pagination.Params{Limit: 20})
	if err != nil {
		t.Fatalf("list accepted: %v", err)
	}
	if total != 1 || len(filtered) != 1 || filtered[0].ID != ids[0] {
		t.Errorf("expected only the accepted referral, got %d", total)
	}
}
