package referral

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDiagnosed Status = "diagnosed"
	StatusClosed    Status = "closed"
)

// next is the only permitted successor of each status. Closed is terminal.
var next = map[Status]Status{
	StatusPending:   StatusAccepted,
	StatusAccepted:  StatusDiagnosed,
	StatusDiagnosed: StatusClosed,
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusDiagnosed, StatusClosed:
		return st, nil
	}
	return "", apperr.Invalidf("unknown status %q", s)
}

// ValidateTransition allows exactly one step forward along
// pending, accepted, diagnosed, closed.
func ValidateTransition(from, to Status) error {
	if succ, ok := next[from]; ok && succ == to {
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", from, to, apperr.ErrInvalidTransition)
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyRoutine  Urgency = "routine"
)

func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyCritical, UrgencyUrgent, UrgencyRoutine:
		return u, nil
	}
	return "", apperr.Invalidf("urgency must be one of critical, urgent, routine")
}

// Referral hands a patient from a clinic to a destination facility.
// PatientName is copied at creation and survives the patient's deletion.
type Referral struct {
	ID                  uuid.UUID `json:"id"`
	PatientID           uuid.UUID `json:"patientId"`
	PatientName         string    `json:"patientName"`
	OriginClinic        string    `json:"originClinic"`
	DestinationFacility string    `json:"destinationFacility"`
	Department          string    `json:"department"`
	Urgency             Urgency   `json:"urgency"`
	Symptoms            string    `json:"symptoms"`
	Diagnosis           *string   `json:"diagnosis,omitempty"`
	TestsPerformed      *string   `json:"testsPerformed,omitempty"`
	Medications         *string   `json:"medications,omitempty"`
	Status              Status    `json:"status"`
	CreatedBy           uuid.UUID `json:"createdBy"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Details are the clinical findings recorded when a referral is diagnosed.
type Details struct {
	Diagnosis      *string `json:"diagnosis"`
	TestsPerformed *string `json:"testsPerformed"`
	Medications    *string `json:"medications"`
}

func (d Details) apply(r *Referral) {
	if d.Diagnosis != nil {
		r.Diagnosis = d.Diagnosis
	}
	if d.TestsPerformed != nil {
		r.TestsPerformed = d.TestsPerformed
	}
	if d.Medications != nil {
		r.Medications = d.Medications
	}
}

// CreateInput carries the fields a clinic submits for a new referral.
type CreateInput struct {
	PatientID           string  `json:"patientId"`
	OriginClinic        string  `json:"originClinic"`
	DestinationFacility string  `json:"destinationFacility"`
	Department          string  `json:"department"`
	Urgency             string  `json:"urgency"`
	Symptoms            string  `json:"symptoms"`
	Diagnosis           *string `json:"diagnosis"`
	TestsPerformed      *string `json:"testsPerformed"`
	Medications         *string `json:"medications"`
}

// Filter narrows a referral listing. A nil Status lists every status.
type Filter struct {
	Status *Status
}
