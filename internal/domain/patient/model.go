package patient

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of a date of birth.
const DateLayout = "2006-01-02"

// Patient is a person registered by one clinic account. OwnerUserID never
// changes after creation.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth *string   `json:"dob,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FullName is the name snapshot copied onto referrals.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Patch is a partial update. Nil fields are left unchanged; an empty string
// clears an optional field.
type Patch struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DateOfBirth *string `json:"dob"`
	Phone       *string `json:"phone"`
	Notes       *string `json:"notes"`
}

// Apply writes the patch onto p.
func (pt Patch) Apply(p *Patient) {
	if pt.FirstName != nil {
		p.FirstName = *pt.FirstName
	}
	if pt.LastName != nil {
		p.LastName = *pt.LastName
	}
	if pt.DateOfBirth != nil {
		p.DateOfBirth = optional(*pt.DateOfBirth)
	}
	if pt.Phone != nil {
		p.Phone = optional(*pt.Phone)
	}
	if pt.Notes != nil {
		p.Notes = optional(*pt.Notes)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
