package bedstatus

import (
	"strings"
	"time"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

// MaxBeds caps a reported bed count.
const MaxBeds = 100000

// Hospital is the bed availability a hospital reports.
// 0 <= AvailableBeds <= TotalBeds always holds for a stored record.
type Hospital struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TotalBeds     int       `json:"totalBeds"`
	AvailableBeds int       `json:"availableBeds"`
	ExtraNeeds    string    `json:"extraNeeds,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func (h *Hospital) validate() error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return apperr.Invalid("name")
	}
	if h.TotalBeds < 0 || h.AvailableBeds < 0 {
		return apperr.Invalidf("bed counts must not be negative")
	}
	if h.TotalBeds > MaxBeds {
		return apperr.Invalidf("totalBeds (%d) exceeds %d", h.TotalBeds, MaxBeds)
	}
	if h.AvailableBeds > h.TotalBeds {
		return apperr.Invalidf("availableBeds (%d) exceeds totalBeds (%d)", h.AvailableBeds, h.TotalBeds)
	}
	return nil
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name          *string `json:"name"`
	TotalBeds     *int    `json:"totalBeds"`
	AvailableBeds *int    `json:"availableBeds"`
	ExtraNeeds    *string `json:"extraNeeds"`
}

func (p Patch) apply(h *Hospital) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.TotalBeds != nil {
		h.TotalBeds = *p.TotalBeds
	}
	if p.AvailableBeds != nil {
		h.AvailableBeds = *p.AvailableBeds
	}
	if p.ExtraNeeds != nil {
		h.ExtraNeeds = *p.ExtraNeeds
	}
}

// Defaults are written the first time bed status is read.
func Defaults(now time.Time) []Hospital {
	return []Hospital{
		{ID: "h_1", Name: "District Hospital - Rajpur", TotalBeds: 120, AvailableBeds: 12, LastUpdated: now},
		{ID: "h_2", Name: "Community Hospital - Sundarpur", TotalBeds: 42, AvailableBeds: 3, LastUpdated: now},
		{ID: "h_3", Name: "Government Medical Center - Nadi", TotalBeds: 88, AvailableBeds: 28, LastUpdated: now},
	}
}
