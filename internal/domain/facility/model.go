package facility

import (
	"fmt"
	"strings"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

type Type string

const (
	TypeClinic    Type = "clinic"
	TypeDoctor    Type = "doctor"
	TypePharmacy  Type = "pharmacy"
	TypeLab       Type = "lab"
	TypeAmbulance Type = "ambulance"
	TypeHospital  Type = "hospital"
)

// ParseType maps a case-insensitive name onto a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeClinic, TypeDoctor, TypePharmacy, TypeLab, TypeAmbulance, TypeHospital:
		return t, nil
	}
	return "", apperr.Invalidf("unknown facility type %q", s)
}

// Facility is a point of care shown on the map and ranked by proximity.
type Facility struct {
	ID          string  `json:"id"`
	Type        Type    `json:"type"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Region      string  `json:"region,omitempty"`
	Village     string  `json:"village,omitempty"`
	Contact     string  `json:"contact,omitempty"`
	Description string  `json:"description,omitempty"`
	Specialty   string  `json:"specialty,omitempty"`
	LastUpdated string  `json:"lastUpdated,omitempty"`
}

// Ranked is a facility with its distance from the search origin.
type Ranked struct {
	Facility
	DistanceKm float64 `json:"distanceKm"`
}

// record is the on-disk and over-the-wire shape. It also accepts the older
// "state" and "lon" spellings.
type record struct {
	ID          string   `json:"id" yaml:"id"`
	Type        string   `json:"type" yaml:"type"`
	Name        string   `json:"name" yaml:"name"`
	Lat         *float64 `json:"lat" yaml:"lat"`
	Lng         *float64 `json:"lng" yaml:"lng"`
	Lon         *float64 `json:"lon" yaml:"lon"`
	Region      string   `json:"region" yaml:"region"`
	State       string   `json:"state" yaml:"state"`
	Village     string   `json:"village" yaml:"village"`
	Contact     string   `json:"contact" yaml:"contact"`
	Description string   `json:"description" yaml:"description"`
	Specialty   string   `json:"specialty" yaml:"specialty"`
	LastUpdated string   `json:"lastUpdated" yaml:"lastUpdated"`
}

func (r record) facility() (Facility, error) {
	t, err := ParseType(r.Type)
	if err != nil {
		return Facility{}, fmt.Errorf("facility %q: %w", r.ID, err)
	}
	lng := r.Lng
	if lng == nil {
		lng = r.Lon
	}
	if r.ID == "" || r.Name == "" || r.Lat == nil || lng == nil {
		return Facility{}, apperr.Invalidf("facility %q: id, name, lat and lng are required", r.ID)
	}
	if err := ValidateCoordinates(*r.Lat, *lng); err != nil {
		return Facility{}, fmt.Errorf("facility %q: %w", r.ID, err)
	}
	region := r.Region
	if region == "" {
		region = r.State
	}
	return Facility{
		ID:          r.ID,
		Type:        t,
		Name:        r.Name,
		Lat:         *r.Lat,
		Lng:         *lng,
		Region:      region,
		Village:     r.Village,
		Contact:     r.Contact,
		Description: r.Description,
		Specialty:   r.Specialty,
		LastUpdated: r.LastUpdated,
	}, nil
}

// Fallback is served whenever the configured source fails or is empty.
func Fallback() []Facility {
	return []Facility{
		{ID: "c1", Type: TypeClinic, Name: "PHC Rampur", Lat: 26.889, Lng: 80.7831, Region: "Uttar Pradesh", Village: "Rampur", Contact: "+91-98xxxx", Description: "Basic OP, vaccination, referral hub", LastUpdated: "2025-10-01"},
		{ID: "d1", Type: TypeDoctor, Name: "Dr. Meera Sharma (Cardio)", Lat: 19.076, Lng: 72.8777, Region: "Maharashtra", Specialty: "Cardiology", Contact: "+91-99xxxx", Description: "Tele-referral slots Wed/Fri", LastUpdated: "2025-10-10"},
		{ID: "c2", Type: TypeClinic, Name: "Village Health Post Sundarpur", Lat: 23.2599, Lng: 77.4126, Region: "Madhya Pradesh", Village: "Sundarpur", Contact: "+91-97xxxx", Description: "Maternal health focus", LastUpdated: "2025-09-15"},
		{ID: "p1", Type: TypePharmacy, Name: "Sundar Pharmacy", Lat: 22.7, Lng: 75.9, Region: "Madhya Pradesh", Description: "Generic medicines, open late"},
		{ID: "l1", Type: TypeLab, Name: "Rapid Labs", Lat: 23.25, Lng: 77.41, Region: "Madhya Pradesh", Description: "Blood panels and X-ray"},
		{ID: "a1", Type: TypeAmbulance, Name: "Ambulance 144", Lat: 21.1458, Lng: 79.0882, Region: "Maharashtra", Contact: "144"},
	}
}
