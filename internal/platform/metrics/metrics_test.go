package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.Auth("login", "success")
	c.PatientCreated()
	c.ReferralCreated("urgent")
	c.ReferralTransitioned("accepted")
	c.FacilityFallback()
	c.LocalStoreWrite("k", "created")
	c.EventPublished("kafka", "ok")
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("medibridge_test")
	c.ReferralCreated("critical")
	c.ReferralCreated("critical")
	c.FacilityFallback()

	if got := testutil.ToFloat64(c.ReferralsCreated.WithLabelValues("critical")); got != 2 {
		t.Errorf("expected 2 critical referrals, got %v", got)
	}
	if got := testutil.ToFloat64(c.FacilityFallbacks); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	_ = NewCollector("medibridge_test")
	_ = NewCollector("medibridge_test")
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("medibridge_test")
	c.PatientCreated()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "medibridge_test_clinical_patients_created_total 1") {
		t.Errorf("expected patients counter in exposition, got:\n%s", body)
	}
}
