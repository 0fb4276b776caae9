package activity

import (
	"context"
	"testing"
)

func TestRecord_WithoutTrailIsNoop(t *testing.T) {
	Record(context.Background(), Note{Kind: KindUser, Action: "User Login"})
}

func TestRecord_CollectsAndDrains(t *testing.T) {
	ctx, drain := WithTrail(context.Background())

	Record(ctx, Note{Kind: KindPatient, Action: "Patient Registered", Severity: SeveritySuccess})
	Record(ctx, Note{Kind: KindReferral, Action: "Referral Created"})

	notes := drain()
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[1].Severity != SeverityInfo {
		t.Errorf("expected default severity info, got %q", notes[1].Severity)
	}
	if again := drain(); len(again) != 0 {
		t.Errorf("expected drained trail to be empty, got %d", len(again))
	}
}

func TestValidKind(t *testing.T) {
	for _, k := range []string{"referral", "user", "patient", "diagnosis", "error"} {
		if !ValidKind(k) {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if ValidKind("billing") {
		t.Error("unexpected kind accepted")
	}
}
