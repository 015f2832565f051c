package routing

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Event{Title: "Leak", Message: "Water detected", Severity: "critical", Audience: []string{"jeremy"}}
	b := Event{Audience: []string{"jeremy"}, Severity: "critical", Message: "Water detected", Title: "Leak"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical field values produced different fingerprints")
	}
}

func TestFingerprintSensitiveToEveryField(t *testing.T) {
	base := Event{Title: "Leak", Message: "Water detected", Severity: "critical", Audience: []string{"jeremy"}}

	variants := map[string]Event{
		"title":    {Title: "Leak!", Message: base.Message, Severity: base.Severity, Audience: base.Audience},
		"message":  {Title: base.Title, Message: "Water rising", Severity: base.Severity, Audience: base.Audience},
		"severity": {Title: base.Title, Message: base.Message, Severity: "warning", Audience: base.Audience},
		"audience": {Title: base.Title, Message: base.Message, Severity: base.Severity, Audience: []string{"sarah"}},
	}

	fp := Fingerprint(base)
	for field, v := range variants {
		if Fingerprint(v) == fp {
			t.Errorf("changing %s did not change the fingerprint", field)
		}
	}
}

func TestFingerprintAudienceOrderMatters(t *testing.T) {
	a := Event{Title: "t", Message: "m", Severity: "info", Audience: []string{"jeremy", "sarah"}}
	b := Event{Title: "t", Message: "m", Severity: "info", Audience: []string{"sarah", "jeremy"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("audience order should affect the fingerprint")
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		missing []string
	}{
		{"all present", Event{Title: "t", Message: "m", Severity: "info", Audience: []string{}}, nil},
		{"no title", Event{Message: "m", Severity: "info", Audience: []string{"p"}}, []string{"title"}},
		{"no audience", Event{Title: "t", Message: "m", Severity: "info"}, []string{"audience"}},
		{"empty event", Event{}, []string{"title", "message", "severity", "audience"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(ve.Missing) != len(tt.missing) {
				t.Fatalf("missing = %v, want %v", ve.Missing, tt.missing)
			}
			for i, f := range tt.missing {
				if ve.Missing[i] != f {
					t.Errorf("missing[%d] = %q, want %q", i, ve.Missing[i], f)
				}
			}
		})
	}
}
