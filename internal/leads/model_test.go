package leads

import (
	"errors"
	"reflect"
	"testing"
)

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name   string
		sub    Submission
		fields []string
	}{
		{name: "valid", sub: Submission{FirstName: "Layla", Phone: "+971501234567", Email: "layla@example.com"}},
		{name: "all missing", sub: Submission{}, fields: []string{"firstName", "phone", "email"}},
		{name: "blank name", sub: Submission{FirstName: "  ", Phone: "+971501234567", Email: "a@b.co"}, fields: []string{"firstName"}},
		{name: "bad email", sub: Submission{FirstName: "L", Phone: "+971501234567", Email: "nope"}, fields: []string{"email"}},
		{name: "leading zero phone", sub: Submission{FirstName: "L", Phone: "0501234567", Email: "a@b.co"}, fields: []string{"phone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatal("expected errors.Is(err, ErrValidation)")
			}
			if !reflect.DeepEqual(verr.Fields, tt.fields) {
				t.Fatalf("fields = %v, want %v", verr.Fields, tt.fields)
			}
		})
	}
}

func TestSubmissionNormalize(t *testing.T) {
	sub := Submission{FirstName: " Layla ", Phone: "+971 50 123 4567", Email: " layla@example.com ", Role: " CEO/Founder "}
	sub.Normalize()
	if sub.FirstName != "Layla" || sub.Phone != "+971501234567" || sub.Email != "layla@example.com" || sub.Role != RoleCEOFounder {
		t.Fatalf("unexpected normalized submission %+v", sub)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (&Submission{FirstName: "Layla", LastName: "Haddad"}).DisplayName(); got != "Layla Haddad" {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := (&Submission{FirstName: "Layla"}).DisplayName(); got != "Layla" {
		t.Fatalf("DisplayName() = %q", got)
	}
}
