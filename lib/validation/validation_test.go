package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name  string
		value any
		fail  bool
	}{
		{"empty string", "", true},
		{"nil", nil, true},
		{"empty slice", []any{}, true},
		{"nil typed slice", []string(nil), true},
		{"empty map", map[string]any{}, true},
		{"zero is present", 0, false},
		{"false is present", false, false},
		{"text", "x", false},
		{"non-empty slice", []any{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Check(map[string]any{"f": tt.value}, Rules{"f": "required"})
			_, failed := errs["f"]
			if failed != tt.fail {
				t.Errorf("required(%#v) failed = %v, want %v", tt.value, failed, tt.fail)
			}
		})
	}
}

func TestMissingFieldIsNil(t *testing.T) {
	errs := Check(map[string]any{}, Rules{"name": "required"})
	if errs["name"] != "The name field is required." {
		t.Errorf("message = %q", errs["name"])
	}
}

func TestMinMaxBoundaries(t *testing.T) {
	tests := []struct {
		rule  string
		value any
		fail  bool
	}{
		{"min:3", "abc", false},
		{"min:3", "ab", true},
		{"max:5", "abcde", false},
		{"max:5", "abcdef", true},
		{"min:3", 1, false}, // non-strings are not length-checked
		{"max:1", []any{1, 2}, false},
		{"min:2", "éé", false}, // characters, not bytes
		{"max:1", "é", false},
		{"min:x", "", false}, // malformed argument is ignored
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			errs := Check(map[string]any{"f": tt.value}, Rules{"f": tt.rule})
			_, failed := errs["f"]
			if failed != tt.fail {
				t.Errorf("%s on %#v failed = %v, want %v", tt.rule, tt.value, failed, tt.fail)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value any
		fail  bool
	}{
		{"ada@example.com", false},
		{"first.last+tag@sub.example.org", false},
		{"not-an-email", true},
		{"missing@tld", true},
		{"@example.com", true},
		{"", false}, // empty is left to required
		{nil, false},
	}

	for _, tt := range tests {
		errs := Check(map[string]any{"email": tt.value}, Rules{"email": "email"})
		_, failed := errs["email"]
		if failed != tt.fail {
			t.Errorf("email(%#v) failed = %v, want %v", tt.value, failed, tt.fail)
		}
	}
}

func TestFirstFailingRuleWins(t *testing.T) {
	errs := Check(map[string]any{"email": ""}, Rules{"email": "required|email|min:3"})
	if !strings.Contains(errs["email"], "required") {
		t.Errorf("message = %q, want the required message", errs["email"])
	}

	errs = Check(map[string]any{"email": "x"}, RuleList{"email": {"required", "email", "min:3"}})
	if !strings.Contains(errs["email"], "valid email") {
		t.Errorf("message = %q, want the email message", errs["email"])
	}
}

func TestRulesWithSpacesAndUnknownNames(t *testing.T) {
	errs := Check(map[string]any{"name": "ab"}, Rules{"name": " required | alpha | min:3 "})
	if !strings.Contains(errs["name"], "at least 3") {
		t.Errorf("message = %q, want the min message", errs["name"])
	}
}

func TestValidateReturnsTypedError(t *testing.T) {
	err := Validate(map[string]any{"email": "nope", "name": "Ada"}, Rules{
		"email": "required|email",
		"name":  "required",
	})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() = %v, want *Error", err)
	}
	if len(verr.Fields) != 1 {
		t.Errorf("Fields = %v, want only email", verr.Fields)
	}
	if verr.Error() != "validation failed: email" {
		t.Errorf("Error() = %q", verr.Error())
	}

	if err := Validate(map[string]any{"email": "a@b.co"}, Rules{"email": "email"}); err != nil {
		t.Errorf("Validate(valid) = %v, want nil", err)
	}
}
