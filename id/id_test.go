package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/tally/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"ResumeID", id.NewResumeID, "res_"},
		{"JobDescriptionID", id.NewJobDescriptionID, "jd_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixSubscription)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixSubscription {
		t.Errorf("expected prefix %q, got %q", id.PrefixSubscription, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SubscriptionID", id.NewSubscriptionID, id.ParseSubscriptionID},
		{"ResumeID", id.NewResumeID, id.ParseResumeID},
		{"JobDescriptionID", id.NewJobDescriptionID, id.ParseJobDescriptionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSubscriptionID rejects res_", id.NewResumeID().String(), id.ParseSubscriptionID},
		{"ParseResumeID rejects jd_", id.NewJobDescriptionID().String(), id.ParseResumeID},
		{"ParseJobDescriptionID rejects sub_", id.NewSubscriptionID().String(), id.ParseJobDescriptionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseAny(t *testing.T) {
	ids := []id.ID{
		id.NewSubscriptionID(),
		id.NewResumeID(),
		id.NewJobDescriptionID(),
	}

	for _, original := range ids {
		parsed, err := id.ParseAny(original.String())
		if err != nil {
			t.Fatalf("ParseAny(%q) failed: %v", original.String(), err)
		}
		if parsed.String() != original.String() {
			t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"no separator", "justastring"},
		{"bad suffix", "sub_!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error parsing %q", tt.input)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := id.NewSubscriptionID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", decoded.String(), original.String())
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID

	if !nilID.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID should stringify to empty, got %q", nilID.String())
	}

	v, err := nilID.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != nil {
		t.Errorf("nil ID should store as NULL, got %v", v)
	}
}
