package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/entitle/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"UsageEventID", id.NewUsageEventID, "uevt_"},
		{"SignatureID", id.NewSignatureID, "sig_"},
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
		{"UsageEventID", id.NewUsageEventID, id.ParseUsageEventID},
		{"SignatureID", id.NewSignatureID, id.ParseSignatureID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	sub := id.NewSubscriptionID()
	if _, err := id.ParseSignatureID(sub.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "not-a-typeid", "sub_!!!"}
	for _, s := range tests {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero value should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID string should be empty, got %q", i.String())
	}
}

func TestTextMarshaling(t *testing.T) {
	original := id.NewUsageEventID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if decoded.String() != original.String() {
		t.Errorf("text round trip mismatch: %q != %q", decoded, original)
	}
}

func TestSQLValueScan(t *testing.T) {
	original := id.NewSignatureID()

	v, err := original.Value()
	if err != nil {
		t.Fatal(err)
	}

	var decoded id.ID
	if err := decoded.Scan(v); err != nil {
		t.Fatal(err)
	}
	if decoded.String() != original.String() {
		t.Errorf("sql round trip mismatch: %q != %q", decoded, original)
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNil.IsNil() {
		t.Error("scanning nil should produce the Nil ID")
	}
}
