package utils

import (
	"encoding/json"
	"testing"
)

func TestParseAmount_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"$ 1,234.50", "1234.5"},
		{"USD -15", "-15"},
		{"  14.99  ", "14.99"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseAmount(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseAmount_RejectsEmpty(t *testing.T) {
	for _, in := range []string{"", "USD", " , "} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var body struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 10.25, "b": "1,000"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.A.String() != "10.25" {
		t.Fatalf("a: expected 10.25, got %s", body.A.String())
	}
	if body.B.String() != "1000" {
		t.Fatalf("b: expected 1000, got %s", body.B.String())
	}
}
