package timeline

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-03", "2025-03", true},
		{"2025-03-17", "2025-03", true},
		{" 2024-12 ", "2024-12", true},
		{"2025-13", "", false},
		{"March", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		m, err := ParseMonth(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseMonth(%q): unexpected error state %v", tc.in, err)
		}
		if tc.ok && m.String() != tc.want {
			t.Fatalf("ParseMonth(%q) = %s, want %s", tc.in, m, tc.want)
		}
	}
}

func TestMonthArithmetic(t *testing.T) {
	m := NewMonth(2024, time.November)
	if got := m.AddMonths(3).String(); got != "2025-02" {
		t.Fatalf("AddMonths crossed the year wrong: %s", got)
	}
	if got := m.AddMonths(-11).String(); got != "2023-12" {
		t.Fatalf("negative AddMonths: %s", got)
	}
	if m.Year() != 2024 || m.Month() != time.November {
		t.Fatalf("unexpected components %d %v", m.Year(), m.Month())
	}
	first := NewMonth(2025, time.February).FirstDay(time.UTC)
	if !first.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first day %v", first)
	}
	if MonthOf(time.Date(2025, 7, 31, 23, 0, 0, 0, time.UTC)) != NewMonth(2025, time.July) {
		t.Fatalf("MonthOf mismatch")
	}
}

func TestMonthText(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2026-01")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := m.MarshalText()
	if string(b) != "2026-01" {
		t.Fatalf("unexpected text %s", b)
	}
}

func TestMonthRange(t *testing.T) {
	defFrom, defTo := NewMonth(2025, time.January), NewMonth(2025, time.December)

	from, to, err := MonthRange("", "", defFrom, defTo)
	if err != nil || from != defFrom || to != defTo {
		t.Fatalf("defaults not applied: %s %s %v", from, to, err)
	}
	from, to, err = MonthRange("2025-04", "2025-06", defFrom, defTo)
	if err != nil || from.String() != "2025-04" || to.String() != "2025-06" {
		t.Fatalf("explicit bounds: %s %s %v", from, to, err)
	}
	if _, _, err := MonthRange("2025-06", "2025-04", defFrom, defTo); !IsValidationError(err) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
	if _, _, err := MonthRange("nope", "", defFrom, defTo); !IsValidationError(err) {
		t.Fatalf("expected validation error for bad month, got %v", err)
	}
}
