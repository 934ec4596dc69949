package timeline

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month counted from year 0, so ordering and
// arithmetic are plain integer operations. Its text form is "YYYY-MM".
type Month int

func NewMonth(year int, month time.Month) Month {
	return Month(year*12 + int(month) - 1)
}

// MonthOf returns the month t falls in, in t's own location.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth accepts "YYYY-MM" and, for convenience, a full "YYYY-MM-DD" date.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return 0, fmt.Errorf("invalid month %q", s)
		}
		return MonthOf(t), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return MonthOf(t), nil
}

func (m Month) Year() int {
	return int(m) / 12
}

func (m Month) Month() time.Month {
	return time.Month(int(m)%12 + 1)
}

func (m Month) AddMonths(n int) Month {
	return m + Month(n)
}

// FirstDay is midnight on the 1st of the month in loc.
func (m Month) FirstDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, loc)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Month()))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthRange parses optional bounds, defaulting to def{From,To} when blank.
func MonthRange(from, to string, defFrom, defTo Month) (Month, Month, error) {
	start, end := defFrom, defTo
	var err error
	if strings.TrimSpace(from) != "" {
		if start, err = ParseMonth(from); err != nil {
			return 0, 0, &ValidationError{Field: "startMonth", Message: err.Error()}
		}
	}
	if strings.TrimSpace(to) != "" {
		if end, err = ParseMonth(to); err != nil {
			return 0, 0, &ValidationError{Field: "endMonth", Message: err.Error()}
		}
	}
	if end < start {
		return 0, 0, &ValidationError{Field: "endMonth", Message: "endMonth must not be before startMonth"}
	}
	return start, end, nil
}
