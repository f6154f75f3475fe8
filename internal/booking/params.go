package booking

import (
	"fmt"
	"strings"
	"time"
)

// TargetParams identify what to buy. Immutable once a run starts.
type TargetParams struct {
	// ResourceURL is the event's sale page.
	ResourceURL string
	// Date is the performance day; accepted as YYYY-MM-DD, YYYYMMDD
	// or YYYY.MM.DD.
	Date string
	// Time is the performance time; accepted as HH:mm or h:mm PM.
	Time string
	// Grade restricts seat candidates to one seat grade; empty means
	// any.
	Grade string
	// Floor restricts seats to those whose label mentions it; empty
	// means any.
	Floor string
	// ContinuousUntil, when non-zero, keeps the seat stage retrying
	// with a map refresh until the deadline instead of failing on the
	// first exhausted pass.
	ContinuousUntil time.Time
}

var dateLayouts = []string{"2006-01-02", "20060102", "2006.01.02"}

// NormalizeDate canonicalizes a calendar day to YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("booking: unrecognized date %q", raw)
}

var timeLayouts = []string{"15:04", "3:04 PM", "3:04PM", "15시 04분"}

// NormalizeTime canonicalizes a time of day to zero-padded hour and
// minute strings.
func NormalizeTime(raw string) (hh, mm string, err error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15"), t.Format("04"), nil
		}
	}
	return "", "", fmt.Errorf("booking: unrecognized time %q", raw)
}
