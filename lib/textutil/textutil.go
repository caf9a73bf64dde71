package textutil

import (
	"strings"
	"time"
)

// DefaultDateLayout matches the long-form dates author pages print,
// e.g. "August 28, 1954".
const DefaultDateLayout = "January 2, 2006"

// ISODateLayout is the normalized output form.
const ISODateLayout = "2006-01-02"

// ParseDate normalizes a date string to ISO YYYY-MM-DD. an empty layout
// selects DefaultDateLayout. returns ok=false on any mismatch, parse
// failures are expected and not worth logging.
func ParseDate(raw string, layout string) (iso string, ok bool) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	parsed, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return parsed.Format(ISODateLayout), true
}
