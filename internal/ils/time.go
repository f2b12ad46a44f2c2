package ils

import (
	"time"
)

// Timestamp layouts seen across backend method generations. The legacy
// methods emit ISO8601 with a colonless zone offset.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-07",
}

// ParseTime decodes a backend timestamp field.
//
// Returns nil for null, absent, or unparseable values so callers can
// distinguish "unknown" from a real instant.
func ParseTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
