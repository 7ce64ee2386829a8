package invoice

import "strings"

// Gateway maximum lengths for free-text fields. The certifying service
// rejects over-long values, so everything is truncated before submission.
const (
	maxLenName        = 60
	maxLenAddress     = 255
	maxLenEmail       = 80
	maxLenPhone       = 20
	maxLenDescription = 120
)

// Fields is the outgoing document payload. Optional values go through Set,
// which drops anything empty after trimming: the gateway validates field
// presence strictly, and an empty string is not the same as an absent field.
type Fields map[string]interface{}

// Set stores a trimmed, length-bounded string value, or nothing at all.
func (f Fields) Set(key, value string, maxLen int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	f[key] = truncate(value, maxLen)
}

// SetInt stores an integer value. Zero is a legal value for codes and
// amounts, so it is always serialized.
func (f Fields) SetInt(key string, value int64) {
	f[key] = value
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
