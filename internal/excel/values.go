package excel

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber reads a numeric cell. A decimal comma and surrounding spaces
// (including non-breaking ones) are accepted.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", ""))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseWeight reads a weight annotation and returns it as a fraction:
// "75%", "75" and "0.75" all yield 0.75.
func ParseWeight(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	v, ok := ParseNumber(strings.TrimSuffix(s, "%"))
	if !ok || v < 0 {
		return 0, false
	}
	if percent || v > 1 {
		v /= 100
	}
	if v > 1 {
		return 0, false
	}
	return v, true
}

var falsyPresence = map[string]struct{}{
	"0": {}, "нет": {}, "н": {}, "no": {}, "false": {}, "-": {}, "—": {},
}

// ParsePresence coerces a presence cell to attendance.
func ParsePresence(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return false
	}
	if v, ok := ParseNumber(s); ok {
		return v != 0
	}
	_, falsy := falsyPresence[s]
	return !falsy
}

// ParseCount reads a statistic counter; anything unreadable counts as zero.
func ParseCount(raw string) int {
	v, ok := ParseNumber(raw)
	if !ok || v < 0 {
		return 0
	}
	return int(v + 0.5)
}
