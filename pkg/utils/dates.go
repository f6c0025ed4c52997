package utils

import (
	"strings"
	"time"
)

var turkishMonths = strings.NewReplacer(
	"ocak", "January", "şubat", "February", "mart", "March", "nisan", "April",
	"mayıs", "May", "haziran", "June", "temmuz", "July", "ağustos", "August",
	"eylül", "September", "ekim", "October", "kasım", "November", "aralık", "December",
)

var dateLayouts = []string{
	"2 January 2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses free-form comment dates such as "12 Ocak 2024", "12 January 2024",
// "12.01.2024" or "2024-01-12". The second result is false when no layout matched.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	candidates := []string{s}
	if translated := turkishMonths.Replace(strings.ToLower(s)); translated != strings.ToLower(s) {
		candidates = append(candidates, translated)
	}
	for _, c := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, c, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// WithinWindow reports whether the date string parses to a time at or after now-window.
// Unparseable dates are never within the window.
func WithinWindow(date string, now time.Time, window time.Duration) bool {
	t, ok := ParseDate(date, now.Location())
	if !ok {
		return false
	}
	return !t.Before(now.Add(-window))
}
