package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a bar resolution.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval1h, Interval1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval5m }

// NormalizeInterval converts a raw string to a valid interval (or the default).
func NormalizeInterval(s string) Interval {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// Duration is the length of one bar.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval1m:
		return time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// Period is a lookback window such as "2d", "30d", "6mo" or "1y".
type Period string

// Duration parses the period. Supported units: m (minutes), h, d, w, mo, y.
func (p Period) Duration() (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(string(p)))
	if s == "" {
		return 0, fmt.Errorf("empty period")
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("period %q: missing amount", p)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, fmt.Errorf("period %q: %w", p, err)
	}

	day := 24 * time.Hour
	switch s[i:] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * day, nil
	case "w":
		return time.Duration(n) * 7 * day, nil
	case "mo":
		return time.Duration(n) * 30 * day, nil
	case "y":
		return time.Duration(n) * 365 * day, nil
	default:
		return 0, fmt.Errorf("period %q: unknown unit %q", p, s[i:])
	}
}

// Window resolves the period into a [start, end] range ending at now.
func (p Period) Window(now time.Time) (time.Time, time.Time, error) {
	d, err := p.Duration()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return now.Add(-d), now, nil
}
