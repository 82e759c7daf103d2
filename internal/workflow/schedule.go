package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// nextDaily returns the first instant strictly after now whose wall clock in
// loc reads at ("HH:MM"). Days where that time does not exist resolve the
// way time.Date normalizes them.
func nextDaily(now time.Time, at string, loc *time.Location) (time.Time, error) {
	hour, minute, err := parseClock(at)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, mo, d := local.Date()
	candidate := time.Date(y, mo, d, hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = time.Date(y, mo, d+1, hour, minute, 0, 0, loc)
	}
	return candidate, nil
}

func parseClock(value string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", value)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}
