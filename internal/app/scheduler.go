package app

import "time"

// nextFireTime returns the next occurrence of hour:min in loc strictly after
// now. Building the candidate with time.Date keeps the wall-clock time stable
// across DST transitions.
func nextFireTime(now time.Time, hour, min int, loc *time.Location) time.Time {
	now = now.In(loc)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, loc)
	if !candidate.After(now) {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+1, hour, min, 0, 0, loc)
	}
	return candidate
}
