// Package recurrence expands repeating calendar components so time-range
// queries match any occurrence, not just the first.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Info carries the recurrence properties of one component.
type Info struct {
	RRULE  string      // without the "RRULE:" prefix
	RDATE  []time.Time // additional recurrence dates
	EXDATE []time.Time // excluded occurrences
}

// Engine answers occurrence queries over RRULE/RDATE/EXDATE data.
type Engine struct {
	cache *cache
}

// NewEngine creates an engine with the default result cache.
func NewEngine() *Engine {
	return &Engine{cache: newCache(defaultCacheConfig)}
}

// HasOccurrenceInRange reports whether the component has at least one
// occurrence overlapping [rangeStart, rangeEnd].
func (e *Engine) HasOccurrenceInRange(masterStart, masterEnd time.Time, info Info, rangeStart, rangeEnd time.Time) (bool, error) {
	if hit, ok := e.cache.get(masterStart, masterEnd, info, rangeStart, rangeEnd); ok {
		return hit, nil
	}
	match, err := e.hasOccurrence(masterStart, masterEnd, info, rangeStart, rangeEnd)
	if err != nil {
		return false, err
	}
	e.cache.put(masterStart, masterEnd, info, rangeStart, rangeEnd, match)
	return match, nil
}

func (e *Engine) hasOccurrence(masterStart, masterEnd time.Time, info Info, rangeStart, rangeEnd time.Time) (bool, error) {
	// The master occurrence counts unless excluded. Overlap means
	// start <= rangeEnd && end >= rangeStart.
	if !masterStart.After(rangeEnd) && !masterEnd.Before(rangeStart) && !excluded(masterStart, info.EXDATE) {
		return true, nil
	}

	if info.RRULE != "" {
		occurrences, err := e.Expand(masterStart, info.RRULE, rangeStart, rangeEnd)
		if err != nil {
			return false, fmt.Errorf("check RRULE occurrences: %w", err)
		}
		for _, occ := range occurrences {
			if !excluded(occ, info.EXDATE) {
				return true, nil
			}
		}
	}

	duration := masterEnd.Sub(masterStart)
	for _, rdate := range info.RDATE {
		rdateEnd := rdate.Add(duration)
		if !rdate.After(rangeEnd) && !rdateEnd.Before(rangeStart) && !excluded(rdate, info.EXDATE) {
			return true, nil
		}
	}
	return false, nil
}

// Expand returns the RRULE occurrences within [rangeStart, rangeEnd].
func (e *Engine) Expand(masterStart time.Time, rruleStr string, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	dtstart := masterStart.UTC().Format("20060102T150405Z")
	set, err := rrule.StrToRRuleSet(fmt.Sprintf("DTSTART:%s\nRRULE:%s", dtstart, rruleStr))
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", rruleStr, err)
	}
	return set.Between(rangeStart, rangeEnd, true), nil
}

// excluded reports whether t is listed in exdates. Date-only EXDATEs
// (midnight UTC) exclude any occurrence on that day.
func excluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}
		if exdate.Hour() == 0 && exdate.Minute() == 0 && exdate.Second() == 0 && exdate.Location() == time.UTC {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if day.Equal(exdate) {
				return true
			}
		}
	}
	return false
}
