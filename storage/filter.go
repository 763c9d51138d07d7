package storage

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"remdav/internal/recurrence"
)

// TextMatch describes a <text-match> constraint.
type TextMatch struct {
	Collation string // "i;unicode-casemap", "i;octet", ...
	MatchType string // "equals", "contains", "starts-with", "ends-with"
	Negate    bool   // negate-condition="yes"
	Value     string
}

// ParamFilter describes a <param-filter> inside a prop-filter.
type ParamFilter struct {
	Name         string
	IsNotDefined bool
	TextMatch    *TextMatch
}

// PropFilter describes a <prop-filter> inside a comp-filter.
type PropFilter struct {
	Name         string
	IsNotDefined bool
	TextMatch    *TextMatch
	ParamFilters []ParamFilter
}

// TimeRange describes a <time-range> in a comp-filter.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Filter is a comp-filter node of a calendar-query, rooted at the
// component level (VEVENT, VTODO, ...) below the VCALENDAR wrapper.
type Filter struct {
	Component    string // "VEVENT", "VTODO", ...
	IsNotDefined bool
	TimeRange    *TimeRange
	PropFilters  []PropFilter
	Children     []Filter
}

var recurrenceEngine = recurrence.NewEngine()

// Validate reports whether the object matches the filter.
func (f *Filter) Validate(obj *Object) bool {
	var comp *ical.Component
	if obj != nil {
		comp = obj.Event
	}
	return f.validateComponent(comp)
}

func (f *Filter) validateComponent(comp *ical.Component) bool {
	matches := comp != nil && (f.Component == "" || comp.Name == f.Component)
	if f.IsNotDefined {
		return !matches
	}
	if !matches {
		return false
	}

	if f.TimeRange != nil && !f.matchTimeRange(comp) {
		return false
	}

	for _, pf := range f.PropFilters {
		if !pf.validate(comp) {
			return false
		}
	}

	for _, child := range f.Children {
		matched := false
		for _, sub := range comp.Children {
			if child.validateComponent(sub) {
				matched = true
				break
			}
		}
		// is-not-defined on a child filter succeeds exactly when no
		// subcomponent matches its name.
		if child.IsNotDefined {
			matched = true
			for _, sub := range comp.Children {
				if sub.Name == child.Component {
					matched = false
					break
				}
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (f *Filter) matchTimeRange(comp *ical.Component) bool {
	start, end, ok := componentSpan(comp)
	if !ok {
		return false
	}

	rangeStart := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	if f.TimeRange.Start != nil {
		rangeStart = *f.TimeRange.Start
	}
	if f.TimeRange.End != nil {
		rangeEnd = *f.TimeRange.End
	}

	info := recurrenceInfo(comp)
	if info.RRULE == "" && len(info.RDATE) == 0 {
		return !start.After(rangeEnd) && !end.Before(rangeStart)
	}
	match, err := recurrenceEngine.HasOccurrenceInRange(start, end, info, rangeStart, rangeEnd)
	if err != nil {
		// An unparseable RRULE falls back to the master occurrence.
		return !start.After(rangeEnd) && !end.Before(rangeStart)
	}
	return match
}

// componentSpan computes the effective [start, end] of a component.
func componentSpan(comp *ical.Component) (time.Time, time.Time, bool) {
	start, startOK := propTime(comp, ical.PropDateTimeStart)
	switch comp.Name {
	case ical.CompToDo:
		if due, ok := propTime(comp, ical.PropDue); ok {
			if !startOK {
				start = due
			}
			return start, due, true
		}
		if startOK {
			return start, start, true
		}
		return time.Time{}, time.Time{}, false
	default:
		if !startOK {
			return time.Time{}, time.Time{}, false
		}
		if end, ok := propTime(comp, ical.PropDateTimeEnd); ok {
			return start, end, true
		}
		if prop := comp.Props.Get(ical.PropDuration); prop != nil {
			if d, err := prop.Duration(); err == nil {
				return start, start.Add(d), true
			}
		}
		// Per RFC 5545 an event without DTEND/DURATION is instantaneous
		// (all-day DATE values already carry a one-day span via DTEND).
		return start, start, true
	}
}

func propTime(comp *ical.Component, name string) (time.Time, bool) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return time.Time{}, false
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func recurrenceInfo(comp *ical.Component) recurrence.Info {
	info := recurrence.Info{}
	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
		info.RRULE = prop.Value
	}
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		if t, err := prop.DateTime(time.UTC); err == nil {
			info.EXDATE = append(info.EXDATE, t)
		}
	}
	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		if t, err := prop.DateTime(time.UTC); err == nil {
			info.RDATE = append(info.RDATE, t)
		}
	}
	return info
}

func (pf *PropFilter) validate(comp *ical.Component) bool {
	props := comp.Props.Values(pf.Name)
	if pf.IsNotDefined {
		return len(props) == 0
	}
	if len(props) == 0 {
		return false
	}
	for _, prop := range props {
		if pf.matchProp(&prop) {
			return true
		}
	}
	return false
}

func (pf *PropFilter) matchProp(prop *ical.Prop) bool {
	if pf.TextMatch != nil && !pf.TextMatch.Matches(prop.Value) {
		return false
	}
	for _, param := range pf.ParamFilters {
		if !param.validate(prop) {
			return false
		}
	}
	return true
}

func (pa *ParamFilter) validate(prop *ical.Prop) bool {
	value := prop.Params.Get(pa.Name)
	if pa.IsNotDefined {
		return value == ""
	}
	if value == "" {
		return false
	}
	if pa.TextMatch != nil {
		return pa.TextMatch.Matches(value)
	}
	return true
}

// Matches applies the text-match against a value, honoring collation
// and negation.
func (tm *TextMatch) Matches(value string) bool {
	target := tm.Value
	if tm.caseInsensitive() {
		value = strings.ToLower(value)
		target = strings.ToLower(target)
	}

	var matched bool
	switch tm.MatchType {
	case "equals":
		matched = value == target
	case "starts-with":
		matched = strings.HasPrefix(value, target)
	case "ends-with":
		matched = strings.HasSuffix(value, target)
	default: // "contains" is the RFC 4791 default
		matched = strings.Contains(value, target)
	}
	if tm.Negate {
		return !matched
	}
	return matched
}

func (tm *TextMatch) caseInsensitive() bool {
	switch tm.Collation {
	case "i;unicode-casemap", "i;ascii-casemap":
		return true
	default:
		return false
	}
}
