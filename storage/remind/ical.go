package remind

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"remdav/storage"
)

// toEvent converts a parsed REM entry to a VEVENT component. Timed
// events are emitted in UTC; all-day events as DATE values.
func (a *Adapter) toEvent(e entry, uid string) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, uid)
	comp.Props.SetText(ical.PropSummary, e.Summary)
	if e.Location != "" {
		comp.Props.SetText(ical.PropLocation, e.Location)
	}

	if e.HasTime {
		start := e.Date.UTC()
		comp.Props.SetDateTime(ical.PropDateTimeStart, start)
		comp.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(e.Duration))
	} else {
		dtstart := ical.NewProp(ical.PropDateTimeStart)
		dtstart.SetDate(e.Date)
		comp.Props.Set(dtstart)
		dtend := ical.NewProp(ical.PropDateTimeEnd)
		dtend.SetDate(e.Date.AddDate(0, 0, 1))
		comp.Props.Set(dtend)
	}

	if e.Interval > 0 {
		comp.Props.SetText(ical.PropRecurrenceRule, formatRRule(e))
	}

	if e.Advance > 0 {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText("ACTION", "DISPLAY")
		alarm.Props.SetText("TRIGGER", fmt.Sprintf("-P%dD", e.Advance))
		alarm.Props.SetText(ical.PropDescription, e.Summary)
		comp.Children = append(comp.Children, alarm)
	}
	return comp
}

func formatRRule(e entry) string {
	var b strings.Builder
	if e.Interval%7 == 0 {
		fmt.Fprintf(&b, "FREQ=WEEKLY;INTERVAL=%d", e.Interval/7)
	} else {
		fmt.Fprintf(&b, "FREQ=DAILY;INTERVAL=%d", e.Interval)
	}
	if !e.Until.IsZero() {
		if e.HasTime {
			fmt.Fprintf(&b, ";UNTIL=%s", e.Until.UTC().Format("20060102T150405Z"))
		} else {
			fmt.Fprintf(&b, ";UNTIL=%s", e.Until.Format("20060102"))
		}
	}
	return b.String()
}

// fromEvent converts an inbound VEVENT to a REM entry. Events remind
// cannot express come back as ErrUnsupported.
func (a *Adapter) fromEvent(comp *ical.Component) (entry, error) {
	if comp.Name != ical.CompEvent {
		return entry{}, fmt.Errorf("component %s: %w", comp.Name, storage.ErrUnsupported)
	}
	e := entry{Duration: time.Hour}

	summary, err := comp.Props.Text(ical.PropSummary)
	if err != nil || summary == "" {
		return e, fmt.Errorf("event without SUMMARY: %w", storage.ErrInvalidInput)
	}
	e.Summary = sanitizeText(summary)
	if loc, err := comp.Props.Text(ical.PropLocation); err == nil && loc != "" {
		e.Location = sanitizeText(loc)
	}

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return e, fmt.Errorf("event without DTSTART: %w", storage.ErrInvalidInput)
	}
	start, err := dtstart.DateTime(a.tz)
	if err != nil {
		return e, fmt.Errorf("bad DTSTART: %w", storage.ErrInvalidInput)
	}

	valueType := dtstart.ValueType()
	if valueType == ical.ValueDate {
		e.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, a.tz)
	} else {
		e.HasTime = true
		e.Date = start.In(a.tz)
		if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
			if end, err := dtend.DateTime(a.tz); err == nil && end.After(start) {
				e.Duration = end.Sub(start)
			}
		} else if dur := comp.Props.Get(ical.PropDuration); dur != nil {
			if d, err := dur.Duration(); err == nil && d > 0 {
				e.Duration = d
			}
		}
	}

	if rrule := comp.Props.Get(ical.PropRecurrenceRule); rrule != nil {
		if err := applyRRule(&e, rrule.Value, a.tz); err != nil {
			return e, err
		}
	}

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if trigger := child.Props.Get("TRIGGER"); trigger != nil {
			if days, ok := triggerDays(trigger.Value); ok {
				e.Advance = days
			}
		}
	}
	return e, nil
}

// applyRRule maps an RRULE onto remind's *n day repeat. Only daily and
// weekly frequencies have an equivalent REM form.
func applyRRule(e *entry, value string, tz *time.Location) error {
	freq := ""
	interval := 1
	for _, part := range strings.Split(value, ";") {
		k, v, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToUpper(k) {
		case "FREQ":
			freq = strings.ToUpper(v)
		case "INTERVAL":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("bad INTERVAL %q: %w", v, storage.ErrInvalidInput)
			}
			interval = n
		case "UNTIL":
			until, err := parseRRuleUntil(v, tz)
			if err != nil {
				return err
			}
			e.Until = until
		case "COUNT", "BYDAY", "BYMONTH", "BYMONTHDAY":
			return fmt.Errorf("RRULE part %s: %w", k, storage.ErrUnsupported)
		}
	}
	switch freq {
	case "DAILY":
		e.Interval = interval
	case "WEEKLY":
		e.Interval = interval * 7
	default:
		return fmt.Errorf("RRULE FREQ=%s: %w", freq, storage.ErrUnsupported)
	}
	return nil
}

func parseRRuleUntil(v string, tz *time.Location) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.In(tz), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad UNTIL %q: %w", v, storage.ErrInvalidInput)
}

// triggerDays extracts whole days from a negative duration trigger
// like "-P2D" or "-PT48H".
func triggerDays(value string) (int, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if !strings.HasPrefix(v, "-P") {
		return 0, false
	}
	v = strings.TrimPrefix(v, "-P")
	if d, found := strings.CutSuffix(v, "D"); found {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			return n, true
		}
		return 0, false
	}
	if h, found := strings.CutSuffix(strings.TrimPrefix(v, "T"), "H"); found {
		if n, err := strconv.Atoi(h); err == nil && n >= 24 {
			return n / 24, true
		}
	}
	return 0, false
}

// sanitizeText keeps REM lines single-line and free of MSG delimiters.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, `%"`, `"`)
	return strings.TrimSpace(s)
}
