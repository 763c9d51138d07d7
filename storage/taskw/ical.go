package taskw

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"remdav/storage"
)

// statusMap translates Taskwarrior statuses to VTODO STATUS values.
var statusMap = map[string]string{
	"pending":   "NEEDS-ACTION",
	"waiting":   "NEEDS-ACTION",
	"completed": "COMPLETED",
	"deleted":   "CANCELLED",
}

// toTodo converts a task record to a VTODO component.
func toTodo(t task) *ical.Component {
	comp := ical.NewComponent(ical.CompToDo)
	comp.Props.SetText(ical.PropUID, t.UUID())
	comp.Props.SetText(ical.PropSummary, t.Attrs["description"])

	if entry, ok := t.time("entry"); ok {
		comp.Props.SetDateTime(ical.PropDateTimeStamp, entry)
		comp.Props.SetDateTime(ical.PropCreated, entry)
	}
	if modified, ok := t.time("modified"); ok {
		comp.Props.SetDateTime(ical.PropLastModified, modified)
	}
	if due, ok := t.time("due"); ok {
		comp.Props.SetDateTime(ical.PropDue, due)
	}
	if start, ok := t.time("start"); ok {
		comp.Props.SetDateTime(ical.PropDateTimeStart, start)
	}
	if end, ok := t.time("end"); ok {
		comp.Props.SetDateTime(ical.PropCompleted, end)
	}

	if status, ok := statusMap[t.Status()]; ok {
		comp.Props.SetText(ical.PropStatus, status)
	}
	if prio := t.Attrs["priority"]; prio != "" {
		comp.Props.SetText(ical.PropPriority, priorityToIcal(prio))
	}
	if tags := t.Attrs["tags"]; tags != "" {
		comp.Props.SetText(ical.PropCategories, strings.ReplaceAll(tags, " ", ","))
	}
	for _, text := range t.annotations() {
		p := ical.NewProp(ical.PropComment)
		p.SetText(text)
		comp.Props.Add(p)
	}
	return comp
}

// fromTodo converts an inbound VTODO to a task record.
func fromTodo(comp *ical.Component, project string) (task, error) {
	if comp.Name != ical.CompToDo {
		return task{}, fmt.Errorf("component %s: %w", comp.Name, storage.ErrUnsupported)
	}
	t := task{Attrs: map[string]string{}}

	summary, err := comp.Props.Text(ical.PropSummary)
	if err != nil || summary == "" {
		return t, fmt.Errorf("todo without SUMMARY: %w", storage.ErrInvalidInput)
	}
	t.Attrs["description"] = summary

	id := ""
	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		id = prop.Value
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	t.Attrs["uuid"] = id

	if project != "" {
		t.Attrs["project"] = project
	}

	t.Attrs["status"] = "pending"
	if prop := comp.Props.Get(ical.PropStatus); prop != nil {
		switch strings.ToUpper(prop.Value) {
		case "COMPLETED":
			t.Attrs["status"] = "completed"
		case "CANCELLED":
			t.Attrs["status"] = "deleted"
		}
	}

	now := time.Now().UTC()
	entry := now
	if prop := comp.Props.Get(ical.PropCreated); prop != nil {
		if ts, err := prop.DateTime(time.UTC); err == nil {
			entry = ts
		}
	} else if prop := comp.Props.Get(ical.PropDateTimeStamp); prop != nil {
		if ts, err := prop.DateTime(time.UTC); err == nil {
			entry = ts
		}
	}
	t.setTime("entry", entry)
	t.setTime("modified", now)

	if prop := comp.Props.Get(ical.PropDue); prop != nil {
		if ts, err := prop.DateTime(time.UTC); err == nil {
			t.setTime("due", ts)
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if ts, err := prop.DateTime(time.UTC); err == nil {
			t.setTime("start", ts)
		}
	}
	if prop := comp.Props.Get(ical.PropCompleted); prop != nil {
		if ts, err := prop.DateTime(time.UTC); err == nil {
			t.setTime("end", ts)
		}
	} else if t.Attrs["status"] == "completed" {
		t.setTime("end", now)
	}

	if prop := comp.Props.Get(ical.PropPriority); prop != nil {
		if p := priorityFromIcal(prop.Value); p != "" {
			t.Attrs["priority"] = p
		}
	}
	if prop := comp.Props.Get(ical.PropCategories); prop != nil && prop.Value != "" {
		t.Attrs["tags"] = prop.Value
	}
	for i, prop := range comp.Props.Values(ical.PropComment) {
		ts := now.Add(time.Duration(i) * time.Second)
		t.Attrs[fmt.Sprintf("annotation_%d", ts.Unix())] = prop.Value
	}
	return t, nil
}

func priorityToIcal(prio string) string {
	switch strings.ToUpper(prio) {
	case "H":
		return "1"
	case "M":
		return "5"
	case "L":
		return "9"
	default:
		return "5"
	}
}

func priorityFromIcal(value string) string {
	switch value {
	case "", "0":
		return ""
	case "1", "2", "3", "4":
		return "H"
	case "5":
		return "M"
	default:
		return "L"
	}
}
