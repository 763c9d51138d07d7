package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
)

const productID = "-//remdav//Go DAV Server//EN"

// EventToICS wraps a single component into a VCALENDAR and serializes
// it. DTSTAMP is filled in when the backing format has none.
func EventToICS(comp *ical.Component) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	if comp.Props.Get(ical.PropDateTimeStamp) == nil {
		comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	}

	cal.Children = append(cal.Children, comp)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// EventsToICS serializes several components into one VCALENDAR, used
// for whole-collection exports.
func EventsToICS(comps []*ical.Component) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, comp := range comps {
		if comp.Props.Get(ical.PropDateTimeStamp) == nil {
			comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		}
		cal.Children = append(cal.Children, comp)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// ICSToEvent extracts the single VEVENT or VTODO from an iCalendar
// document.
func ICSToEvent(ics string) (*ical.Component, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	var found *ical.Component
	for _, child := range cal.Children {
		switch child.Name {
		case ical.CompEvent, ical.CompToDo:
			if found != nil {
				return nil, fmt.Errorf("multiple components in calendar: %w", ErrInvalidInput)
			}
			found = child
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no event or todo in calendar: %w", ErrInvalidInput)
	}
	return found, nil
}

// CardToVCF serializes a contact as vCard 4.0.
func CardToVCF(card vcard.Card) (string, error) {
	vcard.ToV4(card)
	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", fmt.Errorf("failed to encode vcard: %w", err)
	}
	return buf.String(), nil
}

// VCFToCard parses a single vCard.
func VCFToCard(vcf string) (vcard.Card, error) {
	card, err := vcard.NewDecoder(strings.NewReader(vcf)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode vcard: %w", err)
	}
	return card, nil
}
