package props

import (
	"strconv"

	"github.com/beevik/etree"
)

type CalendarDescription struct {
	Value string
}

func (p CalendarDescription) Encode() *etree.Element {
	elem := createElement("calendar-description")
	elem.SetText(p.Value)
	return elem
}

type CalendarData struct {
	// ICal carries the raw serialized VCALENDAR. etree escapes the
	// text on output.
	ICal string
}

func (p CalendarData) Encode() *etree.Element {
	elem := createElement("calendar-data")
	elem.SetText(p.ICal)
	return elem
}

type SupportedCalendarComponentSet struct {
	Components []string
}

func (p SupportedCalendarComponentSet) Encode() *etree.Element {
	elem := createElement("supported-calendar-component-set")

	for _, component := range p.Components {
		compElem := createElement("comp")
		compElem.CreateAttr("name", component)
		elem.AddChild(compElem)
	}

	return elem
}

type SupportedCalendarData struct {
	ContentType string
	Version     string
}

func (p SupportedCalendarData) Encode() *etree.Element {
	elem := createElement("supported-calendar-data")
	elem.SetText(p.ContentType)
	if p.Version != "" {
		elem.CreateAttr("version", p.Version)
	}
	return elem
}

type MaxResourceSize struct {
	Value int64
}

func (p MaxResourceSize) Encode() *etree.Element {
	elem := createElement("max-resource-size")
	elem.SetText(strconv.FormatInt(p.Value, 10))
	return elem
}

type CalendarHomeSet struct {
	Href string
}

func (p CalendarHomeSet) Encode() *etree.Element {
	elem := createElement("calendar-home-set")
	href := createElement("href")
	elem.AddChild(href)
	href.SetText(p.Href)
	return elem
}

type CalendarUserAddressSet struct {
	Addresses []string
}

func (p CalendarUserAddressSet) Encode() *etree.Element {
	elem := createElement("calendar-user-address-set")

	for _, address := range p.Addresses {
		href := createElement("href")
		elem.AddChild(href)
		href.SetText(address)
	}

	return elem
}

// Apple CalendarServer extensions.

type GetCTag struct {
	Value string
}

func (p GetCTag) Encode() *etree.Element {
	elem := createElement("getctag")
	elem.SetText(p.Value)
	return elem
}

type CalendarColor struct {
	Value string
}

func (p CalendarColor) Encode() *etree.Element {
	elem := createElement("calendar-color")
	elem.SetText(p.Value)
	return elem
}
