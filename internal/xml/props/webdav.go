package props

import (
	"net/http"
	"time"

	"github.com/beevik/etree"
)

type DisplayName struct {
	Value string
}

func (p DisplayName) Encode() *etree.Element {
	elem := createElement("displayname")
	elem.SetText(p.Value)
	return elem
}

// ResourceType selects the children of a <resourcetype> element.
type ResourceType int

const (
	ResourcePrincipal ResourceType = iota
	ResourceHomeSet
	ResourceCalendar
	ResourceAddressbook
	ResourceObject
)

type Resourcetype struct {
	Type ResourceType
}

func (p Resourcetype) Encode() *etree.Element {
	elem := createElement("resourcetype")

	switch p.Type {
	case ResourcePrincipal:
		elem.AddChild(createElement("principal"))

	case ResourceHomeSet:
		elem.AddChild(createElement("collection"))

	case ResourceCalendar:
		elem.AddChild(createElement("collection"))
		elem.AddChild(createElementWithPrefix("calendar", "cal"))

	case ResourceAddressbook:
		elem.AddChild(createElement("collection"))
		elem.AddChild(createElementWithPrefix("addressbook", "card"))

	case ResourceObject:
		// Plain resources have an empty resourcetype.
	}
	return elem
}

type GetEtag struct {
	Value string
}

func (p GetEtag) Encode() *etree.Element {
	elem := createElement("getetag")
	elem.SetText(p.Value)
	return elem
}

type GetLastModified struct {
	Value time.Time
}

func (p GetLastModified) Encode() *etree.Element {
	elem := createElement("getlastmodified")
	// rfc1123-date with the literal GMT zone, e.g.
	// "Wed, 05 Apr 2025 14:30:00 GMT". time.RFC1123 would render the
	// zone as UTC here.
	elem.SetText(p.Value.UTC().Format(http.TimeFormat))
	return elem
}

type GetContentType struct {
	Value string
}

func (p GetContentType) Encode() *etree.Element {
	elem := createElement("getcontenttype")
	elem.SetText(p.Value)
	return elem
}

type Owner struct {
	Value string
}

func (p Owner) Encode() *etree.Element {
	elem := createElement("owner")
	href := createElement("href")
	href.SetText(p.Value)
	elem.AddChild(href)
	return elem
}

type CurrentUserPrincipal struct {
	Value string
}

func (p CurrentUserPrincipal) Encode() *etree.Element {
	elem := createElement("current-user-principal")
	href := createElement("href")
	href.SetText(p.Value)
	elem.AddChild(href)
	return elem
}

type PrincipalURL struct {
	Value string
}

func (p PrincipalURL) Encode() *etree.Element {
	elem := createElement("principal-url")
	href := createElement("href")
	elem.AddChild(href)
	href.SetText(p.Value)
	return elem
}

type ReportType int

const (
	ReportTypeCalendarQuery ReportType = iota
	ReportTypeCalendarMultiget
	ReportTypeAddressbookQuery
	ReportTypeAddressbookMultiget
)

type SupportedReportSet struct {
	Reports []ReportType
}

func (p SupportedReportSet) Encode() *etree.Element {
	elem := createElement("supported-report-set")

	for _, report := range p.Reports {
		supportedReportElem := createElement("supported-report")
		elem.AddChild(supportedReportElem)

		reportElem := createElement("report")
		supportedReportElem.AddChild(reportElem)

		var reportTypeElem *etree.Element
		switch report {
		case ReportTypeCalendarQuery:
			reportTypeElem = createElement("calendar-query")
		case ReportTypeCalendarMultiget:
			reportTypeElem = createElement("calendar-multiget")
		case ReportTypeAddressbookQuery:
			reportTypeElem = createElement("addressbook-query")
		case ReportTypeAddressbookMultiget:
			reportTypeElem = createElement("addressbook-multiget")
		}

		if reportTypeElem != nil {
			reportElem.AddChild(reportTypeElem)
		}
	}

	return elem
}

type CurrentUserPrivilegeSet struct {
	Privileges []string
}

func (p CurrentUserPrivilegeSet) Encode() *etree.Element {
	elem := createElement("current-user-privilege-set")

	for _, privilege := range p.Privileges {
		privElem := createElement("privilege")
		elem.AddChild(privElem)
		privElem.AddChild(createElement(privilege))
	}

	return elem
}
