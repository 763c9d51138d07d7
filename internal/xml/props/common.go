// Package props encodes WebDAV, CalDAV and CardDAV properties into
// etree elements for multistatus responses.
package props

import "github.com/beevik/etree"

// Property is implemented by every encodable property (use pointers).
type Property interface {
	Encode() *etree.Element
}

// NamespaceMap holds the namespace declarations added to every
// multistatus root.
var NamespaceMap = map[string]string{
	"d":    "DAV:",
	"cal":  "urn:ietf:params:xml:ns:caldav",
	"card": "urn:ietf:params:xml:ns:carddav",
	"cs":   "http://calendarserver.org/ns/",
	"ical": "http://apple.com/ns/ical/",
}

// PropPrefixMap maps each property and child element to its prefix.
var PropPrefixMap = map[string]string{
	// WebDAV properties (d: prefix)
	"displayname":                "d",
	"resourcetype":               "d",
	"getetag":                    "d",
	"getlastmodified":            "d",
	"getcontenttype":             "d",
	"owner":                      "d",
	"current-user-principal":     "d",
	"principal-url":              "d",
	"supported-report-set":       "d",
	"current-user-privilege-set": "d",
	// Child elements in the DAV namespace
	"collection":       "d",
	"principal":        "d",
	"href":             "d",
	"privilege":        "d",
	"supported-report": "d",
	"report":           "d",
	"read":             "d",
	"write":            "d",
	"propfind":         "d",

	// CalDAV properties (cal: prefix)
	"calendar-description":             "cal",
	"calendar-data":                    "cal",
	"supported-calendar-component-set": "cal",
	"supported-calendar-data":          "cal",
	"max-resource-size":                "cal",
	"calendar-home-set":                "cal",
	"calendar-user-address-set":        "cal",
	"calendar":                         "cal",
	"comp":                             "cal",
	"calendar-query":                   "cal",
	"calendar-multiget":                "cal",

	// CardDAV properties (card: prefix)
	"address-data":            "card",
	"addressbook":             "card",
	"addressbook-home-set":    "card",
	"addressbook-description": "card",
	"supported-address-data":  "card",
	"addressbook-query":       "card",
	"addressbook-multiget":    "card",
	"address-data-type":       "card",

	// Apple CalendarServer extensions
	"getctag":        "cs",
	"calendar-color": "ical",
}

// PropNameToStruct maps parseable property names to fresh structs.
var PropNameToStruct = map[string]Property{
	"displayname":                new(DisplayName),
	"resourcetype":               new(Resourcetype),
	"getetag":                    new(GetEtag),
	"getlastmodified":            new(GetLastModified),
	"getcontenttype":             new(GetContentType),
	"owner":                      new(Owner),
	"current-user-principal":     new(CurrentUserPrincipal),
	"principal-url":              new(PrincipalURL),
	"supported-report-set":       new(SupportedReportSet),
	"current-user-privilege-set": new(CurrentUserPrivilegeSet),

	"calendar-description":             new(CalendarDescription),
	"calendar-data":                    new(CalendarData),
	"supported-calendar-component-set": new(SupportedCalendarComponentSet),
	"supported-calendar-data":          new(SupportedCalendarData),
	"max-resource-size":                new(MaxResourceSize),
	"calendar-home-set":                new(CalendarHomeSet),
	"calendar-user-address-set":        new(CalendarUserAddressSet),

	"address-data":            new(AddressData),
	"addressbook-home-set":    new(AddressbookHomeSet),
	"addressbook-description": new(AddressbookDescription),
	"supported-address-data":  new(SupportedAddressData),

	"getctag":        new(GetCTag),
	"calendar-color": new(CalendarColor),
}

// createElement builds an element with the prefix from PropPrefixMap,
// defaulting to the DAV namespace.
func createElement(name string) *etree.Element {
	prefix, exists := PropPrefixMap[name]
	if !exists {
		prefix = "d"
	}
	elem := etree.NewElement(name)
	elem.Space = prefix
	return elem
}

func createElementWithPrefix(name, prefix string) *etree.Element {
	elem := etree.NewElement(name)
	elem.Space = prefix
	return elem
}
