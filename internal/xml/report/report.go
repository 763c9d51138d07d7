// Package report parses REPORT request bodies: calendar-query,
// calendar-multiget, addressbook-query and addressbook-multiget.
package report

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"remdav/internal/xml/propfind"
	"remdav/internal/xml/props"
)

// Type identifies the report named by the request root element.
type Type int

const (
	TypeUnknown Type = iota
	TypeCalendarQuery
	TypeCalendarMultiget
	TypeAddressbookQuery
	TypeAddressbookMultiget
)

// RootType inspects the root element of a REPORT body.
func RootType(doc *etree.Document) Type {
	root := doc.Root()
	if root == nil {
		return TypeUnknown
	}
	switch localName(root.Tag) {
	case "calendar-query":
		return TypeCalendarQuery
	case "calendar-multiget":
		return TypeCalendarMultiget
	case "addressbook-query":
		return TypeAddressbookQuery
	case "addressbook-multiget":
		return TypeAddressbookMultiget
	default:
		return TypeUnknown
	}
}

// ParseMultiget extracts the requested properties and hrefs from a
// calendar-multiget or addressbook-multiget body.
func ParseMultiget(doc *etree.Document) (propfind.ResponseMap, []string) {
	propsMap := make(propfind.ResponseMap)
	hrefs := []string{}

	root := doc.Root()
	if root == nil {
		return propsMap, hrefs
	}

	if propElem := findChildIgnoreNS(root, "prop"); propElem != nil {
		propsMap = parseProp(propElem)
	}

	for _, elem := range root.ChildElements() {
		if localName(elem.Tag) == "href" {
			hrefs = append(hrefs, elem.Text())
		}
	}

	return propsMap, hrefs
}

// parseProp collects the known property names under a <prop> element.
func parseProp(propElem *etree.Element) propfind.ResponseMap {
	propsMap := make(propfind.ResponseMap)
	for _, elem := range propElem.ChildElements() {
		name := localName(elem.Tag)
		if structPtr, exists := props.PropNameToStruct[name]; exists {
			propsMap[name] = mo.Ok(structPtr)
		}
	}
	return propsMap
}

func localName(tag string) string {
	if idx := strings.Index(tag, ":"); idx != -1 {
		tag = tag[idx+1:]
	}
	return strings.ToLower(tag)
}

func findChildIgnoreNS(parent *etree.Element, name string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if localName(child.Tag) == name {
			return child
		}
	}
	return nil
}

// findElementIgnoreNS searches the direct children for a local name.
func findElementIgnoreNS(parent *etree.Element, name string) *etree.Element {
	return findChildIgnoreNS(parent, name)
}

func getElementsIgnoreNS(parent *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, child := range parent.ChildElements() {
		if localName(child.Tag) == name {
			out = append(out, child)
		}
	}
	return out
}
