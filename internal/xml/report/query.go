package report

import (
	"time"

	"github.com/beevik/etree"

	"remdav/internal/xml/propfind"
	"remdav/storage"
)

// ParseCalendarQuery extracts the requested properties and the filter
// tree from a calendar-query body. The returned filter is the first
// comp-filter below the VCALENDAR level, or nil when the query carries
// no filter.
func ParseCalendarQuery(doc *etree.Document) (propfind.ResponseMap, *storage.Filter) {
	propsMap := make(propfind.ResponseMap)

	root := doc.Root()
	if root == nil {
		return propsMap, nil
	}

	if propElem := findChildIgnoreNS(root, "prop"); propElem != nil {
		propsMap = parseProp(propElem)
	}

	filterElem := findChildIgnoreNS(root, "filter")
	if filterElem == nil {
		return propsMap, nil
	}

	// The outer comp-filter names VCALENDAR; the component filters of
	// interest are its children.
	outer := getElementsIgnoreNS(filterElem, "comp-filter")
	if len(outer) == 0 {
		return propsMap, nil
	}
	inner := getElementsIgnoreNS(outer[0], "comp-filter")
	if len(inner) == 0 {
		return propsMap, nil
	}
	return propsMap, parseCompFilter(inner[0])
}

func parseCompFilter(elem *etree.Element) *storage.Filter {
	filter := &storage.Filter{
		Component: elem.SelectAttrValue("name", ""),
	}

	if findElementIgnoreNS(elem, "is-not-defined") != nil {
		filter.IsNotDefined = true
		return filter
	}

	if timeRangeElem := findElementIgnoreNS(elem, "time-range"); timeRangeElem != nil {
		filter.TimeRange = parseTimeRange(timeRangeElem)
	}

	for _, propFilterElem := range getElementsIgnoreNS(elem, "prop-filter") {
		filter.PropFilters = append(filter.PropFilters, parsePropFilter(propFilterElem))
	}

	for _, nested := range getElementsIgnoreNS(elem, "comp-filter") {
		filter.Children = append(filter.Children, *parseCompFilter(nested))
	}

	return filter
}

func parsePropFilter(elem *etree.Element) storage.PropFilter {
	propFilter := storage.PropFilter{
		Name: elem.SelectAttrValue("name", ""),
	}

	if findElementIgnoreNS(elem, "is-not-defined") != nil {
		propFilter.IsNotDefined = true
		return propFilter
	}

	if textMatchElem := findElementIgnoreNS(elem, "text-match"); textMatchElem != nil {
		propFilter.TextMatch = parseTextMatch(textMatchElem)
	}

	for _, paramFilterElem := range getElementsIgnoreNS(elem, "param-filter") {
		propFilter.ParamFilters = append(propFilter.ParamFilters, parseParamFilter(paramFilterElem))
	}

	return propFilter
}

func parseParamFilter(elem *etree.Element) storage.ParamFilter {
	paramFilter := storage.ParamFilter{
		Name: elem.SelectAttrValue("name", ""),
	}

	if findElementIgnoreNS(elem, "is-not-defined") != nil {
		paramFilter.IsNotDefined = true
		return paramFilter
	}

	if textMatchElem := findElementIgnoreNS(elem, "text-match"); textMatchElem != nil {
		paramFilter.TextMatch = parseTextMatch(textMatchElem)
	}

	return paramFilter
}

func parseTextMatch(elem *etree.Element) *storage.TextMatch {
	return &storage.TextMatch{
		Collation: elem.SelectAttrValue("collation", "i;unicode-casemap"),
		MatchType: elem.SelectAttrValue("match-type", "contains"),
		Negate:    elem.SelectAttrValue("negate-condition", "no") == "yes",
		Value:     elem.Text(),
	}
}

func parseTimeRange(elem *etree.Element) *storage.TimeRange {
	timeRange := &storage.TimeRange{}

	if startStr := elem.SelectAttrValue("start", ""); startStr != "" {
		if start, err := time.Parse("20060102T150405Z", startStr); err == nil {
			timeRange.Start = &start
		}
	}
	if endStr := elem.SelectAttrValue("end", ""); endStr != "" {
		if end, err := time.Parse("20060102T150405Z", endStr); err == nil {
			timeRange.End = &end
		}
	}

	if timeRange.Start == nil && timeRange.End == nil {
		return nil
	}
	return timeRange
}

// ParseAddressbookQuery extracts the requested properties and the
// contact filter from an addressbook-query body.
func ParseAddressbookQuery(doc *etree.Document) (propfind.ResponseMap, *storage.AddressFilter) {
	propsMap := make(propfind.ResponseMap)

	root := doc.Root()
	if root == nil {
		return propsMap, nil
	}

	if propElem := findChildIgnoreNS(root, "prop"); propElem != nil {
		propsMap = parseProp(propElem)
	}

	filterElem := findChildIgnoreNS(root, "filter")
	if filterElem == nil {
		return propsMap, nil
	}

	filter := &storage.AddressFilter{
		Test: filterElem.SelectAttrValue("test", "anyof"),
	}
	for _, propFilterElem := range getElementsIgnoreNS(filterElem, "prop-filter") {
		filter.PropFilters = append(filter.PropFilters, parseAddressPropFilter(propFilterElem))
	}
	if len(filter.PropFilters) == 0 {
		return propsMap, nil
	}
	return propsMap, filter
}

func parseAddressPropFilter(elem *etree.Element) storage.AddressPropFilter {
	propFilter := storage.AddressPropFilter{
		Name: elem.SelectAttrValue("name", ""),
	}

	if findElementIgnoreNS(elem, "is-not-defined") != nil {
		propFilter.IsNotDefined = true
		return propFilter
	}

	if textMatchElem := findElementIgnoreNS(elem, "text-match"); textMatchElem != nil {
		propFilter.TextMatch = parseTextMatch(textMatchElem)
	}

	return propFilter
}
