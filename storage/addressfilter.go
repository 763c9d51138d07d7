package storage

import (
	"strings"

	"github.com/emersion/go-vcard"
)

// AddressPropFilter describes a <prop-filter> of an addressbook-query.
type AddressPropFilter struct {
	Name         string
	IsNotDefined bool
	TextMatch    *TextMatch
}

// AddressFilter is the filter of an addressbook-query. Test selects
// "anyof" (default) or "allof" combination of the prop filters.
type AddressFilter struct {
	Test        string
	PropFilters []AddressPropFilter
}

// Validate reports whether the contact matches the filter.
func (f *AddressFilter) Validate(obj *Object) bool {
	if obj == nil || obj.Card == nil {
		return false
	}
	if len(f.PropFilters) == 0 {
		return true
	}
	allOf := f.Test == "allof"
	for _, pf := range f.PropFilters {
		matched := pf.validate(obj.Card)
		if allOf && !matched {
			return false
		}
		if !allOf && matched {
			return true
		}
	}
	return allOf
}

func (pf *AddressPropFilter) validate(card vcard.Card) bool {
	fields := card[strings.ToUpper(pf.Name)]
	if pf.IsNotDefined {
		return len(fields) == 0
	}
	if len(fields) == 0 {
		return false
	}
	if pf.TextMatch == nil {
		return true
	}
	for _, field := range fields {
		if pf.TextMatch.Matches(field.Value) {
			return true
		}
	}
	return false
}
