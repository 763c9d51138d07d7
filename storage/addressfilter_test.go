package storage

import (
	"testing"

	"github.com/emersion/go-vcard"
	"github.com/stretchr/testify/assert"
)

func newTestCard(fn, email string) *Object {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, fn)
	if email != "" {
		card.AddValue(vcard.FieldEmail, email)
	}
	return &Object{ID: "card@remdav", Card: card}
}

func TestAddressFilterPropMatch(t *testing.T) {
	obj := newTestCard("Jane Doe", "jane@example.org")

	tests := []struct {
		name   string
		filter AddressFilter
		match  bool
	}{
		{
			name: "fn contains",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name:      "FN",
				TextMatch: &TextMatch{MatchType: "contains", Collation: "i;unicode-casemap", Value: "jane"},
			}}},
			match: true,
		},
		{
			name: "email equals",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name:      "EMAIL",
				TextMatch: &TextMatch{MatchType: "equals", Value: "jane@example.org"},
			}}},
			match: true,
		},
		{
			name: "no such value",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name:      "FN",
				TextMatch: &TextMatch{MatchType: "contains", Value: "Smith"},
			}}},
			match: false,
		},
		{
			name: "is-not-defined on absent field",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name:         "TEL",
				IsNotDefined: true,
			}}},
			match: true,
		},
		{
			name: "is-not-defined on present field",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name:         "EMAIL",
				IsNotDefined: true,
			}}},
			match: false,
		},
		{
			name: "prop only existence check",
			filter: AddressFilter{PropFilters: []AddressPropFilter{{
				Name: "EMAIL",
			}}},
			match: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.filter.Validate(obj))
		})
	}
}

func TestAddressFilterAnyofAllof(t *testing.T) {
	obj := newTestCard("Jane Doe", "jane@example.org")

	matching := AddressPropFilter{
		Name:      "FN",
		TextMatch: &TextMatch{MatchType: "contains", Value: "Jane"},
	}
	failing := AddressPropFilter{
		Name:      "FN",
		TextMatch: &TextMatch{MatchType: "contains", Value: "Smith"},
	}

	anyof := AddressFilter{Test: "anyof", PropFilters: []AddressPropFilter{failing, matching}}
	assert.True(t, anyof.Validate(obj))

	allof := AddressFilter{Test: "allof", PropFilters: []AddressPropFilter{failing, matching}}
	assert.False(t, allof.Validate(obj))

	allofBoth := AddressFilter{Test: "allof", PropFilters: []AddressPropFilter{
		matching,
		{Name: "EMAIL", TextMatch: &TextMatch{MatchType: "contains", Value: "example.org"}},
	}}
	assert.True(t, allofBoth.Validate(obj))
}

func TestAddressFilterNilCard(t *testing.T) {
	filter := AddressFilter{PropFilters: []AddressPropFilter{{Name: "FN"}}}
	assert.False(t, filter.Validate(&Object{}))
}
