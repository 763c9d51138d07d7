package abook

import (
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"

	"remdav/storage"
)

// telTypes maps abook phone fields to vCard TEL TYPE parameters.
var telTypes = map[string]string{
	"phone":     "home",
	"workphone": "work",
	"fax":       "fax",
	"mobile":    "cell",
}

// toCard converts one abook entry to a vCard.
func toCard(c contact, uid string) vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldUID, uid)

	name := c.Fields["name"]
	card.SetValue(vcard.FieldFormattedName, name)
	card.SetValue(vcard.FieldName, structuredName(name))

	for _, email := range splitList(c.Fields["email"]) {
		card.AddValue(vcard.FieldEmail, email)
	}

	for field, telType := range telTypes {
		if v := c.Fields[field]; v != "" {
			card.Add(vcard.FieldTelephone, &vcard.Field{
				Value:  v,
				Params: vcard.Params{vcard.ParamType: {telType}},
			})
		}
	}

	if adr := structuredAddress(c); adr != "" {
		card.SetValue(vcard.FieldAddress, adr)
	}
	if v := c.Fields["nick"]; v != "" {
		card.SetValue(vcard.FieldNickname, v)
	}
	if v := c.Fields["url"]; v != "" {
		card.SetValue(vcard.FieldURL, v)
	}
	if v := c.Fields["notes"]; v != "" {
		card.SetValue(vcard.FieldNote, v)
	}
	if v := c.Fields["anniversary"]; v != "" {
		card.SetValue(vcard.FieldBirthday, v)
	}
	return card
}

// fromCard converts an inbound vCard to an abook entry.
func fromCard(card vcard.Card) (contact, error) {
	c := contact{Fields: map[string]string{}}

	name := card.Value(vcard.FieldFormattedName)
	if name == "" {
		if n := card.Value(vcard.FieldName); n != "" {
			name = displayName(n)
		}
	}
	if name == "" {
		return c, fmt.Errorf("card without FN: %w", storage.ErrInvalidInput)
	}
	c.Fields["name"] = name

	var emails []string
	for _, f := range card[vcard.FieldEmail] {
		if f.Value != "" {
			emails = append(emails, f.Value)
		}
	}
	if len(emails) > 0 {
		c.Fields["email"] = strings.Join(emails, ",")
	}

	for _, f := range card[vcard.FieldTelephone] {
		if f.Value == "" {
			continue
		}
		field := "phone"
		for abookField, telType := range telTypes {
			if hasType(f, telType) {
				field = abookField
				break
			}
		}
		if c.Fields[field] == "" {
			c.Fields[field] = f.Value
		}
	}

	if adr := card.Value(vcard.FieldAddress); adr != "" {
		applyAddress(&c, adr)
	}
	if v := card.Value(vcard.FieldNickname); v != "" {
		c.Fields["nick"] = v
	}
	if v := card.Value(vcard.FieldURL); v != "" {
		c.Fields["url"] = v
	}
	if v := card.Value(vcard.FieldNote); v != "" {
		c.Fields["notes"] = strings.ReplaceAll(v, "\n", " ")
	}
	if v := card.Value(vcard.FieldBirthday); v != "" {
		c.Fields["anniversary"] = v
	}
	return c, nil
}

func hasType(f *vcard.Field, telType string) bool {
	if f.Params == nil {
		return false
	}
	for _, t := range f.Params[vcard.ParamType] {
		if strings.EqualFold(t, telType) {
			return true
		}
	}
	return false
}

// structuredName builds an N value from the display name, putting the
// last word into the family name slot.
func structuredName(name string) string {
	words := strings.Fields(name)
	if len(words) < 2 {
		return name + ";;;;"
	}
	family := words[len(words)-1]
	given := strings.Join(words[:len(words)-1], " ")
	return family + ";" + given + ";;;"
}

func displayName(n string) string {
	parts := strings.Split(n, ";")
	family := parts[0]
	given := ""
	if len(parts) > 1 {
		given = parts[1]
	}
	return strings.TrimSpace(given + " " + family)
}

// structuredAddress builds an ADR value from the abook address fields:
// po-box;extended;street;locality;region;postal-code;country.
func structuredAddress(c contact) string {
	street := c.Fields["address"]
	parts := []string{
		"", c.Fields["address2"], street,
		c.Fields["city"], c.Fields["state"], c.Fields["zip"], c.Fields["country"],
	}
	if strings.Join(parts, "") == "" {
		return ""
	}
	return strings.Join(parts, ";")
}

func applyAddress(c *contact, adr string) {
	parts := strings.Split(adr, ";")
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	set := func(field, v string) {
		if v != "" {
			c.Fields[field] = v
		}
	}
	set("address2", get(1))
	set("address", get(2))
	set("city", get(3))
	set("state", get(4))
	set("zip", get(5))
	set("country", get(6))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
