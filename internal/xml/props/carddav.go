package props

import "github.com/beevik/etree"

type AddressData struct {
	// VCard carries the raw serialized vCard text.
	VCard string
}

func (p AddressData) Encode() *etree.Element {
	elem := createElement("address-data")
	elem.SetText(p.VCard)
	return elem
}

type AddressbookHomeSet struct {
	Href string
}

func (p AddressbookHomeSet) Encode() *etree.Element {
	elem := createElement("addressbook-home-set")
	href := createElement("href")
	elem.AddChild(href)
	href.SetText(p.Href)
	return elem
}

type AddressbookDescription struct {
	Value string
}

func (p AddressbookDescription) Encode() *etree.Element {
	elem := createElement("addressbook-description")
	elem.SetText(p.Value)
	return elem
}

type SupportedAddressData struct {
	ContentType string
	Version     string
}

func (p SupportedAddressData) Encode() *etree.Element {
	elem := createElement("supported-address-data")
	typeElem := createElement("address-data-type")
	typeElem.CreateAttr("content-type", p.ContentType)
	if p.Version != "" {
		typeElem.CreateAttr("version", p.Version)
	}
	elem.AddChild(typeElem)
	return elem
}
