// Package propfind parses PROPFIND request bodies and encodes
// multistatus responses.
package propfind

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"remdav/internal/xml/props"
)

// ResponseMap maps property names to their resolution result. A key
// with an Err value ends up in the 404 propstat of the response.
type ResponseMap map[string]mo.Result[props.Property]

var (
	// ErrNotFound marks a property the resource does not carry.
	ErrNotFound = errors.New("property not found")
	// ErrInternal marks a property whose resolution failed.
	ErrInternal = errors.New("internal error resolving property")
	// ErrForbidden marks a property the requester may not read.
	ErrForbidden = errors.New("property access forbidden")
)

// ParseRequest extracts the requested property names from a PROPFIND
// body. An empty body and <allprop> both request every known property.
// <propname> is flagged through the second return value; the caller
// then answers with empty property elements.
func ParseRequest(xmlStr string) (ResponseMap, bool) {
	req := make(ResponseMap)

	if strings.TrimSpace(xmlStr) == "" {
		return allProps(), false
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlStr); err != nil {
		return allProps(), false
	}

	propfindElem := doc.FindElement("//propfind")
	if propfindElem == nil {
		return allProps(), false
	}

	if findChildIgnoreNS(propfindElem, "allprop") != nil {
		return allProps(), false
	}
	if findChildIgnoreNS(propfindElem, "propname") != nil {
		return allProps(), true
	}

	propElem := findChildIgnoreNS(propfindElem, "prop")
	if propElem == nil {
		return allProps(), false
	}

	for _, elem := range propElem.ChildElements() {
		name := localName(elem.Tag)
		if structPtr, exists := props.PropNameToStruct[name]; exists {
			req[name] = mo.Ok(structPtr)
		} else {
			// Unknown properties still get a 404 propstat entry.
			req[name] = mo.Err[props.Property](ErrNotFound)
		}
	}

	return req, false
}

func allProps() ResponseMap {
	req := make(ResponseMap, len(props.PropNameToStruct))
	for name, structPtr := range props.PropNameToStruct {
		req[name] = mo.Ok(structPtr)
	}
	return req
}

// EncodeResponse builds a single-response multistatus document for one
// href. Properties resolved Ok go into the 200 propstat, the rest into
// the 404 propstat as empty elements.
func EncodeResponse(res ResponseMap, href string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	multistatus := doc.CreateElement("multistatus")
	multistatus.Space = "d"
	for prefix, uri := range props.NamespaceMap {
		multistatus.CreateAttr("xmlns:"+prefix, uri)
	}

	response := appendElement(multistatus, "response", "d")
	hrefElem := appendElement(response, "href", "d")
	hrefElem.SetText(href)

	// Sorted iteration keeps the output stable across requests.
	names := make([]string, 0, len(res))
	for name := range res {
		names = append(names, name)
	}
	sort.Strings(names)

	var found, missing []string
	for _, name := range names {
		if res[name].IsOk() {
			found = append(found, name)
		} else {
			missing = append(missing, name)
		}
	}

	if len(found) > 0 {
		propstat := appendElement(response, "propstat", "d")
		prop := appendElement(propstat, "prop", "d")
		for _, name := range found {
			prop.AddChild(res[name].MustGet().Encode())
		}
		status := appendElement(propstat, "status", "d")
		status.SetText("HTTP/1.1 200 OK")
	}

	if len(missing) > 0 {
		propstat := appendElement(response, "propstat", "d")
		prop := appendElement(propstat, "prop", "d")
		for _, name := range missing {
			prefix, ok := props.PropPrefixMap[name]
			if !ok {
				prefix = "d"
			}
			empty := etree.NewElement(name)
			empty.Space = prefix
			prop.AddChild(empty)
		}
		status := appendElement(propstat, "status", "d")
		status.SetText("HTTP/1.1 404 Not Found")
	}

	return doc
}

// EncodePropNames builds the multistatus answer to a <propname>
// request: every property as an empty element under a 200 propstat.
func EncodePropNames(res ResponseMap, href string) *etree.Document {
	names := make(ResponseMap, len(res))
	for name := range res {
		names[name] = mo.Ok[props.Property](emptyProp{name: name})
	}
	return EncodeResponse(names, href)
}

type emptyProp struct {
	name string
}

func (p emptyProp) Encode() *etree.Element {
	prefix, ok := props.PropPrefixMap[p.name]
	if !ok {
		prefix = "d"
	}
	elem := etree.NewElement(p.name)
	elem.Space = prefix
	return elem
}

// MergeResponses folds the response elements of several single-href
// documents into one multistatus document.
func MergeResponses(docs []*etree.Document) (*etree.Document, error) {
	merged := etree.NewDocument()
	merged.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	multistatus := merged.CreateElement("multistatus")
	multistatus.Space = "d"
	for prefix, uri := range props.NamespaceMap {
		multistatus.CreateAttr("xmlns:"+prefix, uri)
	}

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		root := doc.Root()
		if root == nil || localName(root.Tag) != "multistatus" {
			return nil, fmt.Errorf("cannot merge document without multistatus root")
		}
		for _, child := range root.ChildElements() {
			if localName(child.Tag) == "response" {
				multistatus.AddChild(child.Copy())
			}
		}
	}

	return merged, nil
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

func appendElement(parent *etree.Element, name, prefix string) *etree.Element {
	elem := parent.CreateElement(name)
	elem.Space = prefix
	return elem
}
