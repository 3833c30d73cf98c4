package xml

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/beevik/etree"
)

// Collection is a typed descriptor for one calendar or address-book entry
// of a multistatus document.
type Collection struct {
	URL         string
	DisplayName string
	Color       string
}

// Object is one item entry of a REPORT multistatus: href, version token and
// the raw calendar-data/address-data payload.
type Object struct {
	Href string
	ETag string
	Data string
}

// untitled is the display name used when the server omits one.
const untitled = "Untitled"

func parseDoc(body []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	if root.Tag != "multistatus" {
		return nil, fmt.Errorf("invalid root tag: %s", root.Tag)
	}
	return root, nil
}

// okProps returns the prop children of every propstat with a 2xx status.
func okProps(respElem *etree.Element) []*etree.Element {
	var props []*etree.Element
	for _, propstat := range respElem.SelectElements("propstat") {
		status := ""
		if statusElem := propstat.SelectElement("status"); statusElem != nil {
			status = statusElem.Text()
		}
		if !strings.Contains(status, "200") {
			continue
		}
		if propElem := propstat.SelectElement("prop"); propElem != nil {
			props = append(props, propElem.ChildElements()...)
		}
	}
	return props
}

func findProp(props []*etree.Element, tag string) *etree.Element {
	for _, p := range props {
		if p.Tag == tag {
			return p
		}
	}
	return nil
}

// ParseCollections decodes a multistatus document into collection
// descriptors of the requested kind. Entries missing an href, lacking the
// calendar/addressbook resourcetype marker, or otherwise malformed are
// skipped; only a structurally invalid document fails the whole parse.
func ParseCollections(body []byte, baseURL string, kind Kind, logger *slog.Logger) ([]Collection, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	root, err := parseDoc(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	var collections []Collection
	for _, respElem := range root.SelectElements("response") {
		hrefElem := respElem.SelectElement("href")
		if hrefElem == nil || strings.TrimSpace(hrefElem.Text()) == "" {
			logger.Warn("skipping multistatus entry without href")
			continue
		}

		ref, err := url.Parse(strings.TrimSpace(hrefElem.Text()))
		if err != nil {
			logger.Warn("skipping multistatus entry with malformed href",
				"href", hrefElem.Text(), "error", err)
			continue
		}

		props := okProps(respElem)
		resType := findProp(props, "resourcetype")
		if resType == nil || resType.SelectElement(kind.String()) == nil {
			// Plain collections are not calendars/address books.
			continue
		}

		coll := Collection{
			URL:         base.ResolveReference(ref).String(),
			DisplayName: untitled,
		}
		if nameElem := findProp(props, "displayname"); nameElem != nil && strings.TrimSpace(nameElem.Text()) != "" {
			coll.DisplayName = strings.TrimSpace(nameElem.Text())
		}
		if kind == KindCalendar {
			coll.Color = findColor(props)
		}
		collections = append(collections, coll)
	}

	return collections, nil
}

// findColor probes the three calendar-color encodings seen in the wild:
// the caldav-namespaced element, the Apple iCal element, and a bare
// unnamespaced element. First match wins.
func findColor(props []*etree.Element) string {
	var candidates []*etree.Element
	for _, p := range props {
		if p.Tag == "calendar-color" {
			candidates = append(candidates, p)
		}
	}
	for _, ns := range []string{CalDAV, Apple, ""} {
		for _, c := range candidates {
			if c.NamespaceURI() == ns {
				if color := strings.TrimSpace(c.Text()); color != "" {
					return color
				}
			}
		}
	}
	return ""
}

// ParseObjects decodes a REPORT multistatus into item entries. Entries
// without an href are skipped. Data is the raw calendar-data or
// address-data payload; it may be empty for etag-only responses.
func ParseObjects(body []byte, logger *slog.Logger) ([]Object, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	root, err := parseDoc(body)
	if err != nil {
		return nil, err
	}

	var objects []Object
	for _, respElem := range root.SelectElements("response") {
		hrefElem := respElem.SelectElement("href")
		if hrefElem == nil || strings.TrimSpace(hrefElem.Text()) == "" {
			logger.Warn("skipping report entry without href")
			continue
		}

		obj := Object{Href: strings.TrimSpace(hrefElem.Text())}
		props := okProps(respElem)
		if etagElem := findProp(props, "getetag"); etagElem != nil {
			obj.ETag = strings.TrimSpace(etagElem.Text())
		}
		if dataElem := findProp(props, "calendar-data"); dataElem != nil {
			obj.Data = dataElem.Text()
		} else if dataElem := findProp(props, "address-data"); dataElem != nil {
			obj.Data = dataElem.Text()
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

// ParseToken extracts the collection-level change token from a PROPFIND
// response: getctag when present, sync-token as fallback. Returns an empty
// string when the server advertises neither.
func ParseToken(body []byte) (string, error) {
	root, err := parseDoc(body)
	if err != nil {
		return "", err
	}

	syncToken := ""
	for _, respElem := range root.SelectElements("response") {
		props := okProps(respElem)
		if ctagElem := findProp(props, "getctag"); ctagElem != nil {
			if token := strings.TrimSpace(ctagElem.Text()); token != "" {
				return token, nil
			}
		}
		if tokenElem := findProp(props, "sync-token"); tokenElem != nil && syncToken == "" {
			syncToken = strings.TrimSpace(tokenElem.Text())
		}
	}
	return syncToken, nil
}
