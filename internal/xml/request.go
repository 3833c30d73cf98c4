package xml

import "github.com/beevik/etree"

// newRequestDoc creates a document with the namespace prefixes our request
// bodies use.
func newRequestDoc(rootTag string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootTag)
	root.CreateAttr("xmlns:d", DAV)
	root.CreateAttr("xmlns:c", CalDAV)
	root.CreateAttr("xmlns:card", CardDAV)
	root.CreateAttr("xmlns:a", Apple)
	root.CreateAttr("xmlns:cs", CalendarServer)
	return doc, root
}

func mustBytes(doc *etree.Document) []byte {
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil
	}
	return out
}

// BuildPropfind builds a PROPFIND body requesting the named properties.
// Unknown names are ignored.
func BuildPropfind(props ...string) []byte {
	doc, root := newRequestDoc("d:propfind")
	prop := root.CreateElement("d:prop")
	for _, p := range props {
		switch p {
		case "resourcetype":
			prop.CreateElement("d:resourcetype")
		case "displayname":
			prop.CreateElement("d:displayname")
		case "calendar-color":
			prop.CreateElement("a:calendar-color")
		case "getetag":
			prop.CreateElement("d:getetag")
		case "getctag":
			prop.CreateElement("cs:getctag")
		case "sync-token":
			prop.CreateElement("d:sync-token")
		case "current-user-principal":
			prop.CreateElement("d:current-user-principal")
		}
	}
	return mustBytes(doc)
}

// BuildMkcalendar builds an MKCALENDAR body setting displayname and,
// optionally, the Apple calendar-color property.
func BuildMkcalendar(displayName, color string) []byte {
	doc, root := newRequestDoc("c:mkcalendar")
	prop := root.CreateElement("d:set").CreateElement("d:prop")
	prop.CreateElement("d:displayname").SetText(displayName)
	if color != "" {
		prop.CreateElement("a:calendar-color").SetText(color)
	}
	return mustBytes(doc)
}

// BuildMkcolAddressbook builds an extended MKCOL body (RFC 5689) that marks
// the new collection as an address book.
func BuildMkcolAddressbook(displayName string) []byte {
	doc, root := newRequestDoc("d:mkcol")
	prop := root.CreateElement("d:set").CreateElement("d:prop")
	resType := prop.CreateElement("d:resourcetype")
	resType.CreateElement("d:collection")
	resType.CreateElement("card:addressbook")
	prop.CreateElement("d:displayname").SetText(displayName)
	return mustBytes(doc)
}

// BuildProppatch builds a PROPPATCH body updating displayname and,
// optionally, the calendar color. Empty values are left untouched.
func BuildProppatch(displayName, color string) []byte {
	doc, root := newRequestDoc("d:propertyupdate")
	prop := root.CreateElement("d:set").CreateElement("d:prop")
	if displayName != "" {
		prop.CreateElement("d:displayname").SetText(displayName)
	}
	if color != "" {
		prop.CreateElement("a:calendar-color").SetText(color)
	}
	return mustBytes(doc)
}
