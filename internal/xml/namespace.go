// Package xml decodes WebDAV multistatus documents into typed descriptors
// and builds the request bodies for PROPFIND, MKCALENDAR, MKCOL and
// PROPPATCH. Parsing matches elements by local name so namespace prefixes
// chosen by the server do not matter; namespace URIs are consulted only
// where the protocol overloads a name (calendar-color).
package xml

// Namespace URIs used by the CalDAV/CardDAV family of protocols.
const (
	DAV            = "DAV:"
	CalDAV         = "urn:ietf:params:xml:ns:caldav"
	CardDAV        = "urn:ietf:params:xml:ns:carddav"
	Apple          = "http://apple.com/ns/ical/"
	CalendarServer = "http://calendarserver.org/ns/"
)

// Kind selects which collection marker a multistatus entry must carry.
type Kind int

const (
	KindCalendar Kind = iota
	KindAddressBook
)

func (k Kind) String() string {
	if k == KindAddressBook {
		return "addressbook"
	}
	return "calendar"
}
