// Package clowddav provides the domain model shared by the CalDAV/CardDAV
// synchronization engine: collections, items, pending operations and the
// error taxonomy surfaced by the services.
package clowddav

import (
	"encoding/json"
	"time"
)

// Calendar is a remote calendar collection. Its URL is its identity and is
// never regenerated once discovered.
type Calendar struct {
	URL         string `json:"url"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color,omitempty"`
}

// AddressBook is a remote address-book collection, identified by URL.
type AddressBook struct {
	URL         string `json:"url"`
	DisplayName string `json:"displayName"`
}

// CalendarEvent is a single VEVENT. ETag is the opaque server version token;
// it is empty on locally-created items that have not been synced yet.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"dtstart"`
	End         time.Time `json:"dtend"`
	ETag        string    `json:"etag,omitempty"`
	CalendarURL string    `json:"calendarUrl,omitempty"`
}

// Contact is a single vCard. FormattedName is always derivable from
// FirstName/LastName; the codec keeps them consistent.
type Contact struct {
	UID            string   `json:"uid"`
	FormattedName  string   `json:"fn"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Org            string   `json:"org,omitempty"`
	Emails         []string `json:"email,omitempty"`
	Phones         []string `json:"tel,omitempty"`
	Photo          string   `json:"photo,omitempty"`
	ETag           string   `json:"etag,omitempty"`
	AddressBookURL string   `json:"addressBookUrl,omitempty"`
}

// DateRange is an inclusive time window used for event queries.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether an event spanning [start, end] is visible within
// the range. Both ends are inclusive.
func (r DateRange) Overlaps(start, end time.Time) bool {
	return !start.After(r.End) && !end.Before(r.Start)
}

// OpType identifies the kind of queued mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// ResourceKind identifies which resource family a queued mutation targets.
type ResourceKind string

const (
	ResourceEvent   ResourceKind = "event"
	ResourceContact ResourceKind = "contact"
)

// PendingOperation is a mutation recorded while disconnected. It is removed
// from the queue only after a successful remote replay.
type PendingOperation struct {
	ID          string          `json:"id"`
	Type        OpType          `json:"type"`
	Resource    ResourceKind    `json:"resourceType"`
	ResourceURL string          `json:"resourceUrl"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Config holds the connection credentials for one account.
type Config struct {
	BaseURL  string `json:"baseUrl" yaml:"base_url"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}
