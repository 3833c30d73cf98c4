package davclient

import (
	"encoding/xml"
	"fmt"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

// REPORT bodies. calendar-query carries a VEVENT comp-filter with an
// optional time-range; addressbook-query asks for every card that defines
// an FN property.

const timeFormat = "20060102T150405Z"

type calendarQuery struct {
	XMLName xml.Name  `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    calProp   `xml:"DAV: prop"`
	Filter  calFilter `xml:"urn:ietf:params:xml:ns:caldav filter"`
}

type calProp struct {
	GetETag      struct{} `xml:"DAV: getetag"`
	CalendarData struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type calFilter struct {
	CompFilter compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type compFilter struct {
	Name       string      `xml:"name,attr"`
	TimeRange  *timeRange  `xml:"urn:ietf:params:xml:ns:caldav time-range,omitempty"`
	CompFilter *compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter,omitempty"`
}

type timeRange struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

// buildCalendarQuery builds a calendar-query REPORT body. A nil range
// matches every event.
func buildCalendarQuery(rng *clowddav.DateRange) ([]byte, error) {
	query := calendarQuery{
		Filter: calFilter{
			CompFilter: compFilter{
				Name:       "VCALENDAR",
				CompFilter: &compFilter{Name: "VEVENT"},
			},
		},
	}
	if rng != nil {
		query.Filter.CompFilter.CompFilter.TimeRange = &timeRange{
			Start: rng.Start.UTC().Format(timeFormat),
			End:   rng.End.UTC().Format(timeFormat),
		}
	}

	body, err := xml.Marshal(&query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calendar query: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

type addressbookQuery struct {
	XMLName xml.Name   `xml:"urn:ietf:params:xml:ns:carddav addressbook-query"`
	Prop    cardProp   `xml:"DAV: prop"`
	Filter  cardFilter `xml:"urn:ietf:params:xml:ns:carddav filter"`
}

type cardProp struct {
	GetETag     struct{} `xml:"DAV: getetag"`
	AddressData struct{} `xml:"urn:ietf:params:xml:ns:carddav address-data"`
}

type cardFilter struct {
	PropFilter propFilter `xml:"urn:ietf:params:xml:ns:carddav prop-filter"`
}

type propFilter struct {
	Name string `xml:"name,attr"`
}

// buildAddressbookQuery builds an addressbook-query REPORT body. A
// prop-filter without text-match matches every card defining the property.
func buildAddressbookQuery() ([]byte, error) {
	query := addressbookQuery{
		Filter: cardFilter{PropFilter: propFilter{Name: "FN"}},
	}

	body, err := xml.Marshal(&query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal addressbook query: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
