package xml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discoveryResponse = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:a="http://apple.com/ns/ical/">
  <d:response>
    <d:href>/calendars/user/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/></d:resourcetype>
        <d:displayname>Home collection</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/user/work/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname>Work</d:displayname>
        <a:calendar-color>#FF0000FF</a:calendar-color>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestParseCollections(t *testing.T) {
	cols, err := ParseCollections([]byte(discoveryResponse), "https://dav.example.com/calendars/user/", KindCalendar, nil)
	require.NoError(t, err)

	// The plain collection and the href-less entry are both skipped.
	require.Len(t, cols, 1)
	assert.Equal(t, "https://dav.example.com/calendars/user/work/", cols[0].URL)
	assert.Equal(t, "Work", cols[0].DisplayName)
	assert.Equal(t, "#FF0000FF", cols[0].Color)
}

func TestParseCollectionsDefaultDisplayName(t *testing.T) {
	body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/user/unnamed/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname/>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	cols, err := ParseCollections([]byte(body), "https://dav.example.com/", KindCalendar, nil)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "Untitled", cols[0].DisplayName)
}

func TestParseCollectionsColorEncodings(t *testing.T) {
	tests := []struct {
		name string
		prop string
		want string
	}{
		{
			name: "caldav namespace",
			prop: `<c:calendar-color>#00FF00</c:calendar-color>`,
			want: "#00FF00",
		},
		{
			name: "apple namespace",
			prop: `<a:calendar-color>#0000FF</a:calendar-color>`,
			want: "#0000FF",
		},
		{
			name: "no namespace",
			prop: `<calendar-color>#FFFF00</calendar-color>`,
			want: "#FFFF00",
		},
		{
			name: "caldav wins over apple",
			prop: `<a:calendar-color>#0000FF</a:calendar-color><c:calendar-color>#00FF00</c:calendar-color>`,
			want: "#00FF00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:a="http://apple.com/ns/ical/">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        ` + tt.prop + `
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

			cols, err := ParseCollections([]byte(body), "https://dav.example.com/", KindCalendar, nil)
			require.NoError(t, err)
			require.Len(t, cols, 1)
			assert.Equal(t, tt.want, cols[0].Color)
		})
	}
}

func TestParseCollectionsAddressBookKind(t *testing.T) {
	body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/contacts/user/default/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><card:addressbook/></d:resourcetype>
        <d:displayname>Contacts</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	cols, err := ParseCollections([]byte(body), "https://dav.example.com/", KindAddressBook, nil)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "Contacts", cols[0].DisplayName)

	// The same body holds no calendars.
	cols, err = ParseCollections([]byte(body), "https://dav.example.com/", KindCalendar, nil)
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestParseCollectionsInvalidDocument(t *testing.T) {
	_, err := ParseCollections([]byte("<notdav/>"), "https://dav.example.com/", KindCalendar, nil)
	assert.Error(t, err)

	_, err = ParseCollections([]byte("{]"), "https://dav.example.com/", KindCalendar, nil)
	assert.Error(t, err)
}

func TestParseObjects(t *testing.T) {
	body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/user/work/evt-1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"etag-1"</d:getetag>
        <c:calendar-data>BEGIN:VCALENDAR
END:VCALENDAR</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/user/work/evt-2.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"etag-2"</d:getetag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	objects, err := ParseObjects([]byte(body), nil)
	require.NoError(t, err)
	require.Len(t, objects, 2)

	assert.Equal(t, "/calendars/user/work/evt-1.ics", objects[0].Href)
	assert.Equal(t, `"etag-1"`, objects[0].ETag)
	assert.Contains(t, objects[0].Data, "BEGIN:VCALENDAR")

	// Etag-only entry: data stays empty, entry is kept.
	assert.Equal(t, `"etag-2"`, objects[1].ETag)
	assert.Empty(t, objects[1].Data)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name string
		prop string
		want string
	}{
		{
			name: "getctag preferred",
			prop: `<cs:getctag>ctag-7</cs:getctag><d:sync-token>sync-9</d:sync-token>`,
			want: "ctag-7",
		},
		{
			name: "sync-token fallback",
			prop: `<d:sync-token>sync-9</d:sync-token>`,
			want: "sync-9",
		},
		{
			name: "neither",
			prop: `<d:displayname>Work</d:displayname>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat>
      <d:prop>` + tt.prop + `</d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

			token, err := ParseToken([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestParseIgnoresFailedPropstats(t *testing.T) {
	body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/cal/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop>
        <d:displayname>Should Not Appear</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	cols, err := ParseCollections([]byte(body), "https://dav.example.com/", KindCalendar, nil)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "Untitled", cols[0].DisplayName)
}
