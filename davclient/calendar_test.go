package davclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

// newTestService points a calendar service at a test server. The path
// suffix makes the generic provider match.
func newTestService(t *testing.T, handler http.Handler) (*CalendarService, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := srv.URL + "/calendars/alice/"
	svc, err := NewCalendarService(Options{
		BaseURL:  base,
		Username: "alice",
		Password: "pw",
	})
	require.NoError(t, err)
	return svc, base
}

func TestDiscoverCalendars(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "1", r.Header.Get("Depth"))
		rw.WriteHeader(http.StatusMultiStatus)
		io.WriteString(rw, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/alice/work/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname>Work</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))

	calendars, err := svc.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, calendars, 1)
	assert.Equal(t, "Work", calendars[0].DisplayName)
	assert.Contains(t, calendars[0].URL, "/calendars/alice/work/")
}

func TestCreateEventAssignsUIDAndEtag(t *testing.T) {
	var gotIfNoneMatch, gotContentType string
	svc, base := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		gotContentType = r.Header.Get("Content-Type")
		rw.Header().Set("ETag", `"v1"`)
		rw.WriteHeader(http.StatusCreated)
	}))

	event := clowddav.CalendarEvent{
		Summary: "Standup",
		Start:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	err := svc.CreateEvent(context.Background(), clowddav.Calendar{URL: base}, &event)
	require.NoError(t, err)

	assert.NotEmpty(t, event.UID)
	assert.Equal(t, `"v1"`, event.ETag)
	assert.Equal(t, base, event.CalendarURL)
	assert.Equal(t, "*", gotIfNoneMatch)
	assert.Equal(t, icalContentType, gotContentType)
}

func TestUpdateEventConflictLeavesEventUntouched(t *testing.T) {
	svc, base := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"stale"`, r.Header.Get("If-Match"))
		rw.WriteHeader(http.StatusPreconditionFailed)
	}))

	event := clowddav.CalendarEvent{
		UID:         "evt-1",
		Summary:     "Standup",
		Start:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
		ETag:        `"stale"`,
		CalendarURL: base,
	}
	before := event

	err := svc.UpdateEvent(context.Background(), &event)
	assert.True(t, errors.Is(err, clowddav.ErrPreconditionFailed), "got %v", err)
	assert.Equal(t, before, event)
}

func TestUpdateEventRequiresEtag(t *testing.T) {
	svc, base := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	event := clowddav.CalendarEvent{
		UID:         "evt-1",
		Start:       time.Now(),
		End:         time.Now().Add(time.Hour),
		CalendarURL: base,
	}
	err := svc.UpdateEvent(context.Background(), &event)
	assert.True(t, errors.Is(err, clowddav.ErrMissingETag), "got %v", err)
}

func TestDeleteEventIdempotent(t *testing.T) {
	svc, base := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	}))

	event := clowddav.CalendarEvent{UID: "gone", CalendarURL: base}
	assert.NoError(t, svc.DeleteEvent(context.Background(), &event))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: clowddav.ErrAuthenticationFailed},
		{name: "forbidden", status: http.StatusForbidden, want: clowddav.ErrForbidden},
		{name: "not found", status: http.StatusNotFound, want: clowddav.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(tt.status)
			}))

			_, err := svc.Discover(context.Background())
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestServerErrorCarriesStatus(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	}))

	_, err := svc.Discover(context.Background())
	var srvErr *clowddav.ServerError
	require.True(t, errors.As(err, &srvErr), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, srvErr.StatusCode)
}

func TestNetworkErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/calendars/alice/"
	srv.Close()

	svc, err := NewCalendarService(Options{BaseURL: base, Username: "alice", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Discover(context.Background())
	assert.True(t, errors.Is(err, clowddav.ErrNetwork), "got %v", err)
}

func TestReadyPreconditions(t *testing.T) {
	svc, err := NewCalendarService(Options{BaseURL: "https://dav.example.com/calendars/x/", Username: ""})
	require.NoError(t, err)
	_, err = svc.Discover(context.Background())
	assert.True(t, errors.Is(err, clowddav.ErrNotConfigured), "got %v", err)

	// Bare host with no path: nothing in the registry matches.
	svc, err = NewCalendarService(Options{BaseURL: "https://dav.example.com/", Username: "alice"})
	require.NoError(t, err)
	_, err = svc.Discover(context.Background())
	assert.True(t, errors.Is(err, clowddav.ErrProviderNotDetected), "got %v", err)
}

func TestListEventsSkipsUndecodable(t *testing.T) {
	svc, base := newTestService(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "REPORT", r.Method)
		rw.WriteHeader(http.StatusMultiStatus)
		io.WriteString(rw, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/calendars/alice/work/evt-1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"e1"</d:getetag>
        <c:calendar-data>BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:evt-1
SUMMARY:Standup
DTSTAMP:20250310T090000Z
DTSTART:20250310T090000Z
DTEND:20250310T093000Z
END:VEVENT
END:VCALENDAR</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/alice/work/broken.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"e2"</d:getetag>
        <c:calendar-data>not icalendar at all</c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))

	cal := clowddav.Calendar{URL: base + "work/"}
	events, err := svc.ListEvents(context.Background(), cal, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].UID)
	assert.Equal(t, `"e1"`, events[0].ETag)
	assert.Equal(t, cal.URL, events[0].CalendarURL)
}
