package davclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/codec"
	davxml "github.com/ShiftyMcCool/clowd-dav-sub000/internal/xml"
)

const icalContentType = "text/calendar; charset=utf-8"

// objectURL computes the deterministic resource URL for an item inside a
// collection: the item's uid plus the format extension.
func objectURL(collectionURL, uid, ext string) string {
	return strings.TrimSuffix(collectionURL, "/") + "/" + url.PathEscape(uid) + ext
}

// Discover finds the account's calendar collections with a depth-1 PROPFIND
// against the provider's discovery URL.
func (s *CalendarService) Discover(ctx context.Context) ([]clowddav.Calendar, error) {
	if err := s.core.ready(); err != nil {
		return nil, fmt.Errorf("discover calendars: %w", err)
	}

	discoveryURL := s.core.provider.DiscoveryURL(s.core.base, davxml.KindCalendar, s.core.username)
	body := davxml.BuildPropfind("resourcetype", "displayname", "calendar-color", "getctag")

	raw, err := s.core.wrapper.DoPROPFIND(ctx, discoveryURL, 1, body)
	if err != nil {
		return nil, mapError("discover calendars", err)
	}

	cols, err := davxml.ParseCollections(raw, discoveryURL, davxml.KindCalendar, s.core.logger)
	if err != nil {
		return nil, fmt.Errorf("discover calendars: %w: %v", clowddav.ErrParse, err)
	}

	calendars := make([]clowddav.Calendar, 0, len(cols))
	for _, col := range cols {
		calendars = append(calendars, clowddav.Calendar{
			URL:         col.URL,
			DisplayName: col.DisplayName,
			Color:       col.Color,
		})
	}
	s.core.logger.Debug("calendar discovery complete", "count", len(calendars))
	return calendars, nil
}

// ListEvents fetches the calendar's events via a calendar-query REPORT. A
// non-nil range narrows the query with a time-range filter. Items that fail
// to decode are skipped, not fatal to the batch.
func (s *CalendarService) ListEvents(ctx context.Context, calendar clowddav.Calendar, rng *clowddav.DateRange) ([]clowddav.CalendarEvent, error) {
	if err := s.core.ready(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	query, err := buildCalendarQuery(rng)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	raw, err := s.core.wrapper.DoREPORT(ctx, calendar.URL, 1, query)
	if err != nil {
		return nil, mapError("list events", err)
	}

	objects, err := davxml.ParseObjects(raw, s.core.logger)
	if err != nil {
		return nil, fmt.Errorf("list events: %w: %v", clowddav.ErrParse, err)
	}

	var events []clowddav.CalendarEvent
	for _, obj := range objects {
		if obj.Data == "" {
			continue
		}
		decoded, err := codec.DecodeEvents([]byte(obj.Data), s.core.logger)
		if err != nil {
			s.core.logger.Warn("skipping undecodable calendar object",
				"href", obj.Href, "error", err)
			continue
		}
		for _, ev := range decoded {
			ev.ETag = obj.ETag
			ev.CalendarURL = calendar.URL
			events = append(events, ev)
		}
	}
	return events, nil
}

// CreateEvent PUTs a new event at its deterministic URL. A missing UID is
// assigned. On success the event carries the server etag when one was
// returned.
func (s *CalendarService) CreateEvent(ctx context.Context, calendar clowddav.Calendar, event *clowddav.CalendarEvent) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if event.UID == "" {
		event.UID = uuid.New().String()
	}

	data, err := codec.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	target := objectURL(calendar.URL, event.UID, ".ics")
	etag, err := s.core.wrapper.DoPUT(ctx, target, icalContentType, "", true, data)
	if err != nil {
		return mapError("create event", err)
	}

	event.ETag = etag
	event.CalendarURL = calendar.URL
	return nil
}

// UpdateEvent PUTs the event conditionally on its last-known etag. A 412
// surfaces as ErrPreconditionFailed and the event is left unmodified.
func (s *CalendarService) UpdateEvent(ctx context.Context, event *clowddav.CalendarEvent) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if event.ETag == "" {
		return fmt.Errorf("update event: %w", clowddav.ErrMissingETag)
	}
	if event.CalendarURL == "" {
		return fmt.Errorf("update event: %w: event has no calendar URL", clowddav.ErrNotConfigured)
	}

	data, err := codec.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	target := objectURL(event.CalendarURL, event.UID, ".ics")
	etag, err := s.core.wrapper.DoPUT(ctx, target, icalContentType, event.ETag, false, data)
	if err != nil {
		return mapError("update event", err)
	}

	if etag != "" {
		event.ETag = etag
	}
	return nil
}

// DeleteEvent removes the event, conditionally on its etag when present.
// Already-gone items (404) count as success.
func (s *CalendarService) DeleteEvent(ctx context.Context, event *clowddav.CalendarEvent) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if event.CalendarURL == "" {
		return fmt.Errorf("delete event: %w: event has no calendar URL", clowddav.ErrNotConfigured)
	}

	target := objectURL(event.CalendarURL, event.UID, ".ics")
	if err := s.core.wrapper.DoDELETE(ctx, target, event.ETag); err != nil {
		return mapError("delete event", err)
	}
	return nil
}

// CreateCalendar makes a new calendar collection via MKCALENDAR. The
// collection path is a fresh UUID segment, never derived from the display
// name, so two clients creating "Work" concurrently cannot collide.
func (s *CalendarService) CreateCalendar(ctx context.Context, displayName, color string) (clowddav.Calendar, error) {
	if err := s.core.ready(); err != nil {
		return clowddav.Calendar{}, fmt.Errorf("create calendar: %w", err)
	}

	home := s.core.provider.DiscoveryURL(s.core.base, davxml.KindCalendar, s.core.username)
	target := strings.TrimSuffix(home, "/") + "/" + uuid.New().String() + "/"

	body := davxml.BuildMkcalendar(displayName, color)
	if err := s.core.wrapper.DoMKCALENDAR(ctx, target, body); err != nil {
		return clowddav.Calendar{}, mapError("create calendar", err)
	}

	return clowddav.Calendar{URL: target, DisplayName: displayName, Color: color}, nil
}

// DeleteCalendar removes a calendar collection.
func (s *CalendarService) DeleteCalendar(ctx context.Context, calendar clowddav.Calendar) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	if err := s.core.wrapper.DoDELETE(ctx, calendar.URL, ""); err != nil {
		return mapError("delete calendar", err)
	}
	return nil
}

// UpdateCalendarProperties PROPPATCHes the collection's display name and
// color.
func (s *CalendarService) UpdateCalendarProperties(ctx context.Context, calendar clowddav.Calendar) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("update calendar properties: %w", err)
	}

	body := davxml.BuildProppatch(calendar.DisplayName, calendar.Color)
	if err := s.core.wrapper.DoPROPPATCH(ctx, calendar.URL, body); err != nil {
		return mapError("update calendar properties", err)
	}
	return nil
}

// CollectionToken reads the calendar's change token (getctag, falling back
// to sync-token) for cheap "nothing changed" detection.
func (s *CalendarService) CollectionToken(ctx context.Context, calendar clowddav.Calendar) (string, error) {
	if err := s.core.ready(); err != nil {
		return "", fmt.Errorf("get collection token: %w", err)
	}

	body := davxml.BuildPropfind("getctag", "sync-token")
	raw, err := s.core.wrapper.DoPROPFIND(ctx, calendar.URL, 0, body)
	if err != nil {
		return "", mapError("get collection token", err)
	}

	token, err := davxml.ParseToken(raw)
	if err != nil {
		return "", fmt.Errorf("get collection token: %w: %v", clowddav.ErrParse, err)
	}
	return token, nil
}
