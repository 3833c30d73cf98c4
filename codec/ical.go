// Package codec converts domain events and contacts to and from their wire
// formats (iCalendar, vCard). Encoding failures are fatal for the single
// record; decoding failures inside a batch are skipped, mirroring the
// multistatus parser's resilience policy.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

const prodID = "-//clowd-dav//NONSGML v1.0//EN"

// EncodeEvent emits a VCALENDAR containing exactly one VEVENT. DTSTAMP,
// CREATED and LAST-MODIFIED are stamped from the current time; all dates
// are written in UTC.
func EncodeEvent(event *clowddav.CalendarEvent) ([]byte, error) {
	if event.UID == "" {
		return nil, fmt.Errorf("%w: event has no UID", clowddav.ErrCodec)
	}
	if event.Start.IsZero() || event.End.IsZero() {
		return nil, fmt.Errorf("%w: event %q has no start/end", clowddav.ErrCodec, event.UID)
	}

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, event.UID)
	ev.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		ev.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ev.Props.SetText(ical.PropLocation, event.Location)
	}
	ev.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())

	now := time.Now().UTC()
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now)
	ev.Props.SetDateTime(ical.PropCreated, now)
	ev.Props.SetDateTime(ical.PropLastModified, now)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, ev.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%w: %v", clowddav.ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// DecodeEvents extracts every VEVENT from every calendar object in the
// stream. An event that fails to parse is skipped with a warning; only an
// unreadable stream fails the call.
func DecodeEvents(data []byte, logger *slog.Logger) ([]clowddav.CalendarEvent, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dec := ical.NewDecoder(bytes.NewReader(data))
	var events []clowddav.CalendarEvent
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(events) > 0 {
				logger.Warn("stopping event decode on malformed calendar object", "error", err)
				break
			}
			return nil, fmt.Errorf("%w: %v", clowddav.ErrCodec, err)
		}

		for _, ev := range cal.Events() {
			event, err := decodeEvent(ev)
			if err != nil {
				logger.Warn("skipping malformed event", "error", err)
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func decodeEvent(ev ical.Event) (clowddav.CalendarEvent, error) {
	uid, err := ev.Props.Text(ical.PropUID)
	if err != nil || strings.TrimSpace(uid) == "" {
		return clowddav.CalendarEvent{}, fmt.Errorf("event has no UID")
	}

	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		return clowddav.CalendarEvent{}, fmt.Errorf("event %q: bad DTSTART: %v", uid, err)
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil {
		return clowddav.CalendarEvent{}, fmt.Errorf("event %q: bad DTEND: %v", uid, err)
	}

	summary, _ := ev.Props.Text(ical.PropSummary)
	description, _ := ev.Props.Text(ical.PropDescription)
	location, _ := ev.Props.Text(ical.PropLocation)

	return clowddav.CalendarEvent{
		UID:         strings.TrimSpace(uid),
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start.UTC(),
		End:         end.UTC(),
	}, nil
}
