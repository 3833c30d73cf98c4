package davclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/cache"
	davxml "github.com/ShiftyMcCool/clowd-dav-sub000/internal/xml"
	"github.com/ShiftyMcCool/clowd-dav-sub000/queue"
	"github.com/ShiftyMcCool/clowd-dav-sub000/vault"
)

// EngineOptions configures the sync engine.
type EngineOptions struct {
	Config clowddav.Config

	// StateDir holds the snapshot cache, the pending-operation log and the
	// credential vault.
	StateDir string

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Engine is the surface exposed to the UI/bootstrap layer: discovery, CRUD,
// offline queueing, cached reads and credential storage. The engine starts
// offline; the host signals connectivity with SetOnline, and the
// offline-to-online transition drains the pending queue.
type Engine struct {
	calendars *CalendarService
	contacts  *ContactService
	cache     *cache.Store
	queue     *queue.Queue
	drainer   *queue.Drainer
	vault     *vault.Vault
	logger    *slog.Logger

	mu     sync.Mutex
	collMu map[string]*sync.Mutex
}

// NewEngine wires services, cache, queue and vault for one account.
func NewEngine(opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cal, con, err := NewServices(Options{
		BaseURL:    opts.Config.BaseURL,
		Username:   opts.Config.Username,
		Password:   opts.Config.Password,
		HTTPClient: opts.HTTPClient,
		Timeout:    opts.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}

	store, err := cache.Open(filepath.Join(opts.StateDir, "cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	q, err := queue.Open(filepath.Join(opts.StateDir, "pending.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}

	e := &Engine{
		calendars: cal,
		contacts:  con,
		cache:     store,
		queue:     q,
		vault:     vault.New(filepath.Join(opts.StateDir, "credentials.json")),
		logger:    logger,
		collMu:    make(map[string]*sync.Mutex),
	}
	e.drainer = queue.NewDrainer(q, e, logger)
	return e, nil
}

// collectionLock serializes mutations per collection, so a queued stale
// write cannot interleave with a fresh read of the same collection.
func (e *Engine) collectionLock(collectionURL string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.collMu[collectionURL]
	if !ok {
		mu = &sync.Mutex{}
		e.collMu[collectionURL] = mu
	}
	return mu
}

// Online reports the last connectivity state signalled by the host.
func (e *Engine) Online() bool { return e.drainer.Online() }

// SetOnline records a connectivity transition; going online triggers one
// drain of the pending queue.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.drainer.SetOnline(ctx, online)
}

// Collection-list snapshots live under namespaced cache keys so they never
// collide with per-collection item snapshots.
func calendarsKey(s *CalendarService) string { return "calendars:" + s.core.base.String() }

func addressBooksKey(s *ContactService) string { return "addressbooks:" + s.core.base.String() }

func marshalItems[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func unmarshalItems[T any](items []json.RawMessage) []T {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

// DiscoverCalendars lists the account's calendars, refreshing the cached
// collection list on success. Offline, the cached list is served.
func (e *Engine) DiscoverCalendars(ctx context.Context) ([]clowddav.Calendar, error) {
	key := calendarsKey(e.calendars)
	if !e.Online() {
		if snap, ok := e.cache.Get(key).Get(); ok {
			return unmarshalItems[clowddav.Calendar](snap.Items), nil
		}
		return nil, fmt.Errorf("discover calendars: %w", clowddav.ErrNetwork)
	}

	calendars, err := e.calendars.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if items, err := marshalItems(calendars); err == nil {
		if err := e.cache.Put(key, items, ""); err != nil {
			e.logger.Warn("failed to cache calendar list", "error", err)
		}
	}
	return calendars, nil
}

// DiscoverAddressBooks lists the account's address books; same caching
// policy as DiscoverCalendars.
func (e *Engine) DiscoverAddressBooks(ctx context.Context) ([]clowddav.AddressBook, error) {
	key := addressBooksKey(e.contacts)
	if !e.Online() {
		if snap, ok := e.cache.Get(key).Get(); ok {
			return unmarshalItems[clowddav.AddressBook](snap.Items), nil
		}
		return nil, fmt.Errorf("discover address books: %w", clowddav.ErrNetwork)
	}

	books, err := e.contacts.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if items, err := marshalItems(books); err == nil {
		if err := e.cache.Put(key, items, ""); err != nil {
			e.logger.Warn("failed to cache address book list", "error", err)
		}
	}
	return books, nil
}

// ListEvents returns the calendar's events within the range. Online, the
// collection token is checked first: an unchanged token serves the cached
// snapshot without refetching. Offline, the snapshot is filtered locally.
func (e *Engine) ListEvents(ctx context.Context, calendar clowddav.Calendar, rng *clowddav.DateRange) ([]clowddav.CalendarEvent, error) {
	if !e.Online() {
		snap, ok := e.cache.Get(calendar.URL).Get()
		if !ok {
			return nil, fmt.Errorf("list events: %w", clowddav.ErrNetwork)
		}
		return filterEvents(unmarshalItems[clowddav.CalendarEvent](snap.Items), rng), nil
	}

	token, err := e.calendars.CollectionToken(ctx, calendar)
	if err != nil {
		e.logger.Debug("collection token unavailable", "calendar", calendar.URL, "error", err)
		token = ""
	}
	if token != "" {
		if snap, ok := e.cache.Get(calendar.URL).Get(); ok && snap.CollectionEtag == token {
			e.logger.Debug("collection unchanged, serving cache", "calendar", calendar.URL)
			return filterEvents(unmarshalItems[clowddav.CalendarEvent](snap.Items), rng), nil
		}
	}

	// Full fetch replaces the snapshot wholesale; the range filter applies
	// only to the returned view so the cache stays complete.
	events, err := e.calendars.ListEvents(ctx, calendar, nil)
	if err != nil {
		return nil, err
	}
	if items, err := marshalItems(events); err == nil {
		if err := e.cache.Put(calendar.URL, items, token); err != nil {
			e.logger.Warn("failed to cache events", "calendar", calendar.URL, "error", err)
		}
	}
	return filterEvents(events, rng), nil
}

func filterEvents(events []clowddav.CalendarEvent, rng *clowddav.DateRange) []clowddav.CalendarEvent {
	if rng == nil {
		return events
	}
	out := make([]clowddav.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if rng.Overlaps(ev.Start, ev.End) {
			out = append(out, ev)
		}
	}
	return out
}

// ListContacts returns the address book's contacts with the same token
// shortcut and caching policy as ListEvents.
func (e *Engine) ListContacts(ctx context.Context, book clowddav.AddressBook) ([]clowddav.Contact, error) {
	if !e.Online() {
		snap, ok := e.cache.Get(book.URL).Get()
		if !ok {
			return nil, fmt.Errorf("list contacts: %w", clowddav.ErrNetwork)
		}
		return unmarshalItems[clowddav.Contact](snap.Items), nil
	}

	token, err := e.contacts.CollectionToken(ctx, book)
	if err != nil {
		token = ""
	}
	if token != "" {
		if snap, ok := e.cache.Get(book.URL).Get(); ok && snap.CollectionEtag == token {
			return unmarshalItems[clowddav.Contact](snap.Items), nil
		}
	}

	contacts, err := e.contacts.ListContacts(ctx, book)
	if err != nil {
		return nil, err
	}
	if items, err := marshalItems(contacts); err == nil {
		if err := e.cache.Put(book.URL, items, token); err != nil {
			e.logger.Warn("failed to cache contacts", "book", book.URL, "error", err)
		}
	}
	return contacts, nil
}

// eventPayload is the queued form of an event mutation.
type eventPayload struct {
	Calendar clowddav.Calendar      `json:"calendar"`
	Event    clowddav.CalendarEvent `json:"event"`
}

// contactPayload is the queued form of a contact mutation.
type contactPayload struct {
	Book    clowddav.AddressBook `json:"addressBook"`
	Contact clowddav.Contact     `json:"contact"`
}

func (e *Engine) enqueue(opType clowddav.OpType, kind clowddav.ResourceKind, resourceURL string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to queue operation: %w", err)
	}
	if err := e.queue.Enqueue(clowddav.PendingOperation{
		Type:        opType,
		Resource:    kind,
		ResourceURL: resourceURL,
		Payload:     data,
	}); err != nil {
		return fmt.Errorf("failed to queue operation: %w", err)
	}
	e.logger.Info("queued offline operation", "type", opType, "resource", kind, "url", resourceURL)
	return clowddav.ErrOffline
}

// CreateEvent creates the event remotely, or queues it when offline
// (returning ErrOffline after the operation is durably recorded).
func (e *Engine) CreateEvent(ctx context.Context, calendar clowddav.Calendar, event *clowddav.CalendarEvent) error {
	if !e.Online() {
		ensureUID(&event.UID)
		event.CalendarURL = calendar.URL
		return e.enqueue(clowddav.OpCreate, clowddav.ResourceEvent,
			objectURL(calendar.URL, event.UID, ".ics"),
			eventPayload{Calendar: calendar, Event: *event})
	}

	mu := e.collectionLock(calendar.URL)
	mu.Lock()
	defer mu.Unlock()
	return e.calendars.CreateEvent(ctx, calendar, event)
}

// UpdateEvent updates the event remotely, or queues the update offline.
func (e *Engine) UpdateEvent(ctx context.Context, event *clowddav.CalendarEvent) error {
	if event.ETag == "" {
		return fmt.Errorf("update event: %w", clowddav.ErrMissingETag)
	}
	if !e.Online() {
		return e.enqueue(clowddav.OpUpdate, clowddav.ResourceEvent,
			objectURL(event.CalendarURL, event.UID, ".ics"),
			eventPayload{Event: *event})
	}

	mu := e.collectionLock(event.CalendarURL)
	mu.Lock()
	defer mu.Unlock()
	return e.calendars.UpdateEvent(ctx, event)
}

// DeleteEvent deletes the event remotely, or queues the delete offline.
func (e *Engine) DeleteEvent(ctx context.Context, event *clowddav.CalendarEvent) error {
	if !e.Online() {
		return e.enqueue(clowddav.OpDelete, clowddav.ResourceEvent,
			objectURL(event.CalendarURL, event.UID, ".ics"),
			eventPayload{Event: *event})
	}

	mu := e.collectionLock(event.CalendarURL)
	mu.Lock()
	defer mu.Unlock()
	return e.calendars.DeleteEvent(ctx, event)
}

// CreateContact creates the contact remotely, or queues it when offline.
func (e *Engine) CreateContact(ctx context.Context, book clowddav.AddressBook, contact *clowddav.Contact) error {
	if !e.Online() {
		ensureUID(&contact.UID)
		contact.AddressBookURL = book.URL
		return e.enqueue(clowddav.OpCreate, clowddav.ResourceContact,
			objectURL(book.URL, contact.UID, ".vcf"),
			contactPayload{Book: book, Contact: *contact})
	}

	mu := e.collectionLock(book.URL)
	mu.Lock()
	defer mu.Unlock()
	return e.contacts.CreateContact(ctx, book, contact)
}

// UpdateContact updates the contact remotely, or queues the update offline.
func (e *Engine) UpdateContact(ctx context.Context, contact *clowddav.Contact) error {
	if contact.ETag == "" {
		return fmt.Errorf("update contact: %w", clowddav.ErrMissingETag)
	}
	if !e.Online() {
		return e.enqueue(clowddav.OpUpdate, clowddav.ResourceContact,
			objectURL(contact.AddressBookURL, contact.UID, ".vcf"),
			contactPayload{Contact: *contact})
	}

	mu := e.collectionLock(contact.AddressBookURL)
	mu.Lock()
	defer mu.Unlock()
	return e.contacts.UpdateContact(ctx, contact)
}

// DeleteContact deletes the contact remotely, or queues the delete offline.
func (e *Engine) DeleteContact(ctx context.Context, contact *clowddav.Contact) error {
	if !e.Online() {
		return e.enqueue(clowddav.OpDelete, clowddav.ResourceContact,
			objectURL(contact.AddressBookURL, contact.UID, ".vcf"),
			contactPayload{Contact: *contact})
	}

	mu := e.collectionLock(contact.AddressBookURL)
	mu.Lock()
	defer mu.Unlock()
	return e.contacts.DeleteContact(ctx, contact)
}

// CreateCalendar, DeleteCalendar and UpdateCalendarProperties manage
// calendar collections; collection management is online-only.
func (e *Engine) CreateCalendar(ctx context.Context, displayName, color string) (clowddav.Calendar, error) {
	return e.calendars.CreateCalendar(ctx, displayName, color)
}

func (e *Engine) DeleteCalendar(ctx context.Context, calendar clowddav.Calendar) error {
	return e.calendars.DeleteCalendar(ctx, calendar)
}

func (e *Engine) UpdateCalendarProperties(ctx context.Context, calendar clowddav.Calendar) error {
	return e.calendars.UpdateCalendarProperties(ctx, calendar)
}

// CreateAddressBook, DeleteAddressBook and UpdateAddressBookProperties
// manage address-book collections; online-only.
func (e *Engine) CreateAddressBook(ctx context.Context, displayName string) (clowddav.AddressBook, error) {
	return e.contacts.CreateAddressBook(ctx, displayName)
}

func (e *Engine) DeleteAddressBook(ctx context.Context, book clowddav.AddressBook) error {
	return e.contacts.DeleteAddressBook(ctx, book)
}

func (e *Engine) UpdateAddressBookProperties(ctx context.Context, book clowddav.AddressBook) error {
	return e.contacts.UpdateAddressBookProperties(ctx, book)
}

// EnqueueOffline records an externally-built pending operation.
func (e *Engine) EnqueueOffline(op clowddav.PendingOperation) error {
	return e.queue.Enqueue(op)
}

// DrainPending replays queued operations now; safe to call concurrently.
func (e *Engine) DrainPending(ctx context.Context) error {
	return e.drainer.Drain(ctx)
}

// PendingCount reports the number of queued operations without draining.
func (e *Engine) PendingCount() int {
	return e.queue.PendingCount()
}

// Replay re-invokes the service operation a queued mutation recorded. It
// implements queue.Replayer; a replayed operation either fully succeeds or
// is left in the queue unaltered.
func (e *Engine) Replay(ctx context.Context, op clowddav.PendingOperation) error {
	switch op.Resource {
	case clowddav.ResourceEvent:
		var p eventPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("corrupt event payload: %w", err)
		}
		mu := e.collectionLock(p.Event.CalendarURL)
		mu.Lock()
		defer mu.Unlock()
		switch op.Type {
		case clowddav.OpCreate:
			return e.calendars.CreateEvent(ctx, p.Calendar, &p.Event)
		case clowddav.OpUpdate:
			return e.calendars.UpdateEvent(ctx, &p.Event)
		case clowddav.OpDelete:
			return e.calendars.DeleteEvent(ctx, &p.Event)
		}
	case clowddav.ResourceContact:
		var p contactPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("corrupt contact payload: %w", err)
		}
		mu := e.collectionLock(p.Contact.AddressBookURL)
		mu.Lock()
		defer mu.Unlock()
		switch op.Type {
		case clowddav.OpCreate:
			return e.contacts.CreateContact(ctx, p.Book, &p.Contact)
		case clowddav.OpUpdate:
			return e.contacts.UpdateContact(ctx, &p.Contact)
		case clowddav.OpDelete:
			return e.contacts.DeleteContact(ctx, &p.Contact)
		}
	}
	return fmt.Errorf("unknown pending operation %s/%s", op.Type, op.Resource)
}

// CachedEvents serves the last snapshot for a calendar without touching
// the network.
func (e *Engine) CachedEvents(calendarURL string) ([]clowddav.CalendarEvent, bool) {
	snap, ok := e.cache.Get(calendarURL).Get()
	if !ok {
		return nil, false
	}
	return unmarshalItems[clowddav.CalendarEvent](snap.Items), true
}

// CachedContacts serves the last snapshot for an address book.
func (e *Engine) CachedContacts(addressBookURL string) ([]clowddav.Contact, bool) {
	snap, ok := e.cache.Get(addressBookURL).Get()
	if !ok {
		return nil, false
	}
	return unmarshalItems[clowddav.Contact](snap.Items), true
}

// CacheStats reports cache diagnostics without mutating state.
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// ClearCache drops every snapshot.
func (e *Engine) ClearCache() error { return e.cache.Clear() }

// StoreCredentials, RetrieveCredentials, HasCredentials and
// ClearCredentials delegate to the vault.
func (e *Engine) StoreCredentials(config clowddav.Config, masterSecret string) error {
	return e.vault.Store(config, masterSecret)
}

func (e *Engine) RetrieveCredentials(masterSecret string) (clowddav.Config, error) {
	return e.vault.Retrieve(masterSecret)
}

func (e *Engine) HasCredentials() bool { return e.vault.Has() }

func (e *Engine) ClearCredentials() error { return e.vault.Clear() }

// TestResult reports a connection probe.
type TestResult struct {
	OK           bool
	ProviderName string
	Err          error
}

// TestConnection probes the server: provider detection, an OPTIONS
// capability sniff, then a depth-0 PROPFIND of the calendar home.
func TestConnection(ctx context.Context, config clowddav.Config, logger *slog.Logger) TestResult {
	if errs := Validate(config); len(errs) > 0 {
		return TestResult{Err: fmt.Errorf("%w: %s", clowddav.ErrNotConfigured, strings.Join(errs, "; "))}
	}

	provider, ok := DetectProvider(config.BaseURL).Get()
	if !ok {
		return TestResult{Err: clowddav.ErrProviderNotDetected}
	}

	svc, err := NewCalendarService(Options{
		BaseURL:  config.BaseURL,
		Username: config.Username,
		Password: config.Password,
		Provider: provider,
		Logger:   logger,
	})
	if err != nil {
		return TestResult{ProviderName: provider.Name, Err: err}
	}

	home := provider.DiscoveryURL(svc.core.base, davxml.KindCalendar, config.Username)
	dav, err := svc.core.wrapper.DoOPTIONS(ctx, home)
	if err != nil {
		return TestResult{ProviderName: provider.Name, Err: mapError("test connection", err)}
	}
	if dav != "" && !strings.Contains(dav, "calendar-access") && !strings.Contains(dav, "addressbook") {
		svc.core.logger.Warn("server advertises no CalDAV/CardDAV capability", "dav", dav)
	}

	body := davxml.BuildPropfind("resourcetype", "displayname")
	if _, err := svc.core.wrapper.DoPROPFIND(ctx, home, 0, body); err != nil {
		return TestResult{ProviderName: provider.Name, Err: mapError("test connection", err)}
	}

	return TestResult{OK: true, ProviderName: provider.Name}
}

// Validate checks a connection config, returning one message per problem.
func Validate(config clowddav.Config) []string {
	var errs []string
	if config.BaseURL == "" {
		errs = append(errs, "server URL is required")
	} else if u, err := url.Parse(config.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "server URL must be a valid http(s) URL")
	}
	if config.Username == "" {
		errs = append(errs, "username is required")
	}
	if config.Password == "" {
		errs = append(errs, "password is required")
	}
	return errs
}

func ensureUID(uid *string) {
	if *uid == "" {
		*uid = uuid.New().String()
	}
}
