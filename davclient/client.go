// Package davclient implements the CalDAV/CardDAV resource services:
// collection discovery, conflict-aware CRUD for events and contacts, and
// the Engine facade that adds offline queueing, caching and credentials.
package davclient

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/internal/httpclient"
)

const defaultTimeout = 30 * time.Second

// Options configures the resource services for one account.
type Options struct {
	BaseURL  string
	Username string
	Password string

	// Provider overrides detection. When nil the registry is consulted;
	// operations fail with ErrProviderNotDetected if nothing matches.
	Provider *Provider

	// HTTPClient overrides the default client. Its transport is wrapped
	// with Basic authentication.
	HTTPClient *http.Client

	// Timeout bounds each network call. Zero means 30s.
	Timeout time.Duration

	Logger *slog.Logger
}

// core is the shared wiring of both resource services: transport, provider
// and account identity. It is immutable after construction, so independent
// services may run concurrently against one core.
type core struct {
	wrapper  httpclient.Wrapper
	provider *Provider
	base     *url.URL
	username string
	logger   *slog.Logger
}

func newCore(opts Options) (*core, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	provider := opts.Provider
	if provider == nil {
		provider = DetectProvider(opts.BaseURL).OrElse(nil)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = httpclient.NewBasicAuthTransport(opts.Username, opts.Password, transport, logger)

	var rewrite httpclient.RewriteFunc
	if provider != nil {
		rewrite = provider.Rewrite
	}
	wrapper, err := httpclient.NewWrapper(client, *base, rewrite, logger)
	if err != nil {
		return nil, err
	}

	return &core{
		wrapper:  wrapper,
		provider: provider,
		base:     base,
		username: opts.Username,
		logger:   logger,
	}, nil
}

// ready checks the preconditions every remote operation needs. Failures
// here are caller misuse, distinct from remote errors.
func (c *core) ready() error {
	if c.username == "" {
		return clowddav.ErrNotConfigured
	}
	if c.provider == nil {
		return clowddav.ErrProviderNotDetected
	}
	return nil
}

// CalendarService orchestrates discovery and CRUD for calendars.
type CalendarService struct {
	core *core
}

// ContactService orchestrates discovery and CRUD for address books.
type ContactService struct {
	core *core
}

// NewCalendarService creates a standalone calendar service.
func NewCalendarService(opts Options) (*CalendarService, error) {
	c, err := newCore(opts)
	if err != nil {
		return nil, err
	}
	return &CalendarService{core: c}, nil
}

// NewContactService creates a standalone contact service.
func NewContactService(opts Options) (*ContactService, error) {
	c, err := newCore(opts)
	if err != nil {
		return nil, err
	}
	return &ContactService{core: c}, nil
}

// NewServices creates both services on one shared core, so they reuse the
// same transport and provider.
func NewServices(opts Options) (*CalendarService, *ContactService, error) {
	c, err := newCore(opts)
	if err != nil {
		return nil, nil, err
	}
	return &CalendarService{core: c}, &ContactService{core: c}, nil
}
