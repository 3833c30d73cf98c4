package davclient

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/mo"

	"github.com/ShiftyMcCool/clowd-dav-sub000/internal/httpclient"
	davxml "github.com/ShiftyMcCool/clowd-dav-sub000/internal/xml"
)

// Provider captures the discovery path conventions of one known server
// vendor and, optionally, a per-request rewrite hook for vendor quirks.
type Provider struct {
	Name string

	// CalendarPath and AddressBookPath are path templates; {username} is
	// substituted with the configured account name.
	CalendarPath    string
	AddressBookPath string

	// Match reports whether this provider handles the given base URL.
	Match func(u *url.URL) bool

	// Rewrite, when set, adjusts outgoing requests just before they are
	// sent. Nil means no customization.
	Rewrite httpclient.RewriteFunc
}

// DiscoveryURL combines the base URL with the provider's path template for
// the requested collection kind. When the base URL path already contains
// the template segment it is used as-is, so explicit DAV roots are never
// doubled up.
func (p *Provider) DiscoveryURL(base *url.URL, kind davxml.Kind, username string) string {
	tmpl := p.CalendarPath
	if kind == davxml.KindAddressBook {
		tmpl = p.AddressBookPath
	}
	seg := strings.ReplaceAll(tmpl, "{username}", url.PathEscape(username))

	if seg == "/" || strings.Contains(base.Path, seg) {
		return base.String()
	}
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + seg
	return u.String()
}

// defaultProviders is a priority list: the first match wins, so specific
// vendors come before the generic fallback.
var defaultProviders = []*Provider{
	{
		Name:            "icloud",
		CalendarPath:    "/{username}/calendars/",
		AddressBookPath: "/{username}/carddavhome/card/",
		Match: func(u *url.URL) bool {
			return strings.HasSuffix(u.Hostname(), "icloud.com")
		},
	},
	{
		Name:            "google",
		CalendarPath:    "/caldav/v2/{username}/user/",
		AddressBookPath: "/carddav/v1/principals/{username}/lists/default/",
		Match: func(u *url.URL) bool {
			host := u.Hostname()
			return host == "apidata.googleusercontent.com" || strings.HasSuffix(host, "google.com")
		},
	},
	{
		Name:            "fastmail",
		CalendarPath:    "/dav/calendars/user/{username}/",
		AddressBookPath: "/dav/addressbooks/user/{username}/",
		Match: func(u *url.URL) bool {
			return strings.HasSuffix(u.Hostname(), "fastmail.com")
		},
	},
	{
		Name:            "nextcloud",
		CalendarPath:    "/remote.php/dav/calendars/{username}/",
		AddressBookPath: "/remote.php/dav/addressbooks/users/{username}/",
		Match: func(u *url.URL) bool {
			return strings.Contains(u.Hostname(), "nextcloud") || strings.Contains(u.Path, "/remote.php")
		},
		// Nextcloud serves DAV only below /remote.php/dav; requests built
		// from server-relative hrefs may lack the prefix.
		Rewrite: func(req *http.Request) error {
			if !strings.HasPrefix(req.URL.Path, "/remote.php") {
				req.URL.Path = "/remote.php/dav" + req.URL.Path
			}
			return nil
		},
	},
	{
		Name:            "radicale",
		CalendarPath:    "/{username}/",
		AddressBookPath: "/{username}/",
		Match: func(u *url.URL) bool {
			return strings.Contains(u.Hostname(), "radicale") || strings.Contains(u.Path, "/radicale") || strings.Contains(u.Path, "/dav.php")
		},
	},
	{
		// Generic DAV server: only matches when the base URL already points
		// at an explicit collection root. Discovery then uses the base URL
		// unchanged.
		Name:            "generic",
		CalendarPath:    "/",
		AddressBookPath: "/",
		Match: func(u *url.URL) bool {
			return u.Path != "" && u.Path != "/"
		},
	},
}

// DetectProvider matches the base URL against the registry of known server
// conventions. Order matters; the registry is a priority list.
func DetectProvider(baseURL string) mo.Option[*Provider] {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return mo.None[*Provider]()
	}
	for _, p := range defaultProviders {
		if p.Match(u) {
			return mo.Some(p)
		}
	}
	return mo.None[*Provider]()
}
