package davclient

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	davxml "github.com/ShiftyMcCool/clowd-dav-sub000/internal/xml"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "icloud", baseURL: "https://caldav.icloud.com/", want: "icloud"},
		{name: "google", baseURL: "https://apidata.googleusercontent.com/", want: "google"},
		{name: "fastmail", baseURL: "https://caldav.fastmail.com/", want: "fastmail"},
		{name: "nextcloud by host", baseURL: "https://nextcloud.example.com/", want: "nextcloud"},
		{name: "nextcloud by path", baseURL: "https://cloud.example.com/remote.php/dav/", want: "nextcloud"},
		{name: "radicale", baseURL: "https://dav.example.com/radicale/", want: "radicale"},
		{name: "generic with explicit root", baseURL: "https://dav.example.com/calendars/alice/", want: "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := DetectProvider(tt.baseURL).Get()
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestDetectProviderNoMatch(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "bare host without path", baseURL: "https://dav.example.com/"},
		{name: "unparsable", baseURL: "://nope"},
		{name: "empty", baseURL: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, DetectProvider(tt.baseURL).IsAbsent())
		})
	}
}

func TestDiscoveryURL(t *testing.T) {
	icloud := defaultProviders[0]
	require.Equal(t, "icloud", icloud.Name)

	base, err := url.Parse("https://caldav.icloud.com")
	require.NoError(t, err)
	got := icloud.DiscoveryURL(base, davxml.KindCalendar, "12345")
	assert.Equal(t, "https://caldav.icloud.com/12345/calendars/", got)

	// A base URL that already contains the template segment is not doubled.
	base, err = url.Parse("https://caldav.icloud.com/12345/calendars/")
	require.NoError(t, err)
	got = icloud.DiscoveryURL(base, davxml.KindCalendar, "12345")
	assert.Equal(t, "https://caldav.icloud.com/12345/calendars/", got)
}

func TestDiscoveryURLGenericUsesBaseUnchanged(t *testing.T) {
	generic := defaultProviders[len(defaultProviders)-1]
	require.Equal(t, "generic", generic.Name)

	base, err := url.Parse("https://dav.example.com/calendars/alice/")
	require.NoError(t, err)
	got := generic.DiscoveryURL(base, davxml.KindCalendar, "alice")
	assert.Equal(t, "https://dav.example.com/calendars/alice/", got)
}

func TestDiscoveryURLEscapesUsername(t *testing.T) {
	fastmail := defaultProviders[2]
	require.Equal(t, "fastmail", fastmail.Name)

	base, err := url.Parse("https://caldav.fastmail.com")
	require.NoError(t, err)
	got := fastmail.DiscoveryURL(base, davxml.KindAddressBook, "alice@example.com")
	assert.Equal(t, "https://caldav.fastmail.com/dav/addressbooks/user/alice@example.com/", got)
}
