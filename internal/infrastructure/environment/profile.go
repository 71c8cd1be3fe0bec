// Package environment selects the backend profile for this deployment and
// probes it for reachability.
package environment

import (
	"net/url"
	"strings"
	"time"
)

// Profile is the backend configuration active for the process.
type Profile struct {
	Name         string        `json:"name"`
	APIBaseURL   string        `json:"apiBaseUrl"`
	WebsocketURL string        `json:"websocketUrl"`
	Timeout      time.Duration `json:"timeout"`
	CacheEnabled bool          `json:"cacheEnabled"`

	// Origin is scheme://host[:port] of the public URL the profile was
	// resolved from. Root-relative base URLs are joined against it.
	Origin string `json:"origin,omitempty"`
}

// Rule binds a profile to a hostname/port predicate. A rule matches when the
// hostname contains any of HostContains, or when Port equals the request port.
type Rule struct {
	HostContains []string
	Port         string
	Profile      Profile
}

// Matches reports whether the rule applies to hostname and port.
func (r Rule) Matches(hostname, port string) bool {
	for _, needle := range r.HostContains {
		if needle != "" && strings.Contains(hostname, needle) {
			return true
		}
	}
	return r.Port != "" && r.Port == port
}

// Table is an ordered rule list plus the profile used when nothing matches.
type Table struct {
	Rules   []Rule
	Default Profile
}

// DefaultTable returns the built-in environment table.
func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{
				HostContains: []string{"staging."},
				Profile: Profile{
					Name:         "staging",
					APIBaseURL:   "https://staging-api.zineinsight.com",
					WebsocketURL: "wss://staging-api.zineinsight.com/ws",
					Timeout:      15 * time.Second,
					CacheEnabled: true,
				},
			},
			{
				HostContains: []string{"zineinsight.com"},
				Profile: Profile{
					Name:         "production",
					APIBaseURL:   "https://api.zineinsight.com",
					WebsocketURL: "wss://api.zineinsight.com/ws",
					Timeout:      10 * time.Second,
					CacheEnabled: true,
				},
			},
			{
				Port: "9000",
				Profile: Profile{
					Name:         "dev-backend",
					APIBaseURL:   "http://localhost:8000",
					WebsocketURL: "ws://localhost:8000/ws",
					Timeout:      30 * time.Second,
					CacheEnabled: false,
				},
			},
			{
				HostContains: []string{"localhost", "127.0.0.1"},
				Profile: Profile{
					Name:         "local",
					APIBaseURL:   "http://localhost:5000",
					WebsocketURL: "ws://localhost:5000/ws",
					Timeout:      30 * time.Second,
					CacheEnabled: false,
				},
			},
		},
		Default: Profile{
			Name:         "default",
			APIBaseURL:   "/api",
			WebsocketURL: "/ws",
			Timeout:      15 * time.Second,
			CacheEnabled: true,
		},
	}
}

// Resolve returns the profile of the first matching rule, or the default.
func (t Table) Resolve(hostname, port string) Profile {
	for _, rule := range t.Rules {
		if rule.Matches(hostname, port) {
			return rule.Profile
		}
	}
	return t.Default
}

// Resolve evaluates the built-in table.
func Resolve(hostname, port string) Profile {
	return DefaultTable().Resolve(hostname, port)
}

// JoinBase joins a base URL and a path. Absolute paths pass through.
// Root-relative results are prefixed with the profile origin when known.
func (p Profile) JoinBase(base, path string) string {
	if isAbsolute(path) {
		return path
	}
	joined := strings.TrimRight(base, "/") + path
	if strings.HasPrefix(joined, "/") && p.Origin != "" {
		return strings.TrimRight(p.Origin, "/") + joined
	}
	return joined
}

// URL builds the full URL for an API endpoint.
func (p Profile) URL(endpoint string) string {
	return p.JoinBase(p.APIBaseURL, endpoint)
}

// WebsocketEndpoint returns an absolute ws(s) URL for the realtime feed.
func (p Profile) WebsocketEndpoint() string {
	if isAbsolute(p.WebsocketURL) || p.Origin == "" {
		return p.WebsocketURL
	}
	u, err := url.Parse(p.Origin)
	if err != nil {
		return p.WebsocketURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/") + p.WebsocketURL
}

func isAbsolute(raw string) bool {
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(raw, scheme) {
			return true
		}
	}
	return false
}
