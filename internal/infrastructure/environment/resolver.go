package environment

import (
	"fmt"
	"net/url"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
)

// Resolver picks the active profile from a public URL
type Resolver struct {
	table  Table
	logger *logging.ChanneledLogger
}

// NewResolver creates a resolver over the given table
func NewResolver(table Table, logger *logging.ChanneledLogger) *Resolver {
	return &Resolver{table: table, logger: logger}
}

// ResolveURL parses publicURL and resolves its hostname and port
func (r *Resolver) ResolveURL(publicURL string) (Profile, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid public URL %q: %w", publicURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Profile{}, fmt.Errorf("public URL %q must be absolute", publicURL)
	}

	profile := r.table.Resolve(u.Hostname(), u.Port())
	profile.Origin = u.Scheme + "://" + u.Host

	if r.logger != nil {
		r.logger.Environment().Info("Environment resolved",
			"profile", profile.Name,
			"apiBaseUrl", profile.APIBaseURL,
			"hostname", u.Hostname(),
			"port", u.Port(),
			"cacheEnabled", profile.CacheEnabled)
	}
	return profile, nil
}
