package environment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
)

// ErrNoReachableBackend is returned when neither the profile base nor any
// fallback answered the health probe. The profile is left unchanged.
var ErrNoReachableBackend = errors.New("no reachable backend")

// DefaultFallbacks are tried in order when the profile base fails its probe.
var DefaultFallbacks = []string{
	"https://api.zineinsight.com",
	"https://zineinsight-api.onrender.com",
	"http://localhost:8000",
}

// Prober checks backend reachability through GET {base}/health
type Prober struct {
	client    *http.Client
	fallbacks []string
	timeout   time.Duration
	logger    *logging.ChanneledLogger
}

// ProberOption customises a Prober
type ProberOption func(*Prober)

// WithFallbacks replaces the fallback list.
func WithFallbacks(fallbacks []string) ProberOption {
	return func(p *Prober) { p.fallbacks = fallbacks }
}

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(client *http.Client) ProberOption {
	return func(p *Prober) { p.client = client }
}

// NewProber creates a prober; timeout bounds each fallback probe
func NewProber(timeout time.Duration, logger *logging.ChanneledLogger, opts ...ProberOption) *Prober {
	p := &Prober{
		client:    &http.Client{},
		fallbacks: DefaultFallbacks,
		timeout:   timeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks the profile base and adopts the first healthy fallback,
// rewriting profile.APIBaseURL in place.
func (p *Prober) Probe(ctx context.Context, profile *Profile) error {
	primaryTimeout := profile.Timeout
	if primaryTimeout <= 0 {
		primaryTimeout = p.timeout
	}

	primary := profile.JoinBase(profile.APIBaseURL, "/health")
	err := p.check(ctx, primary, primaryTimeout)
	if err == nil {
		p.logger.Environment().Info("Backend reachable", "profile", profile.Name, "url", primary)
		return nil
	}
	p.logger.Environment().Warn("Primary backend probe failed, trying fallbacks",
		"profile", profile.Name, "url", primary, "error", err.Error())

	for _, base := range p.fallbacks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target := profile.JoinBase(base, "/health")
		if err := p.check(ctx, target, p.timeout); err != nil {
			p.logger.Environment().Debug("Fallback probe failed", "url", target, "error", err.Error())
			continue
		}
		p.logger.Environment().Info("Adopted fallback backend",
			"profile", profile.Name, "previous", profile.APIBaseURL, "apiBaseUrl", base)
		profile.APIBaseURL = base
		return nil
	}

	p.logger.Environment().Error("No reachable backend", "profile", profile.Name, "apiBaseUrl", profile.APIBaseURL)
	return ErrNoReachableBackend
}

func (p *Prober) check(ctx context.Context, target string, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health returned status %d", resp.StatusCode)
	}
	return nil
}
