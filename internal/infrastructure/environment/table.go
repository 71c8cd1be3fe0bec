package environment

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type fileProfile struct {
	Name         string `yaml:"name"`
	APIBaseURL   string `yaml:"api_base_url"`
	WebsocketURL string `yaml:"websocket_url"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	CacheEnabled bool   `yaml:"cache_enabled"`
}

type fileRule struct {
	HostContains []string `yaml:"host_contains"`
	Port         string   `yaml:"port"`
	fileProfile  `yaml:",inline"`
}

type fileTable struct {
	Rules   []fileRule   `yaml:"rules"`
	Default *fileProfile `yaml:"default"`
}

// LoadTable reads a YAML environment table. An empty path returns the
// built-in table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read environments file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML environment table.
func ParseTable(data []byte) (Table, error) {
	var raw fileTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Table{}, fmt.Errorf("failed to parse environments file: %w", err)
	}
	if raw.Default == nil {
		return Table{}, errors.New("environments file must define a default profile")
	}

	def, err := raw.Default.toProfile()
	if err != nil {
		return Table{}, fmt.Errorf("default profile: %w", err)
	}

	table := Table{Default: def}
	for i, r := range raw.Rules {
		if len(r.HostContains) == 0 && r.Port == "" {
			return Table{}, fmt.Errorf("rule %d (%s) has no host_contains or port predicate", i, r.Name)
		}
		p, err := r.toProfile()
		if err != nil {
			return Table{}, fmt.Errorf("rule %d: %w", i, err)
		}
		table.Rules = append(table.Rules, Rule{HostContains: r.HostContains, Port: r.Port, Profile: p})
	}
	return table, nil
}

func (fp fileProfile) toProfile() (Profile, error) {
	if fp.Name == "" {
		return Profile{}, errors.New("name is required")
	}
	if !isAbsolute(fp.APIBaseURL) && !strings.HasPrefix(fp.APIBaseURL, "/") {
		return Profile{}, fmt.Errorf("%s: api_base_url must be absolute or start with '/'", fp.Name)
	}
	if fp.TimeoutMS <= 0 {
		return Profile{}, fmt.Errorf("%s: timeout_ms must be positive", fp.Name)
	}
	return Profile{
		Name:         fp.Name,
		APIBaseURL:   fp.APIBaseURL,
		WebsocketURL: fp.WebsocketURL,
		Timeout:      time.Duration(fp.TimeoutMS) * time.Millisecond,
		CacheEnabled: fp.CacheEnabled,
	}, nil
}
