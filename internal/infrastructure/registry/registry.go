// Package registry loads the per-country carrier endpoint configuration and
// resolves country codes against it.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	_ "time/tzdata" // country timezones must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
	"github.com/owen-raum/dpd-tracking/internal/pkg/validate"
)

//go:embed countries.yaml
var defaultCountries []byte

// Registry is an immutable country -> endpoint mapping. Build it once at
// startup and share it; all methods are safe for concurrent use.
type Registry struct {
	countries map[string]domain.EndpointConfig
	supported []string
}

// Default returns the registry built from the embedded countries file.
func Default() (*Registry, error) {
	return Parse(defaultCountries)
}

// Load reads a countries file (YAML or JSON). An empty path loads the
// embedded defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a countries document.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]domain.EndpointConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("registry: decode: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("registry: no countries configured")
	}

	r := &Registry{countries: make(map[string]domain.EndpointConfig, len(raw))}
	for code, cfg := range raw {
		code = normalize(code)
		if _, dup := r.countries[code]; dup {
			return nil, fmt.Errorf("registry: country %s configured twice", code)
		}
		cfg.Country = code
		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("registry: country %s: %w", code, err)
		}
		r.countries[code] = cfg
		r.supported = append(r.supported, code)
	}
	sort.Strings(r.supported)
	return r, nil
}

// Resolve returns the configuration for countryCode, ignoring case.
func (r *Registry) Resolve(countryCode string) (domain.EndpointConfig, error) {
	cfg, ok := r.countries[normalize(countryCode)]
	if !ok {
		return domain.EndpointConfig{}, domain.UnsupportedCountry(countryCode, r.Supported())
	}
	return cfg, nil
}

// Supported lists the configured country codes in ascending order.
func (r *Registry) Supported() []string {
	out := make([]string, len(r.supported))
	copy(out, r.supported)
	return out
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
