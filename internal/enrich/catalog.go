package enrich

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SourceSpec describes one enrichment source in the catalog.
type SourceSpec struct {
	Name string `yaml:"name"`
	// Tier orders execution: lower tiers run and merge first, so later
	// tiers can build on their output. Sources within a tier run
	// concurrently.
	Tier      int           `yaml:"tier"`
	Mandatory bool          `yaml:"mandatory"`
	Enabled   *bool         `yaml:"enabled,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// Catalog is the set of configured enrichment sources.
type Catalog struct {
	Defaults CatalogDefaults `yaml:"defaults"`
	Sources  []SourceSpec    `yaml:"sources"`
}

// CatalogDefaults holds per-source fallbacks.
type CatalogDefaults struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultCatalog returns the built-in source set: affiliation extraction is
// the mandatory tier-0 base mapping, identity and ranking lookups run on top.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Defaults: CatalogDefaults{Timeout: 60 * time.Second},
		Sources: []SourceSpec{
			{Name: "affiliation", Tier: 0, Mandatory: true},
			{Name: "orcid", Tier: 1},
			{Name: "ranking", Tier: 1},
		},
	}
}

// LoadCatalog reads a source catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read catalog %s", path)
	}

	var wrapper struct {
		Enrichment Catalog `yaml:"enrichment"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "enrich: parse catalog")
	}

	cfg := &wrapper.Enrichment
	if cfg.Defaults.Timeout == 0 {
		cfg.Defaults.Timeout = 60 * time.Second
	}
	if len(cfg.Sources) == 0 {
		return nil, eris.New("enrich: catalog has no sources")
	}
	seen := map[string]bool{}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return nil, eris.Errorf("enrich: catalog source %d has no name", i)
		}
		if seen[s.Name] {
			return nil, eris.Errorf("enrich: duplicate catalog source %q", s.Name)
		}
		seen[s.Name] = true
		if s.Timeout == 0 {
			cfg.Sources[i].Timeout = cfg.Defaults.Timeout
		}
	}
	return cfg, nil
}

// Spec returns the catalog entry for a source name.
func (c *Catalog) Spec(name string) (SourceSpec, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceSpec{}, false
}

// IsEnabled reports whether a source participates in enrichment. Sources
// absent from the catalog are disabled.
func (c *Catalog) IsEnabled(name string) bool {
	s, ok := c.Spec(name)
	if !ok {
		return false
	}
	return s.Enabled == nil || *s.Enabled
}
