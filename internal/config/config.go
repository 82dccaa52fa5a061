// Package config loads, validates and persists the engine configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"leadhunt-engine/internal/domain"
)

type CategoryRule struct {
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

type RecencyTier struct {
	WithinHours int `yaml:"within_hours" json:"within_hours"`
	Bonus       int `yaml:"bonus" json:"bonus"`
}

type Scoring struct {
	Base                int           `yaml:"base" json:"base"`
	BudgetBonus         int           `yaml:"budget_bonus" json:"budget_bonus"`
	Recency             []RecencyTier `yaml:"recency" json:"recency"`
	HighValueBonus      int           `yaml:"high_value_bonus" json:"high_value_bonus"`
	HighValueCategories []string      `yaml:"high_value_categories" json:"high_value_categories"`
}

type Dedupe struct {
	TimeZone  string   `yaml:"time_zone" json:"time_zone"`
	Stopwords []string `yaml:"stopwords" json:"stopwords"`
}

type ServiceArea struct {
	PostalCodes []string `yaml:"postal_codes" json:"postal_codes"`
	Places      []string `yaml:"places" json:"places"`
	Blocked     []string `yaml:"blocked" json:"blocked"`
}

type Lifecycle struct {
	AllowTerminalReopen bool `yaml:"allow_terminal_reopen" json:"allow_terminal_reopen"`
}

type Config struct {
	App struct {
		Addr                  string `yaml:"addr" json:"addr"`
		DataDir               string `yaml:"data_dir" json:"data_dir"`
		RefreshCron           string `yaml:"refresh_cron" json:"refresh_cron"`
		AdapterTimeoutSeconds int    `yaml:"adapter_timeout_seconds" json:"adapter_timeout_seconds"`
		IngestWorkers         int    `yaml:"ingest_workers" json:"ingest_workers"`
	} `yaml:"app" json:"app"`

	Sources []domain.Source `yaml:"sources" json:"sources"`

	Taxonomy    []CategoryRule `yaml:"taxonomy" json:"taxonomy"`
	Scoring     Scoring        `yaml:"scoring" json:"scoring"`
	Dedupe      Dedupe         `yaml:"dedupe" json:"dedupe"`
	ServiceArea ServiceArea    `yaml:"service_area" json:"service_area"`
	Lifecycle   Lifecycle      `yaml:"lifecycle" json:"lifecycle"`

	Notify struct {
		KafkaBrokers []string `yaml:"kafka_brokers" json:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic" json:"kafka_topic"`
	} `yaml:"notify" json:"notify"`

	Logging struct {
		Development bool `yaml:"development" json:"development"`
	} `yaml:"logging" json:"logging"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// Parse decodes YAML bytes and applies defaults; used by tests and PUT /config.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.App.Addr == "" {
		cfg.App.Addr = "127.0.0.1:38471"
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = "."
	}
	if cfg.App.RefreshCron == "" {
		cfg.App.RefreshCron = "@every 15m"
	}
	if cfg.App.AdapterTimeoutSeconds <= 0 {
		cfg.App.AdapterTimeoutSeconds = 60
	}
	if cfg.App.IngestWorkers <= 0 {
		cfg.App.IngestWorkers = 4
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].MaxResults <= 0 {
			cfg.Sources[i].MaxResults = 50
		}
	}
	if len(cfg.Taxonomy) == 0 {
		cfg.Taxonomy = DefaultTaxonomy()
	}
	if cfg.Scoring.Base == 0 && cfg.Scoring.BudgetBonus == 0 && len(cfg.Scoring.Recency) == 0 &&
		cfg.Scoring.HighValueBonus == 0 && len(cfg.Scoring.HighValueCategories) == 0 {
		cfg.Scoring = DefaultScoring()
	}
	if cfg.Dedupe.TimeZone == "" {
		cfg.Dedupe.TimeZone = "UTC"
	}
	if len(cfg.Dedupe.Stopwords) == 0 {
		cfg.Dedupe.Stopwords = DefaultStopwords()
	}
	if cfg.Notify.KafkaTopic == "" {
		cfg.Notify.KafkaTopic = "lead-events"
	}
}

func DefaultTaxonomy() []CategoryRule {
	return []CategoryRule{
		{Category: "Kitchen", Keywords: []string{"kitchen", "cabinet", "countertop", "backsplash"}},
		{Category: "Bathroom", Keywords: []string{"bathroom", "shower", "vanity", "tub", "toilet"}},
		{Category: "Basement", Keywords: []string{"basement", "waterproofing", "finish lower level"}},
		{Category: "Deck", Keywords: []string{"deck", "patio", "pergola", "porch"}},
		{Category: "Roofing", Keywords: []string{"roof", "shingle", "gutter", "flashing"}},
		{Category: "Painting", Keywords: []string{"paint", "painting", "drywall", "stain"}},
		{Category: "Flooring", Keywords: []string{"floor", "flooring", "hardwood", "tile", "laminate", "carpet"}},
	}
}

func DefaultScoring() Scoring {
	return Scoring{
		Base:        50,
		BudgetBonus: 20,
		Recency: []RecencyTier{
			{WithinHours: 6, Bonus: 30},
			{WithinHours: 24, Bonus: 15},
		},
		HighValueBonus:      10,
		HighValueCategories: []string{"Kitchen", "Bathroom", "Basement"},
	}
}

func DefaultStopwords() []string {
	return []string{
		"a", "an", "the", "for", "to", "in", "on", "of", "and", "with", "my", "our", "me", "i",
		"looking", "need", "needed", "needs", "want", "wanted", "seeking", "help",
		"contractor", "contractors", "company", "pro", "professional", "hire", "hiring",
		"quote", "quotes", "estimate", "estimates", "asap", "please",
	}
}

// SourceByName returns the configured source with the given name.
func (c Config) SourceByName(name string) (domain.Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return domain.Source{}, false
}
