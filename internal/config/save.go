package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"leadhunt-engine/internal/domain"
)

var knownKinds = map[string]bool{"rss": true, "html": true, "imap": true}

func Validate(cfg Config) error {
	var errs []string

	if strings.TrimSpace(cfg.App.Addr) == "" {
		errs = append(errs, "app.addr is required")
	}
	if _, err := cron.ParseStandard(cfg.App.RefreshCron); err != nil {
		errs = append(errs, fmt.Sprintf("app.refresh_cron is invalid: %v", err))
	}
	if cfg.App.AdapterTimeoutSeconds <= 0 {
		errs = append(errs, "app.adapter_timeout_seconds must be > 0")
	}

	seen := map[string]bool{}
	for i, s := range cfg.Sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].name is required", i))
		} else if seen[name] {
			errs = append(errs, fmt.Sprintf("sources[%d].name %q is duplicated", i, name))
		}
		seen[name] = true
		if !knownKinds[s.Kind] {
			errs = append(errs, fmt.Sprintf("sources[%d].kind must be one of rss, html, imap", i))
		}
		if s.Kind != "imap" && strings.TrimSpace(s.BaseURL) == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].base_url is required", i))
		}
		if s.ContactMethod != "" && !domain.ValidContactMethod(s.ContactMethod) {
			errs = append(errs, fmt.Sprintf("sources[%d].contact_method must be email, phone, message or direct", i))
		}
		if s.Kind == "html" && s.Selectors["item"] == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].selectors.item is required for html sources", i))
		}
		if s.Kind == "imap" && s.Enabled && (s.IMAP.Host == "" || s.IMAP.Username == "") {
			errs = append(errs, fmt.Sprintf("sources[%d].imap.host and imap.username are required", i))
		}
	}

	errs = append(errs, validateTuning(cfg)...)

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func validateTuning(cfg Config) []string {
	var errs []string

	cats := map[string]bool{}
	for i, r := range cfg.Taxonomy {
		if strings.TrimSpace(r.Category) == "" {
			errs = append(errs, fmt.Sprintf("taxonomy[%d].category is required", i))
		}
		if strings.EqualFold(r.Category, string(domain.CategoryGeneral)) {
			errs = append(errs, fmt.Sprintf("taxonomy[%d]: %q is the fallback and cannot have keywords", i, r.Category))
		}
		if cats[r.Category] {
			errs = append(errs, fmt.Sprintf("taxonomy[%d].category %q is duplicated", i, r.Category))
		}
		cats[r.Category] = true
		if len(r.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("taxonomy[%d].keywords must have at least 1 term", i))
		}
		for j, k := range r.Keywords {
			if strings.TrimSpace(k) == "" {
				errs = append(errs, fmt.Sprintf("taxonomy[%d].keywords[%d] cannot be empty", i, j))
			}
		}
	}

	for i, t := range cfg.Scoring.Recency {
		if t.WithinHours <= 0 {
			errs = append(errs, fmt.Sprintf("scoring.recency[%d].within_hours must be > 0", i))
		}
		if i > 0 && t.WithinHours <= cfg.Scoring.Recency[i-1].WithinHours {
			errs = append(errs, "scoring.recency must be sorted by within_hours ascending")
		}
	}
	for _, c := range cfg.Scoring.HighValueCategories {
		if !cats[c] && c != string(domain.CategoryGeneral) {
			errs = append(errs, fmt.Sprintf("scoring.high_value_categories: %q is not in the taxonomy", c))
		}
	}

	if _, err := loadLocation(cfg.Dedupe.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("dedupe.time_zone: %v", err))
	}
	return errs
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n- ")
}
