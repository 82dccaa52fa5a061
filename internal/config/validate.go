package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus errors and warnings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Taxonomy = make([]CategoryRule, len(cfg.Taxonomy))
	for i, r := range cfg.Taxonomy {
		out.Taxonomy[i] = CategoryRule{
			Category: strings.TrimSpace(r.Category),
			Keywords: trimList(r.Keywords),
		}
	}
	out.Dedupe.Stopwords = trimList(out.Dedupe.Stopwords)
	out.ServiceArea.PostalCodes = trimList(out.ServiceArea.PostalCodes)
	out.ServiceArea.Places = trimList(out.ServiceArea.Places)
	out.ServiceArea.Blocked = trimList(out.ServiceArea.Blocked)
	out.Scoring.HighValueCategories = trimList(out.Scoring.HighValueCategories)

	out.Sources = slices.Clone(cfg.Sources)
	for i := range out.Sources {
		out.Sources[i].Keywords = trimList(out.Sources[i].Keywords)
	}

	if err := Validate(out); err != nil {
		for _, line := range strings.Split(err.Error(), "\n- ")[1:] {
			res.addErr("%s", line)
		}
	}

	enabled := 0
	for _, s := range out.Sources {
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		res.addWarn("no sources are enabled; refresh will not find new leads")
	}
	if len(out.ServiceArea.PostalCodes) == 0 && len(out.ServiceArea.Places) == 0 {
		res.addWarn("service_area is empty; every lead is treated as in-area")
	}
	if out.App.AdapterTimeoutSeconds > 300 {
		res.addWarn("app.adapter_timeout_seconds is %d; one hung source will hold a refresh that long", out.App.AdapterTimeoutSeconds)
	}

	// a keyword listed under two categories can only ever match the first
	owner := map[string]string{}
	for _, r := range out.Taxonomy {
		for _, k := range r.Keywords {
			lk := strings.ToLower(k)
			if prev, ok := owner[lk]; ok && prev != r.Category {
				res.addWarn("keyword %q appears in %s and %s; %s wins", k, prev, r.Category, prev)
				continue
			}
			owner[lk] = r.Category
		}
	}

	return out, res
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Location returns the time zone used for dedupe day buckets.
func (c Config) Location() *time.Location {
	loc, err := loadLocation(c.Dedupe.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
