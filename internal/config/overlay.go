package config

// OverlayTuning copies the runtime-tunable sections of src onto cfg. Sources,
// app and notify settings are startup-only and stay untouched.
func OverlayTuning(cfg *Config, src Config) {
	if len(src.Taxonomy) > 0 {
		cfg.Taxonomy = src.Taxonomy
	}
	cfg.Scoring = src.Scoring
	if src.Dedupe.TimeZone != "" {
		cfg.Dedupe.TimeZone = src.Dedupe.TimeZone
	}
	if len(src.Dedupe.Stopwords) > 0 {
		cfg.Dedupe.Stopwords = src.Dedupe.Stopwords
	}
	cfg.ServiceArea = src.ServiceArea
	cfg.Lifecycle = src.Lifecycle
}
