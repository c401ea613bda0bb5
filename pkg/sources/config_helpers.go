package sources

import "strings"

// Config keys understood by the built-in fetchers.
const (
	ConfigBaseURLKey    = "base_url"
	ConfigQueriesKey    = "queries"
	ConfigMinPointsKey  = "min_points"
	ConfigQueryKey      = "query"
	ConfigDaysBackKey   = "days_back"
	ConfigFeedURLKey    = "feed_url"
	ConfigMaxAgeHrsKey  = "max_age_hours"
	ConfigUserAgentKey  = "user_agent"
)

// ConfigString returns the trimmed string value for key from source.Config or a fallback.
func ConfigString(cfg Source, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// ConfigInt returns the integer value for key from source.Config or a fallback.
// YAML decodes numbers as int, JSON as float64; both are accepted.
func ConfigInt(cfg Source, key string, fallback int) int {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			switch v := raw.(type) {
			case int:
				return v
			case int64:
				return int(v)
			case float64:
				return int(v)
			}
		}
	}
	return fallback
}

// ConfigStringSlice returns the string list for key from source.Config or a fallback.
func ConfigStringSlice(cfg Source, key string, fallback []string) []string {
	if cfg.Config == nil {
		return fallback
	}
	raw, ok := cfg.Config[key]
	if !ok {
		return fallback
	}

	items, ok := raw.([]any)
	if !ok {
		return fallback
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Headers builds common request headers from a source config (skips empty values).
func Headers(cfg Source) map[string]string {
	headers := make(map[string]string, 2)
	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	return headers
}
