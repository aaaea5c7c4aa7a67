package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Venues
	if cfg.Venues != nil {
		out.Venues = make(map[string]VenueConfig, len(cfg.Venues))
		for name, v := range cfg.Venues {
			redact(&v.ApiKey)
			redact(&v.ApiSecret)
			out.Venues[name] = v
		}
	}

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Trading.Pairs != nil {
		out.Trading.Pairs = make([]string, len(cfg.Trading.Pairs))
		copy(out.Trading.Pairs, cfg.Trading.Pairs)
	}
	if cfg.Trading.VenuePairs != nil {
		out.Trading.VenuePairs = make([][]string, len(cfg.Trading.VenuePairs))
		for i, vp := range cfg.Trading.VenuePairs {
			out.Trading.VenuePairs[i] = make([]string, len(vp))
			copy(out.Trading.VenuePairs[i], vp)
		}
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Paper.Balances != nil {
		out.Paper.Balances = make([]PaperBalance, len(cfg.Paper.Balances))
		copy(out.Paper.Balances, cfg.Paper.Balances)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
