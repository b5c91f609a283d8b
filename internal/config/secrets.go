package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Keys, passwords
// and tokens become "***". Connection strings and webhook URLs keep their
// scheme and host so the log still shows where the process connects.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)

	for _, s := range []*string{
		&out.Kalshi.ApiKey,
		&out.Kalshi.RsaPrivateKey,
		&out.Kalshi.KeyPassword,
		&out.Supabase.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
	} {
		if *s != "" {
			*s = redacted
		}
	}

	out.Supabase.DSN = redactURL(out.Supabase.DSN, false)
	out.Notify.DiscordWebhookURL = redactURL(out.Notify.DiscordWebhookURL, true)
	return out
}

// redactURL masks the password of a URL, and its path when pathIsSecret is
// set. Values that do not parse as URLs with a host are fully redacted.
func redactURL(raw string, pathIsSecret bool) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	if pathIsSecret && u.Path != "" {
		u.Path = "/" + redacted
	}
	u.RawQuery = ""
	// String would percent-encode the placeholder.
	s, _ := url.PathUnescape(u.String())
	return s
}
