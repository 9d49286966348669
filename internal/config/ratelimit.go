package config

import "time"

// RateLimitConfig controls the fixed-window request limiter applied to
// the public API surface.  The completion-signal endpoint gets its own
// (tighter) limit since it is unauthenticated.
type RateLimitConfig struct {
	Enabled     bool
	Limit       int           // requests allowed per window
	Window      time.Duration // window length
	VerifyLimit int           // requests per window for /payments/verify
	Prefix      string        // Redis key prefix
}

// LoadRateLimitConfig reads the limiter settings with sane defaults.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Limit:       envInt("RATE_LIMIT_PER_WINDOW", 60),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		VerifyLimit: envInt("RATE_LIMIT_VERIFY_PER_WINDOW", 30),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.VerifyLimit < 1 {
		cfg.VerifyLimit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return cfg
}
