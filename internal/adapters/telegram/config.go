package telegram

// Config holds Telegram adapter configuration
type Config struct {
	BotToken    string           `yaml:"bot_token"`
	APIURL      string           `yaml:"api_url,omitempty"` // Bot API endpoint override
	PollTimeout int              `yaml:"poll_timeout"`      // getUpdates long-poll timeout in seconds
	Workers     int              `yaml:"workers"`           // updates of one batch handled concurrently
	RateLimit   *RateLimitConfig `yaml:"rate_limit"`
}

// DefaultConfig returns default Telegram configuration
func DefaultConfig() *Config {
	return &Config{
		PollTimeout: 30,
		Workers:     4,
		RateLimit:   DefaultRateLimitConfig(),
	}
}
