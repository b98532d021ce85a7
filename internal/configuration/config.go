package configuration

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"flighttracker/internal/logger"
)

type Config struct {
	ServerAddress string
	DatabaseURI   string
	RedisAddress  string
	LogLevel      logger.Level
	LogToFile     bool
	AuthSecretKey jwk.Key

	MinCheckInterval time.Duration
	PollInterval     time.Duration
	WorkerPoolSize   int
	ShutdownGrace    time.Duration

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitWaitTimeout time.Duration

	RetryMaxRetries int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RetryMultiplier float64

	ProviderBaseURL  string
	ProviderTimeout  time.Duration
	QuoteCacheTTL    time.Duration
	QuoteCurrency    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type tomlConfig struct {
	ServerAddress string `toml:"server_address"`
	DatabaseURI   string `toml:"database_uri"`
	RedisAddress  string `toml:"redis_address"`
	LogLevel      string `toml:"log_level"`
	LogToFile     bool   `toml:"log_to_file"`
	AuthSecretKey string `toml:"auth_secret_key"`

	Tracker struct {
		MinCheckInterval string `toml:"min_check_interval"`
		PollInterval     string `toml:"poll_interval"`
		WorkerPoolSize   int    `toml:"worker_pool_size"`
		ShutdownGrace    string `toml:"shutdown_grace"`
	} `toml:"tracker"`

	RateLimit struct {
		MaxRequests int    `toml:"max_requests"`
		Window      string `toml:"window"`
		WaitTimeout string `toml:"wait_timeout"`
	} `toml:"rate_limit"`

	Retry struct {
		MaxRetries int     `toml:"max_retries"`
		BaseDelay  string  `toml:"base_delay"`
		MaxDelay   string  `toml:"max_delay"`
		Multiplier float64 `toml:"multiplier"`
	} `toml:"retry"`

	Provider struct {
		BaseURL  string `toml:"base_url"`
		Timeout  string `toml:"timeout"`
		CacheTTL string `toml:"cache_ttl"`
		Currency string `toml:"currency"`
	} `toml:"provider"`

	SMTP struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		Username string `toml:"username"`
		Password string `toml:"password"`
		From     string `toml:"from"`
	} `toml:"smtp"`
}

func parseDuration(s string, name string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s: %s", name, s)
	}
	return d, nil
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}
	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}

	c := &Config{
		ServerAddress: tc.ServerAddress,
		DatabaseURI:   tc.DatabaseURI,
		RedisAddress:  tc.RedisAddress,
		LogLevel:      logLevel,
		LogToFile:     tc.LogToFile,

		WorkerPoolSize:       tc.Tracker.WorkerPoolSize,
		RateLimitMaxRequests: tc.RateLimit.MaxRequests,
		RetryMaxRetries:      tc.Retry.MaxRetries,
		RetryMultiplier:      tc.Retry.Multiplier,
		ProviderBaseURL:      tc.Provider.BaseURL,
		QuoteCurrency:        tc.Provider.Currency,

		SMTPHost:     tc.SMTP.Host,
		SMTPPort:     tc.SMTP.Port,
		SMTPUsername: tc.SMTP.Username,
		SMTPPassword: tc.SMTP.Password,
		SMTPFrom:     tc.SMTP.From,
	}

	if c.MinCheckInterval, err = parseDuration(tc.Tracker.MinCheckInterval, "tracker.min_check_interval", 15*time.Minute); err != nil {
		return nil, err
	}
	if c.MinCheckInterval < time.Minute {
		return nil, errors.Errorf("tracker.min_check_interval too short (%v), minimum: 1m", c.MinCheckInterval)
	}
	if c.PollInterval, err = parseDuration(tc.Tracker.PollInterval, "tracker.poll_interval", time.Minute); err != nil {
		return nil, err
	}
	if c.ShutdownGrace, err = parseDuration(tc.Tracker.ShutdownGrace, "tracker.shutdown_grace", 30*time.Second); err != nil {
		return nil, err
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 4
	}

	if c.RateLimitMaxRequests <= 0 {
		c.RateLimitMaxRequests = 10
	}
	if c.RateLimitWindow, err = parseDuration(tc.RateLimit.Window, "rate_limit.window", time.Minute); err != nil {
		return nil, err
	}
	if c.RateLimitWaitTimeout, err = parseDuration(tc.RateLimit.WaitTimeout, "rate_limit.wait_timeout", 2*time.Minute); err != nil {
		return nil, err
	}

	if c.RetryMaxRetries <= 0 {
		c.RetryMaxRetries = 3
	}
	if c.RetryBaseDelay, err = parseDuration(tc.Retry.BaseDelay, "retry.base_delay", time.Second); err != nil {
		return nil, err
	}
	if c.RetryMaxDelay, err = parseDuration(tc.Retry.MaxDelay, "retry.max_delay", time.Minute); err != nil {
		return nil, err
	}
	if c.RetryMultiplier <= 1 {
		c.RetryMultiplier = 2
	}

	if c.ProviderBaseURL == "" {
		return nil, errors.New("provider.base_url is not set")
	}
	if c.ProviderTimeout, err = parseDuration(tc.Provider.Timeout, "provider.timeout", 15*time.Second); err != nil {
		return nil, err
	}
	if c.QuoteCacheTTL, err = parseDuration(tc.Provider.CacheTTL, "provider.cache_ttl", 5*time.Minute); err != nil {
		return nil, err
	}
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = "USD"
	}

	if tc.AuthSecretKey != "" {
		authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
		}
		c.AuthSecretKey = authSecretKey
	}

	return c, nil
}
