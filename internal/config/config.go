package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	Events    []EventConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Refresh   RefreshConfig
	Store     StoreConfig
	Health    HealthConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// EventConfig describes one measurement run: a named window over a set of
// repositories and/or an organization.
type EventConfig struct {
	Name            string
	Description     string
	Start           time.Time
	End             time.Time
	Repos           []string
	Org             string
	Token           string
	LeaderboardSize int
	ShowDetails     bool
}

// GitHubConfig configures GitHub API interactions.
type GitHubConfig struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RefreshConfig configures the background aggregation schedule.
type RefreshConfig struct {
	Interval time.Duration
}

// StoreConfig configures snapshot storage.
type StoreConfig struct {
	Backend            string
	RedisMode          string
	RedisAddr          string
	RedisMasterSet     string
	RedisSentinelAddrs []string
	RedisPassword      string
	RedisDB            int
	Namespace          string
	Retention          time.Duration
}

// HealthConfig configures health probe behavior.
type HealthConfig struct {
	GitHubProbeInterval           time.Duration
	GitHubFailureThreshold        int
	GitHubRecoverSuccessThreshold int
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELExporterEndpoint string
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if len(c.Events) == 0 {
		errs = append(errs, "events must contain at least one event")
	}

	seenEvents := make(map[string]struct{}, len(c.Events))
	for i, event := range c.Events {
		prefix := fmt.Sprintf("events[%d]", i)
		if event.Name == "" {
			errs = append(errs, prefix+".name is required")
		}
		if event.Start.IsZero() {
			errs = append(errs, prefix+".start is required")
		}
		if event.End.IsZero() {
			errs = append(errs, prefix+".end is required")
		}
		if !event.Start.IsZero() && !event.End.IsZero() && event.End.Before(event.Start) {
			errs = append(errs, prefix+".end must not precede .start")
		}
		if len(event.Repos) == 0 && event.Org == "" {
			errs = append(errs, prefix+" must set repos and/or org")
		}
		for _, repoID := range event.Repos {
			if !strings.Contains(repoID, "/") {
				errs = append(errs, prefix+".repos entries must be owner/name, got: "+repoID)
			}
		}
		if event.LeaderboardSize < 0 {
			errs = append(errs, prefix+".leaderboard_size must be >= 0")
		}
		if _, ok := seenEvents[event.Name]; ok {
			errs = append(errs, "events contains duplicate name: "+event.Name)
		}
		seenEvents[event.Name] = struct{}{}
	}

	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		errs = append(errs, "store.backend must be memory or redis")
	}
	if c.Store.Backend == "redis" {
		if c.Store.RedisMode != "standalone" && c.Store.RedisMode != "sentinel" {
			errs = append(errs, "store.redis_mode must be standalone or sentinel")
		}
		if c.Store.RedisMode == "standalone" && c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required when store.backend=redis")
		}
		if c.Store.RedisMode == "sentinel" && len(c.Store.RedisSentinelAddrs) == 0 {
			errs = append(errs, "store.redis_sentinel_addrs is required when store.redis_mode=sentinel")
		}
	}

	if c.Refresh.Interval <= 0 {
		errs = append(errs, "refresh.interval must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}
	if cfg.GitHub.RequestTimeout == 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.GitHub.CacheTTL == 0 {
		cfg.GitHub.CacheTTL = 5 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 5 * time.Minute
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.RedisMode == "" {
		cfg.Store.RedisMode = "standalone"
	}
	if cfg.Health.GitHubProbeInterval == 0 {
		cfg.Health.GitHubProbeInterval = time.Minute
	}
	if cfg.Health.GitHubFailureThreshold == 0 {
		cfg.Health.GitHubFailureThreshold = 3
	}
	if cfg.Health.GitHubRecoverSuccessThreshold == 0 {
		cfg.Health.GitHubRecoverSuccessThreshold = 2
	}
	for i := range cfg.Events {
		if cfg.Events[i].LeaderboardSize == 0 {
			cfg.Events[i].LeaderboardSize = 10
		}
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	Events    []rawEvent   `yaml:"events"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Refresh   rawRefresh   `yaml:"refresh"`
	Store     rawStore     `yaml:"store"`
	Health    rawHealth    `yaml:"health"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawEvent struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Start           string   `yaml:"start"`
	End             string   `yaml:"end"`
	Repos           []string `yaml:"repos"`
	Org             string   `yaml:"org"`
	Token           string   `yaml:"token"`
	LeaderboardSize int      `yaml:"leaderboard_size"`
	ShowDetails     bool     `yaml:"show_details"`
}

type rawGitHub struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	RequestTimeout duration `yaml:"request_timeout"`
	CacheTTL       duration `yaml:"cache_ttl"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawRefresh struct {
	Interval duration `yaml:"interval"`
}

type rawStore struct {
	Backend            string   `yaml:"backend"`
	RedisMode          string   `yaml:"redis_mode"`
	RedisAddr          string   `yaml:"redis_addr"`
	RedisMasterSet     string   `yaml:"redis_master_set"`
	RedisSentinelAddrs []string `yaml:"redis_sentinel_addrs"`
	RedisPassword      string   `yaml:"redis_password"`
	RedisDB            int      `yaml:"redis_db"`
	Namespace          string   `yaml:"namespace"`
	Retention          duration `yaml:"retention"`
}

type rawHealth struct {
	GitHubProbeInterval           duration `yaml:"github_probe_interval"`
	GitHubFailureThreshold        int      `yaml:"github_failure_threshold"`
	GitHubRecoverSuccessThreshold int      `yaml:"github_recover_success_threshold"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELExporterEndpoint string  `yaml:"otel_exporter_otlp_endpoint"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() (*Config, error) {
	cfg := &Config{
		Server: r.Server,
		Events: make([]EventConfig, 0, len(r.Events)),
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			CacheTTL:       r.GitHub.CacheTTL.Duration,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Refresh: RefreshConfig{
			Interval: r.Refresh.Interval.Duration,
		},
		Store: StoreConfig{
			Backend:            r.Store.Backend,
			RedisMode:          r.Store.RedisMode,
			RedisAddr:          r.Store.RedisAddr,
			RedisMasterSet:     r.Store.RedisMasterSet,
			RedisSentinelAddrs: r.Store.RedisSentinelAddrs,
			RedisPassword:      r.Store.RedisPassword,
			RedisDB:            r.Store.RedisDB,
			Namespace:          r.Store.Namespace,
			Retention:          r.Store.Retention.Duration,
		},
		Health: HealthConfig{
			GitHubProbeInterval:           r.Health.GitHubProbeInterval.Duration,
			GitHubFailureThreshold:        r.Health.GitHubFailureThreshold,
			GitHubRecoverSuccessThreshold: r.Health.GitHubRecoverSuccessThreshold,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELExporterEndpoint: r.Telemetry.OTELExporterEndpoint,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}

	for i, event := range r.Events {
		start, err := parseEventTimestamp(event.Start, false)
		if err != nil {
			return nil, fmt.Errorf("events[%d].start: %w", i, err)
		}
		end, err := parseEventTimestamp(event.End, true)
		if err != nil {
			return nil, fmt.Errorf("events[%d].end: %w", i, err)
		}
		cfg.Events = append(cfg.Events, EventConfig{
			Name:            event.Name,
			Description:     event.Description,
			Start:           start,
			End:             end,
			Repos:           event.Repos,
			Org:             event.Org,
			Token:           event.Token,
			LeaderboardSize: event.LeaderboardSize,
			ShowDetails:     event.ShowDetails,
		})
	}

	return cfg, nil
}

// parseEventTimestamp accepts RFC 3339 timestamps and bare dates. A bare
// start date means midnight UTC; a bare end date covers its whole day, so it
// maps to 23:59:59 UTC — otherwise the window would exclude all end-day
// activity.
func parseEventTimestamp(raw string, endOfDay bool) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: want RFC 3339 or YYYY-MM-DD", raw)
	}
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Second)
	}
	return ts.UTC(), nil
}
