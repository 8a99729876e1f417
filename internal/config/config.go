package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and env.
// Missing credentials are not an error: the affected board sections report
// that they need configuration instead.
type Config struct {
	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TimeZone        string
	Location        *time.Location

	UpstreamTimeout    time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
	BreakerInterval    time.Duration

	TransitAPIKey             string
	TransitEndpoint           string
	TransitCityCode           string
	TransitNodeID             string
	TransitLimit              int
	TransitDedupByRoute       bool
	TransitTTL                time.Duration
	TransitArrivingNowSeconds int
	TransitZeroStopsMeansNext bool
	TransitStopSuffix         string
	TransitArrivingNowLabel   string
	TransitMinuteLabelSuffix  string

	WeatherAPIKey          string
	WeatherLocation        string
	WeatherUnits           string
	WeatherGeocodeURL      string
	WeatherOneCallURL      string
	WeatherCurrentURL      string
	WeatherForecastURL     string
	WeatherAirURL          string
	WeatherIconURLTemplate string
	WeatherTTL             time.Duration
	GeocodeTTL             time.Duration

	TasksToken     string
	TasksProjectID string
	TasksEndpoint  string
	TasksLimit     int
	TasksTTL       time.Duration

	CacheBackend          string // "in_memory", "memcached" or "redis"
	CacheMemorySize       int
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisTimeout          time.Duration
	WarmInterval          time.Duration

	RateLimitRPS    int
	RateLimitBurst  int
	RateLimitWindow time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		Timezone string `yaml:"timezone"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Upstream struct {
		Timeout string `yaml:"timeout"`
		Breaker struct {
			ConsecutiveFailures int    `yaml:"consecutive_failures"`
			OpenTimeout         string `yaml:"open_timeout"`
			Interval            string `yaml:"interval"`
		} `yaml:"breaker"`
	} `yaml:"upstream"`

	Transit struct {
		Endpoint     string `yaml:"endpoint"`
		CityCode     string `yaml:"city_code"`
		NodeID       string `yaml:"node_id"`
		Limit        int    `yaml:"limit"`
		DedupByRoute *bool  `yaml:"dedup_by_route"`
		TTL          string `yaml:"ttl"`
		Rules        struct {
			ArrivingNowSeconds *int   `yaml:"arriving_now_seconds"`
			ZeroStopsMeansNext *bool  `yaml:"zero_stops_means_next"`
			StopSuffix         string `yaml:"stop_suffix"`
			ArrivingNowLabel   string `yaml:"arriving_now_label"`
			MinuteLabelSuffix  string `yaml:"minute_label_suffix"`
		} `yaml:"rules"`
	} `yaml:"transit"`

	Weather struct {
		Location        string `yaml:"location"`
		Units           string `yaml:"units"`
		GeocodeURL      string `yaml:"geocode_url"`
		OneCallURL      string `yaml:"onecall_url"`
		CurrentURL      string `yaml:"current_url"`
		ForecastURL     string `yaml:"forecast_url"`
		AirURL          string `yaml:"air_url"`
		IconURLTemplate string `yaml:"icon_url_template"`
		TTL             string `yaml:"ttl"`
		GeocodeTTL      string `yaml:"geocode_ttl"`
	} `yaml:"weather"`

	Tasks struct {
		Endpoint  string `yaml:"endpoint"`
		ProjectID string `yaml:"project_id"`
		Limit     int    `yaml:"limit"`
		TTL       string `yaml:"ttl"`
	} `yaml:"tasks"`

	Cache struct {
		Backend      string `yaml:"backend"`
		MemorySize   int    `yaml:"memory_size"`
		WarmInterval string `yaml:"warm_interval"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	RateLimit struct {
		RPS    int    `yaml:"rps"`
		Burst  int    `yaml:"burst"`
		Window string `yaml:"window"`
	} `yaml:"rate_limit"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	TransitAPIKey string `yaml:"transit_api_key"`
	WeatherAPIKey string `yaml:"weather_api_key"`
	TodoistToken  string `yaml:"todoist_token"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads .env, config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return loadFrom(cwd)
}

func loadFrom(dir string) (*Config, error) {
	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = orDefault(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.TimeZone = orDefault(fc.Server.Timezone, "Asia/Seoul")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 10*time.Second)
	cfg.BreakerFailures = fc.Upstream.Breaker.ConsecutiveFailures
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	cfg.BreakerOpenTimeout = parseDuration(fc.Upstream.Breaker.OpenTimeout, 30*time.Second)
	cfg.BreakerInterval = parseDuration(fc.Upstream.Breaker.Interval, time.Minute)

	cfg.TransitAPIKey = orDefault(os.Getenv("TAGO_API_KEY"), sec.TransitAPIKey)
	cfg.TransitEndpoint = strings.TrimSpace(fc.Transit.Endpoint)
	cfg.TransitCityCode = strings.TrimSpace(fc.Transit.CityCode)
	cfg.TransitNodeID = strings.TrimSpace(fc.Transit.NodeID)
	cfg.TransitLimit = fc.Transit.Limit
	if cfg.TransitLimit <= 0 {
		cfg.TransitLimit = 5
	}
	cfg.TransitDedupByRoute = true
	if fc.Transit.DedupByRoute != nil {
		cfg.TransitDedupByRoute = *fc.Transit.DedupByRoute
	}
	cfg.TransitTTL = parseDuration(fc.Transit.TTL, 30*time.Second)
	cfg.TransitArrivingNowSeconds = 60
	if fc.Transit.Rules.ArrivingNowSeconds != nil {
		cfg.TransitArrivingNowSeconds = *fc.Transit.Rules.ArrivingNowSeconds
	}
	cfg.TransitZeroStopsMeansNext = true
	if fc.Transit.Rules.ZeroStopsMeansNext != nil {
		cfg.TransitZeroStopsMeansNext = *fc.Transit.Rules.ZeroStopsMeansNext
	}
	cfg.TransitStopSuffix = orDefault(fc.Transit.Rules.StopSuffix, "정거장 전")
	cfg.TransitArrivingNowLabel = orDefault(fc.Transit.Rules.ArrivingNowLabel, "곧 도착")
	cfg.TransitMinuteLabelSuffix = orDefault(fc.Transit.Rules.MinuteLabelSuffix, "분")

	cfg.WeatherAPIKey = orDefault(os.Getenv("OPENWEATHER_API_KEY"), sec.WeatherAPIKey)
	cfg.WeatherLocation = strings.TrimSpace(fc.Weather.Location)
	cfg.WeatherUnits = orDefault(fc.Weather.Units, "metric")
	cfg.WeatherGeocodeURL = strings.TrimSpace(fc.Weather.GeocodeURL)
	cfg.WeatherOneCallURL = strings.TrimSpace(fc.Weather.OneCallURL)
	cfg.WeatherCurrentURL = strings.TrimSpace(fc.Weather.CurrentURL)
	cfg.WeatherForecastURL = strings.TrimSpace(fc.Weather.ForecastURL)
	cfg.WeatherAirURL = strings.TrimSpace(fc.Weather.AirURL)
	cfg.WeatherIconURLTemplate = strings.TrimSpace(fc.Weather.IconURLTemplate)
	cfg.WeatherTTL = parseDuration(fc.Weather.TTL, 600*time.Second)
	cfg.GeocodeTTL = parseDuration(fc.Weather.GeocodeTTL, 24*time.Hour)

	cfg.TasksToken = orDefault(os.Getenv("TODOIST_TOKEN"), sec.TodoistToken)
	cfg.TasksProjectID = strings.TrimSpace(fc.Tasks.ProjectID)
	cfg.TasksEndpoint = strings.TrimSpace(fc.Tasks.Endpoint)
	cfg.TasksLimit = fc.Tasks.Limit
	if cfg.TasksLimit <= 0 {
		cfg.TasksLimit = 10
	}
	cfg.TasksTTL = parseDuration(fc.Tasks.TTL, 120*time.Second)

	cfg.CacheBackend = strings.ToLower(orDefault(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory"))
	cfg.CacheMemorySize = fc.Cache.MemorySize
	if cfg.CacheMemorySize <= 0 {
		cfg.CacheMemorySize = 256
	}
	cfg.MemcachedAddrs = orDefault(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = orDefault(os.Getenv("REDIS_ADDR"), fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = orDefault(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)
	// Zero disables warming.
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.RateLimitRPS = fc.RateLimit.RPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.RateLimit.Burst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 50
	}
	cfg.RateLimitWindow = parseDuration(fc.RateLimit.Window, time.Minute)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// orDefault returns the first non-blank value, trimmed.
func orDefault(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Resolves the timezone, requires a positive upstream timeout and a known
// cache backend, and raises RequestTimeout above UpstreamTimeout if needed.
func validate(cfg *Config) error {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("server.timezone %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	if cfg.TransitArrivingNowSeconds < 0 {
		return fmt.Errorf("transit.rules.arriving_now_seconds must not be negative")
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if cfg.WarmInterval < 0 {
		return fmt.Errorf("cache.warm_interval must not be negative")
	}
	return nil
}

// Configured reports which sources have the credentials and identifiers they
// need. Used for startup logging and /health.
func (c *Config) Configured() map[string]bool {
	return map[string]bool{
		"transit": c.TransitAPIKey != "" && c.TransitCityCode != "" && c.TransitNodeID != "",
		"weather": c.WeatherAPIKey != "" && c.WeatherLocation != "",
		"tasks":   c.TasksToken != "",
	}
}
