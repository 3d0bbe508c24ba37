package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the researcher.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig configures the OpenAI-compatible completion backend.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	Temperature    float32       `mapstructure:"temperature"`
	Stream         bool          `mapstructure:"stream"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", l.Temperature)
	}
	if l.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be >= 1")
	}
	return nil
}

// Objective is a configured primary research topic.
type Objective struct {
	Topic     string  `mapstructure:"topic" yaml:"topic" json:"topic"`
	Expertise float64 `mapstructure:"expertise" yaml:"expertise" json:"expertise"`
}

// ResearchConfig shapes a run: who the agent is, what it studies and the pipeline limits.
type ResearchConfig struct {
	Role           string      `mapstructure:"role"`
	Iterations     int         `mapstructure:"iterations"`
	Objectives     []Objective `mapstructure:"objectives"`
	MaxTasks       int         `mapstructure:"max_tasks"`
	ChunkThreshold int         `mapstructure:"chunk_threshold"`
	MaxGenerated   int         `mapstructure:"max_generated_objectives"`
	MaxParallel    int         `mapstructure:"max_parallel"`
}

func (r ResearchConfig) Validate() error {
	if r.Iterations < 1 {
		return fmt.Errorf("research.iterations must be >= 1")
	}
	if r.MaxTasks < 1 {
		return fmt.Errorf("research.max_tasks must be >= 1")
	}
	if r.ChunkThreshold < 1 {
		return fmt.Errorf("research.chunk_threshold must be >= 1")
	}
	if r.MaxParallel < 0 {
		return fmt.Errorf("research.max_parallel must not be negative")
	}
	for i, o := range r.Objectives {
		if strings.TrimSpace(o.Topic) == "" {
			return fmt.Errorf("research.objectives[%d].topic required", i)
		}
		if o.Expertise < 0 || o.Expertise > 1 {
			return fmt.Errorf("research.objectives[%d].expertise must be within [0, 1]", i)
		}
	}
	return nil
}

// ToolsConfig configures the research tools.
type ToolsConfig struct {
	Fetcher       string            `mapstructure:"fetcher"` // chromedp or http
	FetchTimeout  time.Duration     `mapstructure:"fetch_timeout"`
	PageCharLimit int               `mapstructure:"page_char_limit"`
	UserAgent     string            `mapstructure:"user_agent"`
	DuckDuckGo    DuckDuckGoConfig  `mapstructure:"duckduckgo"`
	Google        GoogleConfig      `mapstructure:"google"`
	Brave         APIKeyConfig      `mapstructure:"brave"`
	Serper        APIKeyConfig      `mapstructure:"serper"`
	CrawlPolicy   CrawlPolicyConfig `mapstructure:"crawl_policy"`
}

// DuckDuckGoConfig points the DuckDuckGo tools at the lite HTML endpoint.
type DuckDuckGoConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Interval time.Duration `mapstructure:"interval"`
}

// GoogleConfig holds Custom Search credentials.
type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key"`
	CSEID    string `mapstructure:"cse_id"`
	Endpoint string `mapstructure:"endpoint"`
}

// APIKeyConfig is a search backend reachable with a single key.
type APIKeyConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

func (t ToolsConfig) Validate() error {
	switch t.Fetcher {
	case "chromedp", "http":
	default:
		return fmt.Errorf("tools.fetcher must be chromedp or http, got %q", t.Fetcher)
	}
	if t.PageCharLimit < 1 {
		return fmt.Errorf("tools.page_char_limit must be >= 1")
	}
	return t.CrawlPolicy.Validate()
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Address joins host and port.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (s ServerConfig) Validate() error {
	if _, err := strconv.Atoi(s.Port); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", s.Port)
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Prometheus   bool   `mapstructure:"prometheus"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && strings.TrimSpace(t.ServiceName) == "" {
		return fmt.Errorf("telemetry.service_name required when telemetry is enabled")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings. URL wins over host/port.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Host) != ""
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() || strings.TrimSpace(r.URL) != "" {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the run journal is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN returns URL when set, otherwise a key/value connection string.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, ssl)
}

// MigrationURL returns the URL form golang-migrate expects.
func (p PostgresConfig) MigrationURL() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// EventsConfig selects where lifecycle events are published besides the log.
type EventsConfig struct {
	RedisStream string `mapstructure:"redis_stream"`
	RedisMaxLen int64  `mapstructure:"redis_max_len"`
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
}

// ScheduleConfig re-launches the configured run from the server.
type ScheduleConfig struct {
	Cron    string        `mapstructure:"cron"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

func (s ScheduleConfig) Validate() error {
	if strings.TrimSpace(s.Cron) == "" {
		return nil
	}
	if _, err := cronexpr.Parse(s.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	return nil
}

// plainEnv maps config keys to the unprefixed variables used by existing deployments.
var plainEnv = map[string]string{
	"llm.api_key":             "OPENAI_API_KEY",
	"llm.model":               "OPENAI_MODEL",
	"tools.google.api_key":    "GOOGLE_API_KEY",
	"tools.google.cse_id":     "GOOGLE_CSE_ID",
	"tools.brave.api_key":     "BRAVE_API_KEY",
	"tools.serper.api_key":    "SERPER_API_KEY",
	"server.host":             "WEB_HOST",
	"server.port":             "WEB_PORT",
	"storage.postgres.url":    "DATABASE_URL",
	"storage.redis.url":       "REDIS_URL",
	"events.nats_url":         "NATS_URL",
	"server.jwt_secret":       "JWT_SECRET",
	"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_attempts", 5)
	v.SetDefault("llm.initial_backoff", 500*time.Millisecond)
	v.SetDefault("research.role", "a Research Assistant")
	v.SetDefault("research.iterations", 3)
	v.SetDefault("research.max_tasks", 5)
	v.SetDefault("research.chunk_threshold", 20000)
	v.SetDefault("research.max_generated_objectives", 5)
	v.SetDefault("research.max_parallel", 1)
	v.SetDefault("tools.fetcher", "http")
	v.SetDefault("tools.fetch_timeout", 30*time.Second)
	v.SetDefault("tools.page_char_limit", 20000)
	v.SetDefault("tools.user_agent", "Mozilla/5.0 (compatible; researcher/1.0)")
	v.SetDefault("tools.duckduckgo.endpoint", "https://lite.duckduckgo.com/lite/")
	v.SetDefault("tools.duckduckgo.interval", time.Second)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8888")
	v.SetDefault("telemetry.service_name", "researcher")
	v.SetDefault("events.redis_max_len", 10000)
	v.SetDefault("events.nats_subject", "researcher.events")
	v.SetDefault("schedule.lock_ttl", 10*time.Minute)
}

// LoadConfig reads config.yaml (from path, or the usual search locations),
// then .env, prefixed RESEARCHER_* variables and the plain deployment
// variables. A missing config file is not an error unless path was given.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range plainEnv {
		prefixed := "RESEARCHER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Tools.CrawlPolicy = cfg.Tools.CrawlPolicy.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs every section's checks.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.LLM, c.Research, c.Tools, c.Server, c.Telemetry,
		c.Storage.Redis, c.Storage.Postgres, c.Schedule,
	}
	for _, val := range validators {
		if err := val.Validate(); err != nil {
			return err
		}
	}
	return nil
}
