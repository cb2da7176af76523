// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`    // admin routes (start/stop)
	JWTSecret string `yaml:"jwt_secret"` // dashboard routes, HS256
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty: in-process lock and dedup
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // openai | gemini; the other one, if keyed, is a fallback
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	MatchModel      string `yaml:"match_model"`
	FormModel       string `yaml:"form_model"`
	GeminiModel     string `yaml:"gemini_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxInputTokens  int    `yaml:"max_input_tokens"` // job markup budget per prompt
	SendScreenshot  bool   `yaml:"send_screenshot"`  // attach page screenshot to form analysis
}

type BrowserConfig struct {
	Engine            string        `yaml:"engine"` // playwright | chromedp
	Headless          bool          `yaml:"headless"`
	NoSandbox         bool          `yaml:"no_sandbox"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	UserAgent         string        `yaml:"user_agent"`
	ScreenshotDir     string        `yaml:"screenshot_dir"`
}

type AgentConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Pacing         time.Duration `yaml:"pacing"`
	MaxCandidates  int           `yaml:"max_candidates"`
	MatchThreshold int           `yaml:"match_threshold"`
	SubmitForms    *bool         `yaml:"submit_forms"`
	RunLockTTL     time.Duration `yaml:"run_lock_ttl"`
	DedupTTL       time.Duration `yaml:"dedup_ttl"`
	ResumeOnBoot   bool          `yaml:"resume_on_boot"`
	BootWorkers    int           `yaml:"boot_workers"`
}

type DiscoveryConfig struct {
	Endpoint string        `yaml:"endpoint"` // empty: static list
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Static   []string      `yaml:"static"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Browser   BrowserConfig   `yaml:"browser"`
	Agent     AgentConfig     `yaml:"agent"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from args and loads the file.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("autoapply", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to config yaml")
	dev := fs.Bool("dev", false, "development mode")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := Load(*configPath)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = *dev
	return cfg, nil
}

// Load reads the YAML file at path, applies .env and environment overrides,
// fills defaults and validates.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Redis.URL, "REDIS_URL")
	str(&cfg.Redis.Password, "REDIS_PASSWORD")
	str(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	str(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	str(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	str(&cfg.HTTP.APIKey, "API_KEY")
	str(&cfg.HTTP.JWTSecret, "JWT_SECRET")
	str(&cfg.Discovery.APIKey, "DISCOVERY_API_KEY")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
		if cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey != "" {
			cfg.AI.Provider = "gemini"
		}
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	defModel := "gpt-4o-mini"
	if cfg.AI.Provider == "gemini" {
		defModel = cfg.AI.GeminiModel
	}
	if cfg.AI.MatchModel == "" {
		cfg.AI.MatchModel = defModel
	}
	if cfg.AI.FormModel == "" {
		cfg.AI.FormModel = defModel
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.MaxInputTokens <= 0 {
		cfg.AI.MaxInputTokens = 1500
	}

	if cfg.Browser.Engine == "" {
		cfg.Browser.Engine = "playwright"
	}
	cfg.Browser.NavigationTimeout = orDefault(cfg.Browser.NavigationTimeout, 30*time.Second)
	cfg.Browser.ActionTimeout = orDefault(cfg.Browser.ActionTimeout, 5*time.Second)
	if cfg.Browser.ScreenshotDir == "" {
		cfg.Browser.ScreenshotDir = "data/screenshots"
	}

	cfg.Agent.Interval = orDefault(cfg.Agent.Interval, 4*time.Hour)
	if cfg.Agent.Pacing < 0 {
		cfg.Agent.Pacing = 0
	} else if cfg.Agent.Pacing == 0 {
		cfg.Agent.Pacing = 5 * time.Second
	}
	if cfg.Agent.MaxCandidates <= 0 {
		cfg.Agent.MaxCandidates = 10
	}
	if cfg.Agent.MatchThreshold <= 0 {
		cfg.Agent.MatchThreshold = 70
	}
	if cfg.Agent.SubmitForms == nil {
		on := true
		cfg.Agent.SubmitForms = &on
	}
	cfg.Agent.RunLockTTL = orDefault(cfg.Agent.RunLockTTL, 2*time.Hour)
	cfg.Agent.DedupTTL = orDefault(cfg.Agent.DedupTTL, 30*24*time.Hour)
	if cfg.Agent.BootWorkers <= 0 {
		cfg.Agent.BootWorkers = 4
	}

	cfg.Discovery.Timeout = orDefault(cfg.Discovery.Timeout, 15*time.Second)
}

func (c *Config) validate() error {
	// Minimal validation
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" {
		return errors.New("ai.openai_key or ai.gemini_key is required")
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		return fmt.Errorf("browser.engine %q is not supported", c.Browser.Engine)
	}
	if c.Agent.MatchThreshold > 100 {
		return errors.New("agent.match_threshold must be within 1..100")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}

// SubmitEnabled reports whether the agent clicks the detected submit button.
func (a AgentConfig) SubmitEnabled() bool {
	return a.SubmitForms == nil || *a.SubmitForms
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
