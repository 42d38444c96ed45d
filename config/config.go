package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mohammad-safakhou/deckray/models"
)

// Config holds all configuration for the deck-ingestion engine.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Gate       GateConfig       `mapstructure:"gate"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Search     SearchConfig     `mapstructure:"search"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	IntakeSecret string        `mapstructure:"intake_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// BrowserConfig carries the default stealth profile applied when a request
// does not supply one.
type BrowserConfig struct {
	Stealth models.StealthProfile `mapstructure:"stealth"`
}

// Normalize fills stealth defaults matching a plain desktop Chrome.
func (b BrowserConfig) Normalize() BrowserConfig {
	if strings.TrimSpace(b.Stealth.UserAgent) == "" {
		b.Stealth.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"
	}
	if b.Stealth.WindowWidth <= 0 {
		b.Stealth.WindowWidth = 1200
	}
	if b.Stealth.WindowHeight <= 0 {
		b.Stealth.WindowHeight = 900
	}
	if b.Stealth.JitterMaxMS < b.Stealth.JitterMinMS {
		b.Stealth.JitterMaxMS = b.Stealth.JitterMinMS
	}
	return b
}

// GateConfig bounds the authentication negotiation.
type GateConfig struct {
	DetectTimeout  time.Duration `mapstructure:"detect_timeout"`
	DismissTimeout time.Duration `mapstructure:"dismiss_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

func (g GateConfig) Normalize() GateConfig {
	if g.DetectTimeout <= 0 {
		g.DetectTimeout = 5 * time.Second
	}
	if g.DismissTimeout <= 0 {
		g.DismissTimeout = 15 * time.Second
	}
	if g.PollInterval <= 0 {
		g.PollInterval = 250 * time.Millisecond
	}
	return g
}

// NavigationConfig tunes page discovery and advancement.
type NavigationConfig struct {
	Strategies          []string `mapstructure:"strategies"`
	AttemptsPerStrategy int      `mapstructure:"attempts_per_strategy"`
	MaxPages            int      `mapstructure:"max_pages"`
	MaxConsecutiveSkips int      `mapstructure:"max_consecutive_skips"`
}

func (n NavigationConfig) Normalize() NavigationConfig {
	if len(n.Strategies) == 0 {
		n.Strategies = []string{"next_control", "keyboard", "positional_click"}
	}
	if n.AttemptsPerStrategy <= 0 {
		n.AttemptsPerStrategy = 2
	}
	if n.MaxPages <= 0 {
		n.MaxPages = 200
	}
	if n.MaxConsecutiveSkips <= 0 {
		n.MaxConsecutiveSkips = 3
	}
	return n
}

// OCRConfig configures the optical recovery backend.
type OCRConfig struct {
	Languages           []string `mapstructure:"languages"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
}

func (o OCRConfig) Validate() error {
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 100 {
		return fmt.Errorf("ocr.confidence_threshold must be within 0-100")
	}
	return nil
}

// RetryConfig is the supervisor policy applied to each stage.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	JitterFrac  float64       `mapstructure:"jitter_frac"`
}

func (r RetryConfig) Normalize() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BaseBackoff <= 0 {
		r.BaseBackoff = 300 * time.Millisecond
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 5 * time.Second
	}
	if r.JitterFrac < 0 || r.JitterFrac > 1 {
		r.JitterFrac = 0.2
	}
	return r
}

// CacheConfig selects and tunes the fingerprint cache backend.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
	case "redis":
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
	return nil
}

func (c CacheConfig) Normalize() CacheConfig {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	return c
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// SearchConfig controls the optional full-text index over assembled decks.
type SearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	IndexPath string `mapstructure:"index_path"` // empty means in-memory
}

// StorageConfig contains artifact storage settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"` // per-page snapshot PNGs; empty disables persistence
}

// Normalize applies defaults across all sections.
func (c Config) Normalize() Config {
	if c.General.DefaultTimeout <= 0 {
		c.General.DefaultTimeout = 5 * time.Minute
	}
	if c.Server.TokenTTL <= 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	c.Browser = c.Browser.Normalize()
	c.Gate = c.Gate.Normalize()
	c.Navigation = c.Navigation.Normalize()
	c.Retry = c.Retry.Normalize()
	c.Cache = c.Cache.Normalize()
	return c
}

// Validate checks every section that has constraints.
func (c Config) Validate() error {
	if err := c.OCR.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	cfg := Config{}.Normalize()
	cfg.OCR.Languages = []string{"eng"}
	cfg.OCR.ConfidenceThreshold = 40
	cfg.Server.Address = ":10210"
	return &cfg
}

// LoadConfig loads config from file, falling back to environment variables
// with the DECKRAY_ prefix.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "5m")
	viper.SetDefault("server.address", ":10210")
	viper.SetDefault("server.token_ttl", "24h")
	viper.SetDefault("browser.stealth.headless", true)
	viper.SetDefault("browser.stealth.suppress_automation", true)
	viper.SetDefault("browser.stealth.jitter_min_ms", 250)
	viper.SetDefault("browser.stealth.jitter_max_ms", 900)
	viper.SetDefault("navigation.strategies", []string{"next_control", "keyboard", "positional_click"})
	viper.SetDefault("ocr.languages", []string{"eng"})
	viper.SetDefault("ocr.confidence_threshold", 40)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_backoff", "300ms")
	viper.SetDefault("retry.max_backoff", "5s")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", "24h")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DECKRAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config = config.Normalize()
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return &config
}
