package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "MEDLITE"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Generation GenerationConfig `mapstructure:"generation"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Server     ServerConfig     `mapstructure:"server"`
	Output     OutputConfig     `mapstructure:"output"`
	Samples    SamplesConfig    `mapstructure:"samples"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type GenerationConfig struct {
	Backend         string            `mapstructure:"backend"`
	Models          []string          `mapstructure:"models"`
	MaxLength       int               `mapstructure:"max_length"`
	MinLength       int               `mapstructure:"min_length"`
	MaxInputChars   int               `mapstructure:"max_input_chars"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	LoadTimeout     time.Duration     `mapstructure:"load_timeout"`
	RateLimit       float64           `mapstructure:"rate_limit"`
	Burst           int               `mapstructure:"burst"`
	BreakerFailures uint32            `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration     `mapstructure:"breaker_cooldown"`
	HuggingFace     HuggingFaceConfig `mapstructure:"huggingface"`
	Anthropic       APIKeyConfig      `mapstructure:"anthropic"`
	Gemini          APIKeyConfig      `mapstructure:"gemini"`
}

type HuggingFaceConfig struct {
	Token        string `mapstructure:"token"`
	InferenceURL string `mapstructure:"inference_url"`
	HubURL       string `mapstructure:"hub_url"`
}

type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type SummarizerConfig struct {
	GenerativeMinChars int    `mapstructure:"generative_min_chars"`
	RuleBasedMinChars  int    `mapstructure:"rule_based_min_chars"`
	Translation        string `mapstructure:"translation"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type OutputConfig struct {
	Dir   string `mapstructure:"dir"`
	Paper string `mapstructure:"paper"`
}

type SamplesConfig struct {
	Dir string `mapstructure:"dir"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// New returns a viper instance with defaults and environment binding in
// place. Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Vendor variables are honoured after the prefixed ones.
	_ = v.BindEnv("generation.huggingface.token", EnvPrefix+"_GENERATION_HUGGINGFACE_TOKEN", "HF_TOKEN")
	_ = v.BindEnv("generation.anthropic.api_key", EnvPrefix+"_GENERATION_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("generation.gemini.api_key", EnvPrefix+"_GENERATION_GEMINI_API_KEY", "GEMINI_API_KEY")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("generation.backend", "huggingface")
	v.SetDefault("generation.models", []string{})
	v.SetDefault("generation.max_length", 150)
	v.SetDefault("generation.min_length", 50)
	v.SetDefault("generation.max_input_chars", 1000)
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.load_timeout", "30s")
	v.SetDefault("generation.rate_limit", 2.0)
	v.SetDefault("generation.burst", 2)
	v.SetDefault("generation.breaker_failures", 3)
	v.SetDefault("generation.breaker_cooldown", "60s")
	v.SetDefault("generation.huggingface.token", "")
	v.SetDefault("generation.huggingface.inference_url", "")
	v.SetDefault("generation.huggingface.hub_url", "")
	v.SetDefault("generation.anthropic.api_key", "")
	v.SetDefault("generation.gemini.api_key", "")

	v.SetDefault("summarizer.generative_min_chars", 100)
	v.SetDefault("summarizer.rule_based_min_chars", 50)
	v.SetDefault("summarizer.translation", "longest_match")

	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("output.dir", "outputs")
	v.SetDefault("output.paper", "a4")
	v.SetDefault("samples.dir", "sample_reports")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", "medlite")
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named). Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes v into a validated Config.
// An explicit configFile must exist; otherwise medlite.yaml is looked up in
// the working directory and ./config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("medlite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Generation.Backend = strings.ToLower(strings.TrimSpace(cfg.Generation.Backend))
	cfg.Summarizer.Translation = strings.ToLower(strings.TrimSpace(cfg.Summarizer.Translation))
	cfg.Output.Paper = strings.ToLower(strings.TrimSpace(cfg.Output.Paper))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	switch c.Generation.Backend {
	case "huggingface", "anthropic", "gemini", "none":
	default:
		return fmt.Errorf("invalid generation backend %q", c.Generation.Backend)
	}
	g := c.Generation
	if g.MaxLength <= 0 || g.MinLength <= 0 {
		return fmt.Errorf("generation lengths must be positive (max=%d min=%d)", g.MaxLength, g.MinLength)
	}
	if g.MinLength > g.MaxLength {
		return fmt.Errorf("generation.min_length %d exceeds generation.max_length %d", g.MinLength, g.MaxLength)
	}
	if g.MaxInputChars <= 0 {
		return fmt.Errorf("generation.max_input_chars must be positive")
	}

	switch c.Summarizer.Translation {
	case "longest_match", "ordered":
	default:
		return fmt.Errorf("invalid summarizer.translation %q", c.Summarizer.Translation)
	}
	if c.Summarizer.GenerativeMinChars < 1 || c.Summarizer.RuleBasedMinChars < 1 {
		return errors.New("summarizer thresholds must be at least 1")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	switch c.Output.Paper {
	case "a4", "letter":
	default:
		return fmt.Errorf("invalid output.paper %q", c.Output.Paper)
	}
	return nil
}
