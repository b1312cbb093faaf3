package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/imaging"
	"github.com/ripixel/fitglue-vision/pkg/prompt"
)

// ConfigFileEnv names an optional YAML file applied before environment variables.
const ConfigFileEnv = "VISION_CONFIG_FILE"

// Config holds standard configuration for all services
type Config struct {
	ProjectID     string `yaml:"project_id"`
	EnablePublish bool   `yaml:"enable_publish"`
	ImageBucket   string `yaml:"image_bucket"`
	NotifyTopic   string `yaml:"notify_topic"`
	LogLevel      string `yaml:"log_level"`

	AI    AIConfig    `yaml:"ai"`
	Image ImageConfig `yaml:"image"`

	PromptMaxChars int `yaml:"prompt_max_chars"`
}

type AIConfig struct {
	Backend        string        `yaml:"backend"`
	Model          string        `yaml:"model"`
	Location       string        `yaml:"location"`
	APIKeySecret   string        `yaml:"api_key_secret"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	RequestSpacing time.Duration `yaml:"request_spacing"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseBackoff    time.Duration `yaml:"base_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
	Jitter         bool          `yaml:"jitter"`
}

type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension"`
	MaxBytes     int `yaml:"max_bytes"`
	Quality      int `yaml:"quality"`
}

// DefaultConfig returns the values used when neither file nor env set a key.
func DefaultConfig() *Config {
	client := ai.DefaultClientOptions()
	img := imaging.DefaultOptions()
	return &Config{
		ProjectID:   shared.ProjectID,
		ImageBucket: shared.DefaultImageBucket,
		NotifyTopic: shared.TopicAnalysisReady,
		LogLevel:    "info",
		AI: AIConfig{
			Backend:        "gemini",
			APIKeySecret:   "GEMINI_API_KEY",
			MaxConcurrent:  client.MaxConcurrent,
			RequestSpacing: client.RequestSpacing,
			MaxRetries:     client.MaxRetries,
			BaseBackoff:    client.BaseBackoff,
			Timeout:        client.Timeout,
			Jitter:         client.Jitter,
		},
		Image: ImageConfig{
			MaxDimension: img.MaxDimension,
			MaxBytes:     img.MaxBytes,
			Quality:      img.Quality,
		},
		PromptMaxChars: prompt.DefaultMaxChars,
	}
}

// LoadConfig reads configuration from the optional YAML file, then from
// environment variables. A broken file is logged and ignored.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(cfg, path); err != nil {
			slog.Warn("Ignoring config file", "path", path, "error", err)
		}
	}

	cfg.ProjectID = envStr("GOOGLE_CLOUD_PROJECT", cfg.ProjectID)
	cfg.EnablePublish = envBool("ENABLE_PUBLISH", cfg.EnablePublish)
	cfg.ImageBucket = envStr("GCS_IMAGE_BUCKET", cfg.ImageBucket)
	cfg.NotifyTopic = envStr("NOTIFY_TOPIC", cfg.NotifyTopic)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.AI.Backend = strings.ToLower(envStr("AI_BACKEND", cfg.AI.Backend))
	cfg.AI.Model = envStr("AI_MODEL", cfg.AI.Model)
	cfg.AI.Location = envStr("AI_LOCATION", cfg.AI.Location)
	cfg.AI.APIKeySecret = envStr("AI_API_KEY_SECRET", cfg.AI.APIKeySecret)
	cfg.AI.MaxConcurrent = envInt("AI_MAX_CONCURRENT", cfg.AI.MaxConcurrent)
	cfg.AI.RequestSpacing = envDur("AI_REQUEST_SPACING", cfg.AI.RequestSpacing)
	cfg.AI.MaxRetries = envInt("AI_MAX_RETRIES", cfg.AI.MaxRetries)
	cfg.AI.BaseBackoff = envDur("AI_BASE_BACKOFF", cfg.AI.BaseBackoff)
	cfg.AI.Timeout = envDur("AI_TIMEOUT", cfg.AI.Timeout)
	cfg.AI.Jitter = envBool("AI_JITTER", cfg.AI.Jitter)

	cfg.Image.MaxDimension = envInt("IMAGE_MAX_DIMENSION", cfg.Image.MaxDimension)
	cfg.Image.MaxBytes = envInt("IMAGE_MAX_BYTES", cfg.Image.MaxBytes)
	cfg.Image.Quality = envInt("IMAGE_QUALITY", cfg.Image.Quality)
	cfg.PromptMaxChars = envInt("PROMPT_MAX_CHARS", cfg.PromptMaxChars)

	return cfg
}

func loadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ClientOptions maps the AI section onto the rate-limited client.
func (c *Config) ClientOptions() ai.ClientOptions {
	return ai.ClientOptions{
		MaxConcurrent:  c.AI.MaxConcurrent,
		RequestSpacing: c.AI.RequestSpacing,
		MaxRetries:     c.AI.MaxRetries,
		BaseBackoff:    c.AI.BaseBackoff,
		Timeout:        c.AI.Timeout,
		Jitter:         c.AI.Jitter,
	}
}

func (c *Config) ImageOptions() imaging.Options {
	opts := imaging.DefaultOptions()
	opts.MaxDimension = c.Image.MaxDimension
	opts.MaxBytes = c.Image.MaxBytes
	opts.Quality = c.Image.Quality
	return opts
}

func (c *Config) Composer() prompt.Composer {
	return prompt.Composer{MaxChars: c.PromptMaxChars}
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
