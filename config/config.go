package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultServerAddr     = ":8080"
	DefaultMaxAttempts    = 4
	MinAttempts           = 1
	MaxAttempts           = 5
	DefaultApprovalToken  = "APPROVED"
	DefaultImageModel     = "gpt-image-1"
	DefaultEvalModel      = "gpt-4o"
	DefaultAnalysisModel  = "gpt-4.1-mini"
	DefaultTextModel      = "gpt-4"
	DefaultImageSize      = "1024x1024"
	DefaultRequestTimeout = 120 * time.Second
	DefaultHTTPTimeout    = 180 * time.Second
	DefaultSessionTTL     = 2 * time.Hour
)

var validQualities = map[string]bool{"low": true, "medium": true, "high": true, "auto": true}

// Config is the full application configuration.
type Config struct {
	ServerAddr            string        `json:"server_addr,omitempty"`
	LLM                   *LLMConfig    `json:"llm,omitempty"`
	Refine                RefineConfig  `json:"refine"`
	Pricing               PricingConfig `json:"pricing"`
	RateLimit             RateLimit     `json:"rate_limit"`
	CatalogFile           string        `json:"catalog_file,omitempty"`
	AdsDir                string        `json:"ads_dir,omitempty"`
	SessionTTLMinutes     int           `json:"session_ttl_minutes,omitempty"`
	RequestTimeoutSeconds int           `json:"request_timeout_seconds,omitempty"`
	HTTPTimeoutSeconds    int           `json:"http_timeout_seconds,omitempty"`
	PreferIPv4            bool          `json:"prefer_ipv4,omitempty"`
	LogLevel              string        `json:"log_level,omitempty"`
}

// LLMConfig selects and configures the remote AI provider.
type LLMConfig struct {
	Provider      string `json:"provider,omitempty"`
	Model         string `json:"model,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	ImageModel    string `json:"image_model,omitempty"`
	EvalModel     string `json:"eval_model,omitempty"`
	AnalysisModel string `json:"analysis_model,omitempty"`
}

// RefineConfig tunes the image refinement loop.
type RefineConfig struct {
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	InitialQuality string `json:"initial_quality,omitempty"`
	EditQuality    string `json:"edit_quality,omitempty"`
	ImageSize      string `json:"image_size,omitempty"`
	ApprovalToken  string `json:"approval_token,omitempty"`
	// ApprovalMatch is "substring" (default) or "word".
	ApprovalMatch string `json:"approval_match,omitempty"`
}

// PricingConfig holds the cost estimates in USD.
type PricingConfig struct {
	ImageOperation       float64 `json:"image_operation,omitempty"`
	PromptPer1K          float64 `json:"prompt_per_1k,omitempty"`
	CompletionPer1K      float64 `json:"completion_per_1k,omitempty"`
	VariationImageEdit   float64 `json:"variation_image_edit,omitempty"`
	VariationDefaultTier string  `json:"variation_default_quality,omitempty"`
}

// RateLimit throttles provider calls. RPS <= 0 disables it.
type RateLimit struct {
	RPS   float64 `json:"rps,omitempty"`
	Burst int     `json:"burst,omitempty"`
}

// Load reads the configuration like Read and then validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read loads .env, the optional JSON config file and environment overrides,
// then applies defaults. It does not validate, so commands that never talk
// to the provider can still use the file settings.
// A missing file at path is not an error; the defaults and env fill in.
func Read(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.AdsDir = getEnv("ADS_DIR", c.AdsDir)
	c.CatalogFile = getEnv("CATALOG_FILE", c.CatalogFile)
	c.Refine.MaxAttempts = getEnvInt("MAX_ATTEMPTS", c.Refine.MaxAttempts)
	c.RateLimit.RPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RequestTimeoutSeconds = getEnvInt("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
	c.HTTPTimeoutSeconds = getEnvInt("HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)
	c.PreferIPv4 = getEnvBool("PREFER_IPV4", c.PreferIPv4)
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AdsDir == "" {
		c.AdsDir = "public/ads"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultTextModel
	}
	if c.LLM.ImageModel == "" {
		c.LLM.ImageModel = DefaultImageModel
	}
	if c.LLM.EvalModel == "" {
		c.LLM.EvalModel = DefaultEvalModel
	}
	if c.LLM.AnalysisModel == "" {
		c.LLM.AnalysisModel = DefaultAnalysisModel
	}

	r := &c.Refine
	r.MaxAttempts = ClampAttempts(r.MaxAttempts)
	if r.InitialQuality == "" {
		r.InitialQuality = "low"
	}
	if r.EditQuality == "" {
		r.EditQuality = "medium"
	}
	if r.ImageSize == "" {
		r.ImageSize = DefaultImageSize
	}
	if r.ApprovalToken == "" {
		r.ApprovalToken = DefaultApprovalToken
	}
	if r.ApprovalMatch == "" {
		r.ApprovalMatch = "substring"
	}

	p := &c.Pricing
	if p.ImageOperation == 0 {
		p.ImageOperation = 0.040
	}
	if p.PromptPer1K == 0 {
		p.PromptPer1K = 0.005
	}
	if p.CompletionPer1K == 0 {
		p.CompletionPer1K = 0.015
	}
	if p.VariationImageEdit == 0 {
		p.VariationImageEdit = 0.040
	}
	if p.VariationDefaultTier == "" {
		p.VariationDefaultTier = "medium"
	}

	if c.RateLimit.Burst < 1 {
		c.RateLimit.Burst = 1
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = int(DefaultSessionTTL / time.Minute)
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = int(DefaultRequestTimeout / time.Second)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = int(DefaultHTTPTimeout / time.Second)
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.LLM == nil {
		return errors.New("config: llm section missing")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return errors.New("config: openai api key missing; set OPENAI_API_KEY or llm.api_key")
		}
	case "mock":
	default:
		return fmt.Errorf("config: llm provider %q not supported", c.LLM.Provider)
	}
	for name, q := range map[string]string{
		"refine.initial_quality":            c.Refine.InitialQuality,
		"refine.edit_quality":               c.Refine.EditQuality,
		"pricing.variation_default_quality": c.Pricing.VariationDefaultTier,
	} {
		if !ValidQuality(q) {
			return fmt.Errorf("config: %s %q is not one of low, medium, high, auto", name, q)
		}
	}
	switch c.Refine.ApprovalMatch {
	case "substring", "word":
	default:
		return fmt.Errorf("config: refine.approval_match %q must be substring or word", c.Refine.ApprovalMatch)
	}
	return nil
}

// ClampAttempts bounds n to [MinAttempts, MaxAttempts]; zero means the default.
func ClampAttempts(n int) int {
	switch {
	case n == 0:
		return DefaultMaxAttempts
	case n < MinAttempts:
		return MinAttempts
	case n > MaxAttempts:
		return MaxAttempts
	}
	return n
}

// ValidQuality reports whether q is an image quality tier the provider accepts.
func ValidQuality(q string) bool {
	return validQualities[q]
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
