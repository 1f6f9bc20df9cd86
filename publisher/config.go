package publisher

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	defaultServerAddr      = ":3000"
	defaultPublicDir       = "public"
	defaultExampleDir      = "example"
	defaultGenerateTimeout = 120
)

// Config is the JSON configuration file. Every field is optional.
type Config struct {
	ServerAddr    string `json:"server_addr,omitempty"`
	PublicDir     string `json:"public_dir,omitempty"`
	ExampleDir    string `json:"example_dir,omitempty"`
	CacheExamples bool   `json:"cache_examples,omitempty"`
	// Seconds allowed for one generate request; 0 disables the limit.
	GenerateTimeoutSeconds *int       `json:"generate_timeout_seconds,omitempty"`
	RequirePrompt          bool       `json:"require_prompt,omitempty"`
	MaxPromptRunes         int        `json:"max_prompt_runes,omitempty"`
	LLM                    *LLMConfig `json:"llm,omitempty"`
}

// LLMConfig selects the image model provider.
type LLMConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// apiKeyEnv lists, per provider, the environment variables holding the credential.
var apiKeyEnv = map[string][]string{
	"gemini": {"API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai": {"OPENAI_API_KEY", "API_KEY"},
	"mock":   nil,
}

// LoadConfig reads JSON config from disk. An empty path yields the defaults.
// The API key falls back to the provider's environment variables.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()

	envs, ok := apiKeyEnv[cfg.LLM.Provider]
	if !ok {
		return Config{}, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
	for _, name := range envs {
		if cfg.LLM.APIKey != "" {
			break
		}
		cfg.LLM.APIKey = os.Getenv(name)
	}
	if cfg.LLM.APIKey == "" && len(envs) > 0 {
		return Config{}, fmt.Errorf("llm api key missing; set llm.api_key or one of %v", envs)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = defaultServerAddr
	}
	if c.PublicDir == "" {
		c.PublicDir = defaultPublicDir
	}
	if c.ExampleDir == "" {
		c.ExampleDir = defaultExampleDir
	}
	if c.GenerateTimeoutSeconds == nil {
		t := defaultGenerateTimeout
		c.GenerateTimeoutSeconds = &t
	}
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
}

// GenerateTimeout is the per-request deadline, zero when disabled.
func (c Config) GenerateTimeout() time.Duration {
	if c.GenerateTimeoutSeconds == nil || *c.GenerateTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(*c.GenerateTimeoutSeconds) * time.Second
}
