// Package config loads agent configuration from a YAML document addressed
// by URL. Secrets can be supplied inline, through environment variables, or
// as scy resource URLs that are resolved at load time.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"gopkg.in/yaml.v3"
)

// HTTP configures the agent's HTTP gateway.
type HTTP struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// CallbackURL is the externally reachable URL counterparties report
	// subtask results to.
	CallbackURL string `yaml:"callbackURL"`
}

// OpenAI configures the model provider.
type OpenAI struct {
	APIKey    string `yaml:"apiKey"`
	APIKeyURL string `yaml:"apiKeyURL"`
	Model     string `yaml:"model"`
}

// Pinata configures IPFS artifact publishing.
type Pinata struct {
	JWT      string `yaml:"jwt"`
	JWTURL   string `yaml:"jwtURL"`
	Endpoint string `yaml:"endpoint"`
	Gateway  string `yaml:"gateway"`
}

// Delegation configures a remote counterparty for a step.
type Delegation struct {
	Step     string        `yaml:"step"`
	Endpoint string        `yaml:"endpoint"`
	Plan     string        `yaml:"plan"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Metering configures payment plan enforcement for delegations.
type Metering struct {
	Enabled      bool  `yaml:"enabled"`
	OrderCredits int64 `yaml:"orderCredits"`
}

// Tracing configures span export.
type Tracing struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"outputFile"`
}

// Config is the top-level agent configuration.
type Config struct {
	// Identity names this agent in subtask requests.
	Identity string `yaml:"identity"`

	HTTP        HTTP         `yaml:"http"`
	OpenAI      OpenAI       `yaml:"openai"`
	Pinata      Pinata       `yaml:"pinata"`
	Delegations []Delegation `yaml:"delegations"`
	Metering    Metering     `yaml:"metering"`
	Tracing     Tracing      `yaml:"tracing"`

	// Workers is the orchestrator worker count; zero keeps the default.
	Workers int `yaml:"workers"`

	// TaskStoreURL, when set, persists task records as JSON documents under
	// the supplied base URL instead of in memory.
	TaskStoreURL string `yaml:"taskStoreURL"`
}

// Default returns a configuration with sensible local defaults.
func Default() *Config {
	return &Config{
		Identity: "lingua",
		HTTP:     HTTP{Addr: ":8080"},
	}
}

// Load reads the configuration document at URL, overlays environment
// variables and resolves secret URLs.
func Load(ctx context.Context, URL string) (*Config, error) {
	ret := Default()
	if URL != "" {
		fs := afs.New()
		data, err := fs.DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %v: %w", URL, err)
		}
		if err = yaml.Unmarshal(data, ret); err != nil {
			return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
		}
	}
	ret.applyEnv()
	if err := ret.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Config) applyEnv() {
	if value := os.Getenv("OPENAI_API_KEY"); value != "" && c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = value
	}
	if value := os.Getenv("PINATA_JWT"); value != "" && c.Pinata.JWT == "" {
		c.Pinata.JWT = value
	}
	if value := os.Getenv("LINGUA_CALLBACK_URL"); value != "" && c.HTTP.CallbackURL == "" {
		c.HTTP.CallbackURL = value
	}
	if value := os.Getenv("LINGUA_HTTP_ADDR"); value != "" {
		c.HTTP.Addr = value
	}
}

// resolveSecrets loads every *URL secret field through scy.
func (c *Config) resolveSecrets(ctx context.Context) error {
	service := scy.New()
	if c.OpenAI.APIKey == "" && c.OpenAI.APIKeyURL != "" {
		secret, err := service.Load(ctx, scy.NewResource(nil, c.OpenAI.APIKeyURL, ""))
		if err != nil {
			return fmt.Errorf("failed to resolve openai key: %w", err)
		}
		c.OpenAI.APIKey = secret.String()
	}
	if c.Pinata.JWT == "" && c.Pinata.JWTURL != "" {
		secret, err := service.Load(ctx, scy.NewResource(nil, c.Pinata.JWTURL, ""))
		if err != nil {
			return fmt.Errorf("failed to resolve pinata jwt: %w", err)
		}
		c.Pinata.JWT = secret.String()
	}
	return nil
}

// Validate reports obviously broken configuration before startup.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	for i := range c.Delegations {
		d := &c.Delegations[i]
		if d.Step == "" {
			return fmt.Errorf("delegations[%d].step is required", i)
		}
		if d.Endpoint == "" {
			return fmt.Errorf("delegations[%d].endpoint is required", i)
		}
	}
	return nil
}
