package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	LLM      LLMConfig       `yaml:"llm"`
	Outbound OutboundConfig  `yaml:"outbound"`
	Triggers []TriggerConfig `yaml:"triggers"`
}

// ServerConfig holds inbound SMTP listener settings
type ServerConfig struct {
	SMTPPort       int       `yaml:"smtp_port"`
	SMTPHost       string    `yaml:"smtp_host"`
	TLS            TLSConfig `yaml:"tls"`
	AllowedDomains []string  `yaml:"allowed_domains"`
}

// TLSConfig holds TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig holds run-log database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds the extraction model settings. Temperature defaults low:
// a collections reply must be repeatable, not creative.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// OutboundConfig holds reply delivery settings
type OutboundConfig struct {
	Provider    string `yaml:"provider"` // "resend", "smtp", or empty for none
	ResendKey   string `yaml:"resend_key"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
	// SMTP relay settings (if provider is "smtp")
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TriggerConfig defines which inbound emails start a pipeline run
type TriggerConfig struct {
	Name  string      `yaml:"name"`
	Match MatchConfig `yaml:"match"`
}

// MatchConfig defines email matching criteria
type MatchConfig struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Subject string `yaml:"subject"`
}

// CompiledMatch holds compiled regex patterns for matching
type CompiledMatch struct {
	From    *regexp.Regexp
	To      *regexp.Regexp
	Subject *regexp.Regexp
}

// Compile compiles the match patterns into regex
func (m *MatchConfig) Compile() (*CompiledMatch, error) {
	cm := &CompiledMatch{}
	var err error

	if m.From != "" {
		cm.From, err = regexp.Compile(m.From)
		if err != nil {
			return nil, err
		}
	}

	if m.To != "" {
		cm.To, err = regexp.Compile(m.To)
		if err != nil {
			return nil, err
		}
	}

	if m.Subject != "" {
		cm.Subject, err = regexp.Compile(m.Subject)
		if err != nil {
			return nil, err
		}
	}

	return cm, nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.SMTPPort == 0 {
		c.Server.SMTPPort = 2525
	}
	if c.Server.SMTPHost == "" {
		c.Server.SMTPHost = "0.0.0.0"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./dunbot.db"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
}

// validate rejects configurations that cannot produce a working pipeline
func (c *Config) validate() error {
	switch c.Outbound.Provider {
	case "", "none":
		// replies are composed but not delivered
	case "resend":
		if c.Outbound.ResendKey == "" {
			return fmt.Errorf("outbound: resend_key required for resend provider")
		}
		if c.Outbound.FromAddress == "" {
			return fmt.Errorf("outbound: from_address required for resend provider")
		}
	case "smtp":
		if c.Outbound.Host == "" {
			return fmt.Errorf("outbound: host required for smtp provider")
		}
		if c.Outbound.FromAddress == "" {
			return fmt.Errorf("outbound: from_address required for smtp provider")
		}
	default:
		return fmt.Errorf("outbound: unknown provider %q", c.Outbound.Provider)
	}

	for i := range c.Triggers {
		if _, err := c.Triggers[i].Match.Compile(); err != nil {
			return fmt.Errorf("trigger %q: %w", c.Triggers[i].Name, err)
		}
	}

	return nil
}
