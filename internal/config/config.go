package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the console config file looked up in the workspace.
const FileName = "agency.yml"

// Config models agency.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Token   string        `yaml:"token,omitempty"`
	} `yaml:"api"`
	Console struct {
		NoticeTTL             time.Duration `yaml:"notice_ttl"`
		CompletionReloadDelay time.Duration `yaml:"completion_reload_delay"`
	} `yaml:"console"`
	Sandbox struct {
		Addr      string   `yaml:"addr"`
		BasePath  string   `yaml:"base_path"`
		Breeds    []string `yaml:"breeds"`
		JWTSecret string   `yaml:"jwt_secret,omitempty"`
	} `yaml:"sandbox"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with agencyctl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config.api.base_url must be an absolute http(s) url, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config.api.timeout must be positive")
	}
	if c.Console.NoticeTTL <= 0 {
		return fmt.Errorf("config.console.notice_ttl must be positive")
	}
	if c.Console.CompletionReloadDelay <= 0 {
		return fmt.Errorf("config.console.completion_reload_delay must be positive")
	}
	if strings.TrimSpace(c.Sandbox.Addr) == "" {
		return fmt.Errorf("config.sandbox.addr is required")
	}
	if !strings.HasPrefix(c.Sandbox.BasePath, "/") {
		return fmt.Errorf("config.sandbox.base_path must start with /")
	}
	if len(c.Sandbox.Breeds) == 0 {
		return fmt.Errorf("config.sandbox.breeds is required")
	}
	seen := map[string]bool{}
	for _, b := range c.Sandbox.Breeds {
		key := strings.ToLower(strings.TrimSpace(b))
		if key == "" {
			return fmt.Errorf("config.sandbox.breeds contains an empty breed")
		}
		if seen[key] {
			return fmt.Errorf("breed %s listed twice", b)
		}
		seen[key] = true
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ApplyOverrides layers values set in v (env, flags) over the file config
// and revalidates. Only keys v reports as set are applied.
func (c *Config) ApplyOverrides(v *viper.Viper) error {
	if v == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	str("api.base_url", &c.API.BaseURL)
	dur("api.timeout", &c.API.Timeout)
	str("api.token", &c.API.Token)
	dur("console.notice_ttl", &c.Console.NoticeTTL)
	dur("console.completion_reload_delay", &c.Console.CompletionReloadDelay)
	str("sandbox.addr", &c.Sandbox.Addr)
	str("sandbox.base_path", &c.Sandbox.BasePath)
	str("sandbox.jwt_secret", &c.Sandbox.JWTSecret)
	if v.IsSet("sandbox.breeds") {
		c.Sandbox.Breeds = v.GetStringSlice("sandbox.breeds")
	}
	return c.Validate()
}

const defaultTemplate = `api:
  base_url: http://localhost:3001/api/v1
  timeout: 10s

console:
  notice_ttl: 5s
  completion_reload_delay: 1s

sandbox:
  addr: 127.0.0.1:3001
  base_path: /api/v1
  breeds:
    - Abyssinian
    - Bengal
    - British Shorthair
    - Maine Coon
    - Persian
    - Ragdoll
    - Siamese
    - Sphynx
`
