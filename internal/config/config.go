// Package config resolves newsroom settings. Values are layered: built-in
// defaults, then the YAML file, then .env, then the process environment.
// Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/apresai/newsroom/internal/chat"
	"github.com/apresai/newsroom/internal/imagegen"
	"github.com/apresai/newsroom/internal/stages"
	"github.com/apresai/newsroom/internal/tts"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "newsroom.yaml"

type Config struct {
	Chat    ChatConfig    `yaml:"chat"`
	TTS     TTSConfig     `yaml:"tts"`
	Images  ImagesConfig  `yaml:"images"`
	Content ContentConfig `yaml:"content"`
	GCP     GCPConfig     `yaml:"gcp"`
	MCP     MCPConfig     `yaml:"mcp"`

	AWSRegion    string `yaml:"aws_region"`
	SecretPrefix string `yaml:"secret_prefix"` // e.g. "/newsroom/"
	LogLevel     string `yaml:"log_level"`

	// Keys never come from the YAML file.
	Keys Keys `yaml:"-"`
}

type ChatConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type TTSConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"` // BCP-47, google provider only
}

type ImagesConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ContentConfig holds the editorial settings of the publication.
type ContentConfig struct {
	Persona  string `yaml:"persona"`
	Lens     string `yaml:"lens"`
	Language string `yaml:"language"`
	CTA      string `yaml:"cta"`
}

type GCPConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
}

type MCPConfig struct {
	Addr      string `yaml:"addr"`
	Transport string `yaml:"transport"` // http or stdio
	MaxRuns   int    `yaml:"max_runs"`
}

type Keys struct {
	Gemini    string
	Anthropic string
	OpenAI    string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Chat:      ChatConfig{Provider: "gemini", MaxTokens: 8192},
		TTS:       TTSConfig{Provider: "gemini"},
		Images:    ImagesConfig{Provider: "imagen"},
		GCP:       GCPConfig{Region: "us-central1"},
		MCP:       MCPConfig{Addr: ":8000", Transport: "http", MaxRuns: 20},
		AWSRegion: "us-east-1",
		LogLevel:  "info",
	}
}

// Load resolves the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Keys.Gemini, "GEMINI_API_KEY")
	setFromEnv(&c.Keys.Anthropic, "ANTHROPIC_API_KEY")
	setFromEnv(&c.Keys.OpenAI, "OPENAI_API_KEY")

	setFromEnv(&c.Chat.Provider, "NEWSROOM_CHAT")
	setFromEnv(&c.Chat.Model, "NEWSROOM_CHAT_MODEL")
	setFromEnv(&c.TTS.Provider, "NEWSROOM_TTS")
	setFromEnv(&c.TTS.Model, "NEWSROOM_TTS_MODEL")
	setFromEnv(&c.Images.Provider, "NEWSROOM_IMAGES")
	setFromEnv(&c.LogLevel, "NEWSROOM_LOG_LEVEL")
	setFromEnv(&c.SecretPrefix, "NEWSROOM_SECRET_PREFIX")

	setFromEnv(&c.MCP.Addr, "NEWSROOM_MCP_ADDR")
	setFromEnv(&c.MCP.Transport, "NEWSROOM_MCP_TRANSPORT")

	setFromEnv(&c.GCP.Project, "GCP_PROJECT")
	setFromEnv(&c.GCP.Region, "GCP_REGION")
	setFromEnv(&c.AWSRegion, "AWS_REGION")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks provider names and that every provider in use has the
// credentials it needs.
func (c *Config) Validate() error {
	if !slices.Contains(chat.ProviderNames(), c.Chat.Provider) {
		return fmt.Errorf("invalid chat provider %q: must be one of %s", c.Chat.Provider, strings.Join(chat.ProviderNames(), ", "))
	}
	if !slices.Contains(tts.ProviderNames(), c.TTS.Provider) {
		return fmt.Errorf("invalid TTS provider %q: must be one of %s", c.TTS.Provider, strings.Join(tts.ProviderNames(), ", "))
	}
	if !slices.Contains(imagegen.ProviderNames(), c.Images.Provider) {
		return fmt.Errorf("invalid image provider %q: must be one of %s", c.Images.Provider, strings.Join(imagegen.ProviderNames(), ", "))
	}
	if c.MCP.Transport != "http" && c.MCP.Transport != "stdio" {
		return fmt.Errorf("invalid MCP transport %q: must be http or stdio", c.MCP.Transport)
	}

	missing := c.MissingKeys()
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// MissingKeys lists the environment variables the selected providers need
// but that are not set, in a stable order.
func (c *Config) MissingKeys() []string {
	needed := map[string]bool{}
	switch c.Chat.Provider {
	case "gemini":
		needed["GEMINI_API_KEY"] = c.Keys.Gemini == ""
	case "claude":
		needed["ANTHROPIC_API_KEY"] = c.Keys.Anthropic == ""
	case "openai":
		needed["OPENAI_API_KEY"] = c.Keys.OpenAI == ""
	}
	switch c.TTS.Provider {
	case "gemini":
		needed["GEMINI_API_KEY"] = needed["GEMINI_API_KEY"] || c.Keys.Gemini == ""
	case "gemini-vertex":
		needed["GCP_PROJECT"] = c.GCP.Project == ""
	}
	if c.Images.Provider == "imagen" {
		needed["GEMINI_API_KEY"] = needed["GEMINI_API_KEY"] || c.Keys.Gemini == ""
	}

	var missing []string
	for k, v := range needed {
		if v {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return missing
}

// ChatBackend returns the settings for chat.NewBackend.
func (c *Config) ChatBackend() chat.Config {
	cc := chat.Config{
		Provider:  c.Chat.Provider,
		Model:     c.Chat.Model,
		MaxTokens: c.Chat.MaxTokens,
	}
	switch c.Chat.Provider {
	case "gemini":
		cc.APIKey = c.Keys.Gemini
	case "claude":
		cc.APIKey = c.Keys.Anthropic
	case "openai":
		cc.APIKey = c.Keys.OpenAI
	}
	return cc
}

func (c *Config) Speech() tts.ProviderConfig {
	return tts.ProviderConfig{
		APIKey:   c.Keys.Gemini,
		Model:    c.TTS.Model,
		Project:  c.GCP.Project,
		Region:   c.GCP.Region,
		Language: c.TTS.Language,
	}
}

func (c *Config) ImageGen() imagegen.Config {
	return imagegen.Config{
		Provider: c.Images.Provider,
		APIKey:   c.Keys.Gemini,
		Model:    c.Images.Model,
	}
}

// Settings returns the editorial settings; empty fields take the stage defaults.
func (c *Config) Settings() stages.Settings {
	return stages.Settings{
		Persona:  c.Content.Persona,
		Lens:     c.Content.Lens,
		Language: c.Content.Language,
		CTA:      c.Content.CTA,
	}
}
