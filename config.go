package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	koanfenv "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// Config is the application configuration, layered user config < project
// config < environment, per the config precedence the CLI documents.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Logging LoggingConfig `koanf:"logging"`
	UI      UIConfig      `koanf:"ui"`
	LLM     LLMConfig     `koanf:"llm"`
	Session SessionConfig `koanf:"session"`
	Sandbox SandboxConfig `koanf:"sandbox"`
}

// StorageConfig points at the chats root and the advisory sqlite index.
type StorageConfig struct {
	ChatsRoot string `koanf:"chats_root"`
	IndexPath string `koanf:"index_path"`
}

// LoggingConfig controls slog + lumberjack rotation.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// LLMConfig configures the ChatClient's backend.
type LLMConfig struct {
	Provider      string   `koanf:"provider"`
	Model         string   `koanf:"model"`
	APIKey        string   `koanf:"api_key"`
	BaseURL       string   `koanf:"base_url"`
	MaxTokens     int      `koanf:"max_tokens"`
	AuthToken     string   `koanf:"auth_token"`
	RefreshToken  string   `koanf:"refresh_token"`
	FakeResponses []string `koanf:"-"` // test-only, never loaded from file/env
}

// SessionConfig controls session listing/lookup behavior.
type SessionConfig struct {
	ListLimit int `koanf:"list_limit"`
}

// UIConfig controls the TUI's theme and render cadence.
type UIConfig struct {
	Theme           string `koanf:"theme"`
	RefreshHertz    int    `koanf:"refresh_hertz"`
	ShowTokenUsage  bool   `koanf:"show_token_usage"`
}

// SandboxConfig controls the run_shell_command tool's execution backend.
type SandboxConfig struct {
	Mode              string   `koanf:"mode"` // "host" or "podman"
	Image             string   `koanf:"image"`
	TimeoutSeconds    int      `koanf:"timeout_seconds"`
	AllowHostFallback bool     `koanf:"allow_host_fallback"`
	ApprovedRootTokens []string `koanf:"approved_root_tokens"`
}

func defaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".mogzi")

	return Config{
		Storage: StorageConfig{
			ChatsRoot: filepath.Join(root, "chats"),
			IndexPath: filepath.Join(root, "index.sqlite"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			FilePath:   filepath.Join(root, "mogzi.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Session: SessionConfig{
			ListLimit: 50,
		},
		UI: UIConfig{
			Theme:          "default",
			RefreshHertz:   30,
			ShowTokenUsage: true,
		},
		Sandbox: SandboxConfig{
			Mode:              "host",
			TimeoutSeconds:    600,
			AllowHostFallback: true,
			ApprovedRootTokens: []string{"ls", "cat", "git", "go", "grep", "find"},
		},
	}
}

// LoadConfig layers ~/.config/mogzi/config.toml, ./.mogzi/config.toml, and
// MOGZI_-prefixed environment variables over the defaults.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if homeDir, err := os.UserHomeDir(); err != nil {
		log.Printf("failed to get user home directory: %v", err)
	} else {
		userConfigPath := filepath.Join(homeDir, ".config", "mogzi", "config.toml")
		if err := k.Load(file.Provider(userConfigPath), koanftoml.Parser()); err != nil {
			log.Printf("no user config loaded from %s: %v", userConfigPath, err)
		}
	}

	projectConfigPath := filepath.Join(".mogzi", "config.toml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := k.Load(file.Provider(projectConfigPath), koanftoml.Parser()); err != nil {
			log.Printf("failed to load project config from %s: %v", projectConfigPath, err)
		}
	}

	if err := k.Load(koanfenv.Provider(".", koanfenv.Opt{
		Prefix: "MOGZI_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "MOGZI_")), "_", ".")
			return key, value
		},
	}), nil); err != nil {
		log.Printf("failed to load environment variables: %v", err)
	}

	config := defaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", ErrBadArgument, err)
	}

	if config.LLM.APIKey == "" {
		if key, err := GetAPIKeyFromKeyring(config.LLM.Provider); err == nil && key != "" {
			config.LLM.APIKey = key
		} else {
			switch config.LLM.Provider {
			case "anthropic":
				config.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			case "openai":
				config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			case "googleai":
				config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
			}
		}
	}

	return &config, nil
}

// LoadConfigOverride re-layers an explicit config file (e.g. from --config)
// on top of an already-loaded Config, taking precedence over every layer
// already applied to it, environment variables included.
func LoadConfigOverride(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
		return fmt.Errorf("%w: loading %s: %v", ErrIO, path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("%w: unmarshaling %s: %v", ErrBadArgument, path, err)
	}
	return nil
}

// SaveModelChoice persists the chosen provider/model to the project config
// file, leaving secrets in the keyring.
func SaveModelChoice(provider, model string) error {
	dir := ".mogzi"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating .mogzi directory: %v", ErrIO, err)
	}
	path := filepath.Join(dir, "config.toml")

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			return fmt.Errorf("%w: loading existing project config: %v", ErrIO, err)
		}
	}
	if err := k.Set("llm.provider", provider); err != nil {
		return fmt.Errorf("%w: setting provider: %v", ErrIO, err)
	}
	if err := k.Set("llm.model", model); err != nil {
		return fmt.Errorf("%w: setting model: %v", ErrIO, err)
	}

	data, err := k.Marshal(koanftoml.Parser())
	if err != nil {
		return fmt.Errorf("%w: marshaling config: %v", ErrIO, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing config.toml: %v", ErrIO, err)
	}
	return nil
}
