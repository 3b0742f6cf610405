// Package config resolves jacin.toml into the typed configuration the
// coordination layer consumes, using Viper the way the teacher's config
// package does: layered search paths, SetDefault for zero-config startup,
// a single package-level instance behind Init/Get.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the fully resolved jacin configuration (spec.md §6).
type Config struct {
	Keybinds   KeybindsConfig   `mapstructure:"keybinds"`
	Completion CompletionConfig `mapstructure:"completion"`
	Behavior   BehaviorConfig   `mapstructure:"behavior"`
	Font       FontConfig       `mapstructure:"font"`
	Engine     EngineConfig     `mapstructure:"engine"`
}

// EngineConfig names the headless engine executable C2 spawns.
type EngineConfig struct {
	Binary string `mapstructure:"binary"`
}

// KeybindsConfig holds notation-string key bindings.
type KeybindsConfig struct {
	Commit string `mapstructure:"commit"`
}

// CompletionConfig selects which engine-side autocommands install the
// completion-candidate path.
type CompletionConfig struct {
	Adapter string `mapstructure:"adapter"` // "native" or "external"
}

// BehaviorConfig holds IME-lifecycle behavior toggles.
type BehaviorConfig struct {
	StartInsert    bool `mapstructure:"startinsert"`
	WriteToCommit  bool `mapstructure:"write_to_commit"`
}

// FontConfig drives the popup's renderer collaborator (C11); font
// rasterization itself is out of scope, but the metrics still need to
// be resolved for SHM buffer sizing.
type FontConfig struct {
	Family     string `mapstructure:"family"`
	MonoFamily string `mapstructure:"mono_family"`
	Size       int    `mapstructure:"size"`
}

// DefaultConfig provides the values spec.md §6 mandates as defaults.
var DefaultConfig = Config{
	Keybinds: KeybindsConfig{
		Commit: "<C-CR>",
	},
	Completion: CompletionConfig{
		Adapter: "native",
	},
	Behavior: BehaviorConfig{
		StartInsert:   true,
		WriteToCommit: true,
	},
	Font: FontConfig{
		Family:     "sans-serif",
		MonoFamily: "monospace",
		Size:       14,
	},
	Engine: EngineConfig{
		Binary: "nvim",
	},
}

var cfg *Config

// Init resolves jacin.toml via Viper, searching $XDG_CONFIG_HOME/jacin
// (or ~/.config/jacin when XDG_CONFIG_HOME is unset), then the current
// directory, in that order of precedence — the same layered convention
// the teacher's config package uses for waymon.toml.
func Init() error {
	viper.SetConfigName("jacin")
	viper.SetConfigType("toml")

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "jacin"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "jacin"))
	}
	viper.AddConfigPath(".")

	viper.SetDefault("keybinds", DefaultConfig.Keybinds)
	viper.SetDefault("completion", DefaultConfig.Completion)
	viper.SetDefault("behavior", DefaultConfig.Behavior)
	viper.SetDefault("font", DefaultConfig.Font)
	viper.SetDefault("engine", DefaultConfig.Engine)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return nil
}

// InitClean bypasses jacin.toml entirely, matching the --clean flag
// (spec.md §6): start with DefaultConfig and no file resolution.
func InitClean() {
	c := DefaultConfig
	cfg = &c
}

// Get returns the current configuration. Returns DefaultConfig if Init
// has not been called.
func Get() *Config {
	if cfg == nil {
		return &DefaultConfig
	}
	return cfg
}

// Save writes c to jacin.toml at GetConfigPath, replacing the current
// resolved configuration. Pushing each section through viper.Set
// before WriteConfigAs keeps Save consistent with a caller-built
// Config (e.g. `jacin setup`'s form result) rather than whatever was
// last read from disk.
func Save(c *Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("keybinds", c.Keybinds)
	viper.Set("completion", c.Completion)
	viper.Set("behavior", c.Behavior)
	viper.Set("font", c.Font)
	viper.Set("engine", c.Engine)

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cc := *c
	cfg = &cc
	return nil
}

// GetConfigPath returns the path jacin.toml is read from or would be
// written to.
func GetConfigPath() string {
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jacin", "jacin.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "jacin.toml")
	}
	return filepath.Join(home, ".config", "jacin", "jacin.toml")
}
