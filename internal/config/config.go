// Package config loads railyard's runtime configuration from config.toml,
// environment variables, and built-in defaults. Parsing the user-facing
// config file is an external-collaborator concern (spec §1); this package
// is a thin viper wrapper that registers defaults for the keys in
// setDefaults. Of those keys, cmd/railyard reads vcs.binary and
// backup.retention; the others are not read by any component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at process startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	configFileSet := false

	// 1. Walk up from CWD to find project .railyard/config.toml.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".railyard", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/railyard/config.toml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "railyard", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.railyard/config.toml).
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".railyard", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("RAILYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lock.timeout", "10m")
	v.SetDefault("lock.poll-interval", "200ms")
	v.SetDefault("queue.max-attempts", 3)
	v.SetDefault("queue.default-priority", 5)
	v.SetDefault("backup.retention", 10)
	v.SetDefault("undo.expiry", "24h")
	v.SetDefault("spawn.timeout", "4h")
	v.SetDefault("agent.heartbeat-timeout", "90s")
	v.SetDefault("vcs.binary", "jj")
	v.SetDefault("strict", false)
}

// WatchAndReload re-reads the config file whenever it changes on disk and
// invokes onChange with the new snapshot. It is a thin wrapper over viper's
// fsnotify-backed watcher; callers that don't need hot reload can ignore it.
func WatchAndReload(onChange func()) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if onChange != nil {
			onChange()
		}
	})
	v.WatchConfig()
}

// ConfigFileUsed returns the path of the config file actually loaded, or ""
// if none was found (pure defaults + environment).
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// Strict reports whether RAILYARD_STRICT=1 / strict=true enables stricter
// validation (spec §6 environment variables).
func Strict() bool {
	return GetBool("strict") || os.Getenv("RAILYARD_STRICT") == "1"
}

// TestMode reports whether RAILYARD_TEST_MODE=1 elides interactive prompts.
func TestMode() bool {
	return os.Getenv("RAILYARD_TEST_MODE") == "1"
}
