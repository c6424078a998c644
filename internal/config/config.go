// Package config holds loginswap's own settings and the on-disk layout of
// its data directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/caarlos0/env/v11"
)

const DefaultHistoryDays = 90

type Config struct {
	// DataDir holds settings, indexes, images and history.
	DataDir string `json:"data_dir,omitempty" env:"LOGINSWAP_DATA_DIR"`
	// CacheDir holds the identity archives; defaults to DataDir/cache.
	CacheDir string `json:"cache_dir,omitempty" env:"LOGINSWAP_CACHE_DIR"`
	Debug    bool   `json:"debug" env:"LOGINSWAP_DEBUG"`

	// HistoryDays is how long swap history is kept; 0 keeps it forever.
	HistoryDays  int  `json:"history_days"`
	CheckUpdates bool `json:"check_updates"`
}

func DefaultConfig() Config {
	return Config{
		HistoryDays:  DefaultHistoryDays,
		CheckUpdates: true,
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "loginswap")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "loginswap")
}

func defaultDataDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "loginswap")
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "loginswap")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "loginswap")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// PlatformsPath is the JSONC file with user-defined platforms.
func PlatformsPath() string {
	return filepath.Join(ConfigDir(), "platforms.jsonc")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads path, applies environment overrides and fills in the
// directories that were left empty.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return resolveDirs(DefaultConfig()), fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return resolveDirs(cfg), fmt.Errorf("reading config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return resolveDirs(cfg), fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.HistoryDays < 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	return resolveDirs(cfg), nil
}

func resolveDirs(cfg Config) Config {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	return cfg
}

func (c Config) SettingsDir() string   { return filepath.Join(c.DataDir, "settings") }
func (c Config) ImagesDir() string     { return filepath.Join(c.DataDir, "images") }
func (c Config) RecentPath() string    { return filepath.Join(c.DataDir, "recent.json") }
func (c Config) HistoryPath() string   { return filepath.Join(c.DataDir, "history.db") }
func (c Config) CrashNotePath() string { return filepath.Join(c.DataDir, "LastError.txt") }
func (c Config) PassphrasePath() string {
	return filepath.Join(c.DataDir, "passphrase")
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Update applies fn to the stored config and writes it back. Environment
// overrides are not persisted.
func Update(path string, fn func(*Config)) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	fn(&cfg)
	return SaveTo(path, cfg)
}
