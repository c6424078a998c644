// Package platform describes the launchers loginswap can switch: where
// their live data lives, which processes to stop, how to start them and how
// to tell who is logged in.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/janekbaraniewski/loginswap/internal/archive"
)

// Key sources.
const (
	KeyNone      = ""
	KeyTokenScan = "token_scan"
	KeyFileHash  = "file_hash"
	KeyRegistry  = "registry"
	KeyINI       = "ini_value"
)

// KeySpec selects how the live identity key is derived.
type KeySpec struct {
	Source string `json:"source,omitempty"`
	// Files are globs relative to the live root (token_scan), or a single
	// file (file_hash, ini_value).
	Files    []string `json:"files,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Section  string   `json:"section,omitempty"`
	Key      string   `json:"key,omitempty"`
}

// RegistryBinding is a HKCU value that belongs to the login.
type RegistryBinding struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Spec defines a platform. Fields with a ByOS variant take the entry for
// runtime.GOOS first.
type Spec struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	OS   []string `json:"os,omitempty"`

	Processes     []string          `json:"processes"`
	Exe           string            `json:"exe"`
	ExeByOS       map[string]string `json:"exe_by_os,omitempty"`
	LaunchArgs    string            `json:"launch_args,omitempty"`
	DefaultFolder string            `json:"default_folder"`
	FolderByOS    map[string]string `json:"default_folder_by_os,omitempty"`
	LiveRoot      string            `json:"live_root"`
	LiveRootByOS  map[string]string `json:"live_root_by_os,omitempty"`

	Layout   archive.Layout   `json:"layout"`
	Key      KeySpec          `json:"key"`
	Registry *RegistryBinding `json:"registry,omitempty"`

	// Extras are platform-specific settings with their defaults.
	Extras map[string]any `json:"extras,omitempty"`
	// ExtraArgs maps boolean extras to launch arguments added when set.
	ExtraArgs map[string]string `json:"extra_args,omitempty"`
}

func pick(goos string, byOS map[string]string, fallback string) string {
	if v, ok := byOS[goos]; ok {
		return v
	}
	return fallback
}

// Supported reports whether the platform runs on goos.
func (s Spec) Supported(goos string) bool {
	if len(s.OS) == 0 {
		return true
	}
	for _, o := range s.OS {
		if o == goos {
			return true
		}
	}
	return false
}

// Indexed reports whether identities are tracked by key. Platforms without
// a key source use the archive directory names as identities.
func (s Spec) Indexed() bool { return s.Key.Source != KeyNone }

func (s Spec) LiveRootPath() string {
	return Expand(pick(runtime.GOOS, s.LiveRootByOS, s.LiveRoot))
}

func (s Spec) DefaultFolderPath() string {
	return Expand(pick(runtime.GOOS, s.FolderByOS, s.DefaultFolder))
}

// ExePath joins the configured install folder with the executable name.
func (s Spec) ExePath(folder string) string {
	exe := pick(runtime.GOOS, s.ExeByOS, s.Exe)
	if filepath.IsAbs(exe) || folder == "" {
		return exe
	}
	return filepath.Join(Expand(folder), filepath.FromSlash(exe))
}

// Args returns the launch arguments for the given extras.
func (s Spec) Args(extras map[string]any) string {
	parts := []string{}
	if s.LaunchArgs != "" {
		parts = append(parts, s.LaunchArgs)
	}
	for _, key := range sortedKeys(s.ExtraArgs) {
		if on, _ := extras[key].(bool); on {
			parts = append(parts, s.ExtraArgs[key])
		}
	}
	return strings.Join(parts, " ")
}

// Expand replaces ${APPDATA}, ${LOCALAPPDATA}, ${HOME} and ${XDG_CONFIG_HOME}
// (and any other environment variable) in s.
func Expand(s string) string {
	return ExpandWith(s, lookupDir)
}

func ExpandWith(s string, lookup func(string) string) string {
	if !strings.Contains(s, "$") {
		return filepath.FromSlash(s)
	}
	return filepath.FromSlash(os.Expand(s, lookup))
}

func lookupDir(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	switch name {
	case "HOME", "USERPROFILE":
		return home
	case "APPDATA":
		dir, _ := os.UserConfigDir()
		return dir
	case "LOCALAPPDATA":
		if runtime.GOOS == "windows" {
			dir, _ := os.UserCacheDir()
			return dir
		}
		dir, _ := os.UserConfigDir()
		return dir
	case "XDG_CONFIG_HOME":
		return filepath.Join(home, ".config")
	}
	return ""
}
