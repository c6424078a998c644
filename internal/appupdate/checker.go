// Package appupdate asks GitHub whether a newer loginswap release exists and
// how the running binary should be upgraded.
package appupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	latestReleaseURL = "https://api.github.com/repos/janekbaraniewski/loginswap/releases/latest"
	installScriptURL = "https://github.com/janekbaraniewski/loginswap/releases/latest/download/install.sh"
	requestTimeout   = 2 * time.Second
	tokenEnv         = "LOGINSWAP_GITHUB_TOKEN"
)

type InstallMethod string

const (
	InstallUnknown  InstallMethod = "unknown"
	InstallGo       InstallMethod = "go_install"
	InstallScript   InstallMethod = "install_script"
	InstallScoop    InstallMethod = "scoop"
	InstallWinget   InstallMethod = "winget"
	InstallHomebrew InstallMethod = "homebrew"
)

var hints = map[InstallMethod]string{
	InstallGo:       "go install github.com/janekbaraniewski/loginswap/cmd/loginswap@latest",
	InstallScoop:    "scoop update loginswap",
	InstallWinget:   "winget upgrade loginswap",
	InstallHomebrew: "brew upgrade janekbaraniewski/tap/loginswap",
	InstallScript:   "curl -fsSL " + installScriptURL + " | bash",
	InstallUnknown:  "download the latest release from https://github.com/janekbaraniewski/loginswap/releases",
}

type Options struct {
	CurrentVersion string
	ExecutablePath string
	// URL overrides the GitHub latest-release endpoint.
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Result struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	InstallMethod   InstallMethod
	UpgradeHint     string
}

// Check compares the running version with the latest release. Development
// and pre-release builds are never reported as outdated.
func Check(ctx context.Context, opts Options) (Result, error) {
	method := detectInstallMethod(executablePath(opts.ExecutablePath))
	res := Result{
		CurrentVersion: stableVersion(opts.CurrentVersion),
		InstallMethod:  method,
		UpgradeHint:    hints[method],
	}
	if res.CurrentVersion == "" {
		return res, nil
	}

	rel, err := fetchLatest(ctx, opts, res.CurrentVersion)
	if err != nil {
		return res, err
	}
	res.LatestVersion = rel.version
	res.ReleaseURL = rel.htmlURL
	res.UpdateAvailable = semver.Compare(rel.version, res.CurrentVersion) > 0
	return res, nil
}

type release struct {
	version string
	htmlURL string
}

func fetchLatest(ctx context.Context, opts Options, current string) (release, error) {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		endpoint = latestReleaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return release{}, fmt.Errorf("building release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "loginswap/"+current)
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" && isGitHubAPI(endpoint) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return release{}, fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return release{}, fmt.Errorf("fetching latest release: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return release{}, fmt.Errorf("decoding latest release: %w", err)
	}
	v := stableVersion(payload.TagName)
	if v == "" {
		return release{}, fmt.Errorf("latest release tag %q is not a stable version", payload.TagName)
	}
	return release{version: v, htmlURL: payload.HTMLURL}, nil
}

// stableVersion returns the canonical "vX.Y.Z" form, or "" for anything that
// is not a plain release.
func stableVersion(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return ""
	}
	return semver.Canonical(v)
}

func executablePath(explicit string) string {
	p := strings.TrimSpace(explicit)
	if p == "" {
		exe, err := os.Executable()
		if err != nil {
			return ""
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		p = exe
	}
	return strings.ToLower(filepath.ToSlash(filepath.Clean(p)))
}

// installRules are checked in order; the first match wins.
var installRules = []struct {
	method InstallMethod
	match  func(path string) bool
}{
	{InstallHomebrew, func(p string) bool { return strings.Contains(p, "/cellar/loginswap/") }},
	{InstallScoop, func(p string) bool { return strings.Contains(p, "/scoop/apps/loginswap/") }},
	{InstallWinget, func(p string) bool { return strings.Contains(p, "/microsoft/winget/packages/") }},
	{InstallGo, inGoBin},
	{InstallScript, func(p string) bool {
		home, _ := os.UserHomeDir()
		home = strings.ToLower(filepath.ToSlash(home))
		return p == "/usr/local/bin/loginswap" || (home != "" && p == home+"/.local/bin/loginswap")
	}},
}

func detectInstallMethod(path string) InstallMethod {
	if path == "" {
		return InstallUnknown
	}
	for _, r := range installRules {
		if r.match(path) {
			return r.method
		}
	}
	return InstallUnknown
}

func inGoBin(path string) bool {
	dir, base := filepath.ToSlash(filepath.Dir(path)), filepath.Base(path)
	if base != "loginswap" && base != "loginswap.exe" {
		return false
	}
	if strings.HasSuffix(dir, "/go/bin") {
		return true
	}
	candidates := []string{os.Getenv("GOBIN")}
	for _, gp := range filepath.SplitList(os.Getenv("GOPATH")) {
		candidates = append(candidates, filepath.Join(gp, "bin"))
	}
	for _, c := range candidates {
		if c != "" && strings.ToLower(filepath.ToSlash(filepath.Clean(c))) == dir {
			return true
		}
	}
	return false
}

func isGitHubAPI(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https") && strings.EqualFold(u.Hostname(), "api.github.com")
}
