package swap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// liveFile names the identity last installed into the live root. Platforms
// without a key source rely on it to know who is logged in.
const liveFile = "live.txt"

func (t target) livePath() string { return filepath.Join(t.dir, liveFile) }

// lastInstalled returns the identity in the live root, or "" when the live
// root was cleared or never installed by us.
func (t target) lastInstalled() string {
	data, err := os.ReadFile(t.livePath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// setLive records name as the live identity; an empty name clears it.
func (t target) setLive(name string) error {
	if name == "" {
		if err := os.Remove(t.livePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clearing live marker: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating platform dir: %w", err)
	}
	if err := os.WriteFile(t.livePath(), []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing live marker: %w", err)
	}
	return nil
}
