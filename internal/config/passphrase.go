package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "loginswap"
	keyringUser    = "archive-passphrase"
)

// passMu serialises passphrase creation within the process.
var passMu sync.Mutex

// Passphrase returns the per-install passphrase that seals archived login
// files. The 0600 file at path is the copy of record and the OS keyring
// holds a mirror: a missing file is restored from the keyring, and a new
// passphrase is written to both. A new one is generated only when neither
// holds one, so a keyring that is locked or unreachable never replaces a
// passphrase that archives were sealed with.
func Passphrase(path string) (string, error) {
	passMu.Lock()
	defer passMu.Unlock()

	data, err := os.ReadFile(path)
	if err == nil {
		if p := strings.TrimSpace(string(data)); p != "" {
			return p, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	p, kerr := keyring.Get(keyringService, keyringUser)
	switch {
	case kerr == nil && p != "":
		if err := writePassphrase(path, p); err != nil {
			return "", err
		}
		return p, nil
	case kerr == nil, errors.Is(kerr, keyring.ErrNotFound), errors.Is(kerr, keyring.ErrUnsupportedPlatform):
	default:
		// The keyring may hold a passphrase it cannot hand out right now.
		// Without the file there is no way to tell, so nothing is generated.
		return "", fmt.Errorf("reading passphrase from keyring (unlock it, or write a passphrase to %s): %w", path, kerr)
	}

	p = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := writePassphrase(path, p); err != nil {
		return "", err
	}
	_ = keyring.Set(keyringService, keyringUser, p)
	return p, nil
}

func writePassphrase(path, p string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating passphrase dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(p+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing passphrase: %w", err)
	}
	return nil
}
