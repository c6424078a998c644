package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestPassphrase_GeneratedOnce(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "data", "passphrase")

	first, err := Passphrase(path)
	if err != nil {
		t.Fatalf("Passphrase: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("passphrase length = %d, want 64", len(first))
	}
	second, err := Passphrase(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("passphrase changed between calls")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("passphrase file missing: %v", err)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("passphrase file mode = %o, want 600", perm)
		}
	}
	if got, err := keyring.Get(keyringService, keyringUser); err != nil || got != first {
		t.Errorf("keyring copy = %q, %v", got, err)
	}
}

func TestPassphrase_SurvivesKeyringOutage(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "passphrase")
	first, err := Passphrase(path)
	if err != nil {
		t.Fatal(err)
	}

	keyring.MockInitWithError(errors.New("org.freedesktop.secrets not provided"))
	second, err := Passphrase(path)
	if err != nil {
		t.Fatalf("Passphrase with keyring down: %v", err)
	}
	if first != second {
		t.Error("passphrase changed while the keyring was unavailable")
	}
}

func TestPassphrase_RestoresFileFromKeyring(t *testing.T) {
	keyring.MockInit()
	if err := keyring.Set(keyringService, keyringUser, "from-keyring"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "passphrase")

	got, err := Passphrase(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-keyring" {
		t.Errorf("passphrase = %q, want from-keyring", got)
	}
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) != "from-keyring" {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestPassphrase_KeyringErrorWithoutFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring locked"))
	path := filepath.Join(t.TempDir(), "passphrase")

	if _, err := Passphrase(path); err == nil {
		t.Fatal("generated a passphrase while the keyring could not be read")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("passphrase file written after keyring error")
	}
}

func TestPassphrase_ExistingFileWins(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "passphrase")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Passphrase(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-file" {
		t.Errorf("passphrase = %q, want from-file", got)
	}
}
