package archive

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janekbaraniewski/loginswap/internal/core"
	"github.com/janekbaraniewski/loginswap/internal/crypt"
)

var discordLayout = Layout{
	Files:     []string{"Preferences", "Cookies"},
	Folders:   []string{"Local Storage", "Session Storage"},
	Globs:     []string{"Cache/data_*", "Cache/index"},
	Sensitive: []string{"Local Storage/leveldb/*.ldb", "Local Storage/leveldb/*.log", "Session Storage/*.ldb"},
}

func put(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

func exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

func seedLive(t *testing.T, live string) {
	put(t, live, "Preferences", `{"theme":"dark"}`)
	put(t, live, "Local Storage/leveldb/000003.log", "token-data")
	put(t, live, "Local Storage/leveldb/000005.ldb", "more-token-data")
	put(t, live, "Local Storage/leveldb/CURRENT", "MANIFEST-000001")
	put(t, live, "Session Storage/000001.ldb", "session")
	put(t, live, "Cache/data_0", "cache0")
	put(t, live, "Cache/index", "idx")
	put(t, live, "Cache/f_000001", "not archived")
	put(t, live, "unrelated.txt", "leave me")
}

func newCipher(t *testing.T) *crypt.Cipher {
	t.Helper()
	c, err := crypt.New("test-passphrase")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCaptureInstallRoundTrip(t *testing.T) {
	live := t.TempDir()
	cache := t.TempDir()
	c := newCipher(t)
	s := NewStore(cache, c, nil)
	seedLive(t, live)

	if err := s.Capture(live, discordLayout, "Alice"); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	archived := s.Dir("Alice")
	for _, rel := range []string{"Preferences", "Local Storage/leveldb/CURRENT", "Cache/data_0", "Cache/index"} {
		if !exists(archived, rel) {
			t.Errorf("%s not archived", rel)
		}
	}
	if exists(archived, "Cache/f_000001") || exists(archived, "unrelated.txt") {
		t.Error("files outside the layout were archived")
	}
	if exists(archived, "Cookies") {
		t.Error("missing live file should be skipped, not created")
	}

	// Sensitive leaves are encrypted; structural files are not.
	raw, _ := os.ReadFile(filepath.Join(archived, "Local Storage", "leveldb", "000005.ldb"))
	if !crypt.IsEncrypted(raw) {
		t.Error("ldb file not encrypted in archive")
	}
	if got := read(t, archived, "Local Storage/leveldb/CURRENT"); got != "MANIFEST-000001" {
		t.Errorf("CURRENT = %q", got)
	}

	if err := s.Clear(live, discordLayout); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if exists(live, "Preferences") || exists(live, "Local Storage") || exists(live, "Cache/data_0") {
		t.Error("live layout not cleared")
	}
	if !exists(live, "unrelated.txt") || !exists(live, "Cache/f_000001") {
		t.Error("Clear removed files outside the layout")
	}

	if err := s.Install("Alice", live, discordLayout); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := read(t, live, "Local Storage/leveldb/000005.ldb"); got != "more-token-data" {
		t.Errorf("installed ldb = %q", got)
	}
	if got := read(t, live, "Session Storage/000001.ldb"); got != "session" {
		t.Errorf("installed session = %q", got)
	}
	if got := read(t, live, "Preferences"); got != `{"theme":"dark"}` {
		t.Errorf("Preferences = %q", got)
	}
}

func TestCapture_ReplacesPreviousArchive(t *testing.T) {
	live := t.TempDir()
	s := NewStore(t.TempDir(), nil, nil)
	put(t, live, "Preferences", "v1")
	put(t, live, "Cache/data_1", "old")
	if err := s.Capture(live, discordLayout, "Bob"); err != nil {
		t.Fatal(err)
	}

	os.Remove(filepath.Join(live, "Cache", "data_1"))
	put(t, live, "Preferences", "v2")
	if err := s.Capture(live, discordLayout, "Bob"); err != nil {
		t.Fatal(err)
	}
	if got := read(t, s.Dir("Bob"), "Preferences"); got != "v2" {
		t.Errorf("Preferences = %q", got)
	}
	if exists(s.Dir("Bob"), "Cache/data_1") {
		t.Error("stale file survived recapture")
	}
}

func TestInstall_MissingArchive(t *testing.T) {
	s := NewStore(t.TempDir(), nil, nil)
	err := s.Install("Nobody", t.TempDir(), discordLayout)
	if !errors.Is(err, core.ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestInstall_PlaintextSensitiveLeftAlone(t *testing.T) {
	live := t.TempDir()
	s := NewStore(t.TempDir(), newCipher(t), nil)
	put(t, s.Dir("Carol"), "Local Storage/leveldb/000001.ldb", "written before encryption existed")

	if err := s.Install("Carol", live, discordLayout); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := read(t, live, "Local Storage/leveldb/000001.ldb"); got != "written before encryption existed" {
		t.Errorf("ldb = %q", got)
	}
}

func TestInstall_ContinuesPastCopyFailure(t *testing.T) {
	live := t.TempDir()
	s := NewStore(t.TempDir(), newCipher(t), nil)
	seedLive(t, live)
	put(t, live, "Cookies", "cookie-jar")
	if err := s.Capture(live, discordLayout, "Alice"); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if err := s.Clear(live, discordLayout); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// A directory where a file should go cannot be overwritten.
	if err := os.MkdirAll(filepath.Join(live, "Cookies"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := s.Install("Alice", live, discordLayout)
	if err == nil {
		t.Fatal("Install succeeded despite an unwritable target")
	}
	if errors.Is(err, core.ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want a copy error", err)
	}
	for rel, want := range map[string]string{
		"Local Storage/leveldb/000003.log": "token-data",
		"Local Storage/leveldb/000005.ldb": "more-token-data",
		"Preferences":                      `{"theme":"dark"}`,
	} {
		raw, rerr := os.ReadFile(filepath.Join(live, filepath.FromSlash(rel)))
		if rerr != nil {
			t.Errorf("%s not installed: %v", rel, rerr)
			continue
		}
		if crypt.IsEncrypted(raw) {
			t.Errorf("%s left encrypted in the live root", rel)
		}
		if string(raw) != want {
			t.Errorf("%s = %q, want %q", rel, raw, want)
		}
	}
}

func TestStore_RejectsEscapingNames(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache", "fake")
	s := NewStore(root, nil, nil)
	put(t, s.Dir("Alice"), "Preferences", "x")
	other := filepath.Join(filepath.Dir(root), "other", "Bob")
	put(t, other, "Preferences", "y")

	for _, name := range []string{"..", "../other/Bob", `..\other`, "a/b", ""} {
		if s.Exists(name) {
			t.Errorf("Exists(%q) = true", name)
		}
		if err := s.Delete(name); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidName", name, err)
		}
		if err := s.Install(name, t.TempDir(), discordLayout); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("Install(%q) err = %v, want ErrInvalidName", name, err)
		}
		if err := s.Capture(t.TempDir(), discordLayout, name); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("Capture(%q) err = %v, want ErrInvalidName", name, err)
		}
		if err := s.Rename(name, "Carol"); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("Rename(%q) err = %v, want ErrInvalidName", name, err)
		}
		if err := s.Rename("Alice", name); !errors.Is(err, core.ErrInvalidName) {
			t.Errorf("Rename to %q err = %v, want ErrInvalidName", name, err)
		}
	}
	if !s.Exists("Alice") {
		t.Error("valid archive was touched")
	}
	if !exists(other, "Preferences") {
		t.Error("archive outside the store root was touched")
	}
}

func TestRenameAndDelete(t *testing.T) {
	s := NewStore(t.TempDir(), nil, nil)
	put(t, s.Dir("Alice"), "Preferences", "x")
	put(t, s.Dir("Bob"), "Preferences", "y")

	if err := s.Rename("Alice", "Bob"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("rename onto existing: err = %v", err)
	}
	if err := s.Rename("Alice", "Alicia"); err != nil {
		t.Fatal(err)
	}
	if s.Exists("Alice") || !s.Exists("Alicia") {
		t.Error("archive not moved")
	}
	if err := s.Rename("Ghost", "Spirit"); err != nil {
		t.Errorf("renaming missing archive: %v", err)
	}
	if err := s.Delete("Alicia"); err != nil {
		t.Fatal(err)
	}
	if s.Exists("Alicia") {
		t.Error("archive not deleted")
	}
}

func TestImages_Placeholder(t *testing.T) {
	im := NewImages(t.TempDir(), nil)
	p, err := im.Ensure(context.Background(), "Alice#1", "", time.Hour)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if filepath.Base(p) != "Alice-1.png" {
		t.Errorf("path = %s", p)
	}
	data, _ := os.ReadFile(p)
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("placeholder is not a PNG")
	}
	if im.Path("Alice#1") != p {
		t.Error("Path does not find placeholder")
	}
}

func TestImages_DownloadAndExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	now := time.Now()
	im := NewImages(t.TempDir(), nil)
	im.now = func() time.Time { return now }

	p, err := im.Ensure(context.Background(), "Bob", srv.URL, 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(p) != ".jpg" || hits.Load() != 1 {
		t.Fatalf("path = %s, hits = %d", p, hits.Load())
	}

	if _, err := im.Ensure(context.Background(), "Bob", srv.URL, 7*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("fresh image re-downloaded, hits = %d", hits.Load())
	}

	im.now = func() time.Time { return now.Add(8 * 24 * time.Hour) }
	if _, err := im.Ensure(context.Background(), "Bob", srv.URL, 7*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("expired image not refreshed, hits = %d", hits.Load())
	}
}

func TestImages_DownloadFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	im := NewImages(t.TempDir(), nil)
	p, err := im.Ensure(context.Background(), "Carol", srv.URL, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(p) != ".png" {
		t.Errorf("path = %s, want placeholder", p)
	}
}

func TestImages_RenameDelete(t *testing.T) {
	im := NewImages(t.TempDir(), nil)
	if _, err := im.Ensure(context.Background(), "Dan", "", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := im.Rename("Dan", "Daniel"); err != nil {
		t.Fatal(err)
	}
	if im.Path("Dan") != "" || im.Path("Daniel") == "" {
		t.Error("image not renamed")
	}
	if err := im.Delete("Daniel"); err != nil {
		t.Fatal(err)
	}
	if im.Path("Daniel") != "" {
		t.Error("image not deleted")
	}
	if err := im.Delete("Daniel"); err != nil {
		t.Errorf("deleting missing image: %v", err)
	}
}
