package crypt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":  {},
		"text":   []byte("session token value"),
		"binary": {0x00, 0xff, 0x10, 0x00, 0x4c, 0x53, 0x57},
		"large":  bytes.Repeat([]byte("leveldb-block"), 10_000),
	}
	for _, pass := range []string{"a", "correct horse battery staple", "päss wörd"} {
		c, err := New(pass)
		if err != nil {
			t.Fatalf("New(%q): %v", pass, err)
		}
		for name, in := range inputs {
			t.Run(pass+"/"+name, func(t *testing.T) {
				enc, err := c.Encrypt(in)
				if err != nil {
					t.Fatalf("Encrypt: %v", err)
				}
				if !IsEncrypted(enc) {
					t.Fatal("encrypted output lacks header")
				}
				dec, err := c.Decrypt(enc)
				if err != nil {
					t.Fatalf("Decrypt: %v", err)
				}
				if !bytes.Equal(dec, in) {
					t.Fatalf("round trip mismatch: got %d bytes, want %d", len(dec), len(in))
				}
			})
		}
	}
}

func TestDecrypt_AcrossInstances(t *testing.T) {
	a, _ := New("shared")
	b, _ := New("shared")

	enc, err := a.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := b.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt with second instance: %v", err)
	}
	if string(dec) != "hello" {
		t.Fatalf("got %q", dec)
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")
	enc, _ := a.Encrypt([]byte("secret"))
	if _, err := b.Decrypt(enc); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
}

func TestDecrypt_PlaintextRejected(t *testing.T) {
	c, _ := New("pass")
	_, err := c.Decrypt([]byte("just some plaintext"))
	if !errors.Is(err, ErrNotEncrypted) {
		t.Fatalf("err = %v, want ErrNotEncrypted", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	c, _ := New("pass")
	enc, _ := c.Encrypt([]byte("payload"))
	enc[len(enc)-1] ^= 0x01
	if _, err := c.Decrypt(enc); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestNew_EmptyPassphrase(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptyPassphrase) {
		t.Fatalf("err = %v, want ErrEmptyPassphrase", err)
	}
}

func TestEncryptFile_InPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000003.log")
	want := []byte("token=abc.def.ghi")
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatal(err)
	}
	c, _ := New("pass")

	if err := c.EncryptFile(path); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}
	onDisk, _ := os.ReadFile(path)
	if bytes.Contains(onDisk, want) {
		t.Fatal("plaintext still present after EncryptFile")
	}

	// A second encrypt is a no-op.
	if err := c.EncryptFile(path); err != nil {
		t.Fatalf("second EncryptFile: %v", err)
	}
	again, _ := os.ReadFile(path)
	if !bytes.Equal(onDisk, again) {
		t.Fatal("EncryptFile re-encrypted an encrypted file")
	}

	if err := c.DecryptFile(path); err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, want) {
		t.Fatalf("file = %q, want %q", got, want)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestDecryptFile_PlaintextLeftUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.ldb")
	if err := os.WriteFile(path, []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, _ := New("pass")
	if err := c.DecryptFile(path); !errors.Is(err, ErrNotEncrypted) {
		t.Fatalf("err = %v, want ErrNotEncrypted", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "plain" {
		t.Fatalf("file changed to %q", got)
	}
}
