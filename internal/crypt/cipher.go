// Package crypt encrypts individual archived files with a per-install
// passphrase.
//
// Encrypted files carry a small header so that decrypting a file which was
// never encrypted fails cleanly instead of producing garbage:
//
//	[Magic: "LSWE"] [Version: 1 byte] [Salt: 16 bytes] [Nonce: 24 bytes] [Ciphertext+Tag]
//
// The header bytes are authenticated as additional data.
package crypt

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const formatVersion byte = 0x01

const (
	saltSize = 16
	keySize  = chacha20poly1305.KeySize

	// KDFIterations is the PBKDF2-SHA256 work factor.
	KDFIterations = 100_000
)

var magic = []byte("LSWE")

const headerSize = 4 + 1 + saltSize + chacha20poly1305.NonceSizeX

var (
	// ErrNotEncrypted is returned when decrypting data without the header.
	ErrNotEncrypted    = errors.New("data is not in encrypted archive format")
	ErrEmptyPassphrase = errors.New("passphrase is empty")
)

// Cipher encrypts with one random salt per instance and caches derived keys
// by salt, so a capture touching many files runs the KDF once.
type Cipher struct {
	passphrase []byte
	salt       [saltSize]byte

	mu   sync.Mutex
	keys map[[saltSize]byte][]byte
}

func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	c := &Cipher{
		passphrase: []byte(passphrase),
		keys:       make(map[[saltSize]byte][]byte),
	}
	if _, err := io.ReadFull(rand.Reader, c.salt[:]); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return c, nil
}

func (c *Cipher) key(salt [saltSize]byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.keys[salt]; ok {
		return k
	}
	k := pbkdf2.Key(c.passphrase, salt[:], KDFIterations, keySize, sha256.New)
	c.keys[salt] = k
	return k
}

// Encrypt returns the encrypted form of plaintext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key(c.salt))
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	copy(out, magic)
	out[len(magic)] = formatVersion
	copy(out[len(magic)+1:], c.salt[:])
	nonce := out[len(magic)+1+saltSize : headerSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	header := out[:headerSize]
	return aead.Seal(out, nonce, plaintext, header), nil
}

// Decrypt reverses Encrypt. Data without the header yields ErrNotEncrypted.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	if v := data[len(magic)]; v != formatVersion {
		return nil, fmt.Errorf("encrypted file version %d is not supported (expected %d)", v, formatVersion)
	}
	if len(data) < headerSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("encrypted data is %d bytes, minimum is %d", len(data), headerSize+chacha20poly1305.Overhead)
	}

	var salt [saltSize]byte
	copy(salt[:], data[len(magic)+1:])
	nonce := data[len(magic)+1+saltSize : headerSize]

	aead, err := chacha20poly1305.NewX(c.key(salt))
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, data[headerSize:], data[:headerSize])
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or tampered file): %w", err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether data starts with the archive header.
func IsEncrypted(data []byte) bool {
	return len(data) > len(magic) && bytes.Equal(data[:len(magic)], magic)
}

// EncryptFile replaces the file at path with its encrypted form. Files that
// already carry the header are left alone.
func (c *Cipher) EncryptFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if IsEncrypted(data) {
		return nil
	}
	out, err := c.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", path, err)
	}
	return rewrite(path, out)
}

// DecryptFile replaces the file at path with its plaintext.
func (c *Cipher) DecryptFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	out, err := c.Decrypt(data)
	if err != nil {
		return fmt.Errorf("decrypting %s: %w", path, err)
	}
	return rewrite(path, out)
}

func rewrite(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
