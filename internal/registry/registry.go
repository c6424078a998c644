// Package registry reads and writes single string values under
// HKEY_CURRENT_USER. Only Windows has a real implementation.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

var ErrUnsupported = errors.New("registry is not available on this OS")

type Store interface {
	// Get returns the value or an error wrapping core.ErrNotFound.
	Get(path, name string) (string, error)
	Set(path, name, value string) error
	// Delete removes the value; a missing value is not an error.
	Delete(path, name string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func memoryKey(path, name string) string { return path + "\x00" + name }

func (m *Memory) Get(path, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[memoryKey(path, name)]
	if !ok {
		return "", fmt.Errorf(`registry %s\%s: %w`, path, name, core.ErrNotFound)
	}
	return v, nil
}

func (m *Memory) Set(path, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memoryKey(path, name)] = value
	return nil
}

func (m *Memory) Delete(path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, memoryKey(path, name))
	return nil
}
