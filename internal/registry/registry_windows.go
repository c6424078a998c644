//go:build windows

package registry

import (
	"errors"
	"fmt"

	winreg "golang.org/x/sys/windows/registry"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

type userStore struct{}

// NewUserStore returns the HKEY_CURRENT_USER store.
func NewUserStore() Store { return userStore{} }

func (userStore) Get(path, name string) (string, error) {
	k, err := winreg.OpenKey(winreg.CURRENT_USER, path, winreg.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return "", fmt.Errorf(`registry %s: %w`, path, core.ErrNotFound)
		}
		return "", fmt.Errorf(`opening HKCU\%s: %w`, path, err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return "", fmt.Errorf(`registry %s\%s: %w`, path, name, core.ErrNotFound)
		}
		return "", fmt.Errorf(`reading HKCU\%s\%s: %w`, path, name, err)
	}
	return v, nil
}

func (userStore) Set(path, name, value string) error {
	k, _, err := winreg.CreateKey(winreg.CURRENT_USER, path, winreg.SET_VALUE)
	if err != nil {
		return fmt.Errorf(`opening HKCU\%s: %w`, path, err)
	}
	defer k.Close()
	if err := k.SetStringValue(name, value); err != nil {
		return fmt.Errorf(`writing HKCU\%s\%s: %w`, path, name, err)
	}
	return nil
}

func (userStore) Delete(path, name string) error {
	k, err := winreg.OpenKey(winreg.CURRENT_USER, path, winreg.SET_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(`opening HKCU\%s: %w`, path, err)
	}
	defer k.Close()
	if err := k.DeleteValue(name); err != nil && !errors.Is(err, winreg.ErrNotExist) {
		return fmt.Errorf(`deleting HKCU\%s\%s: %w`, path, name, err)
	}
	return nil
}
