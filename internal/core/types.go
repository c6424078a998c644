package core

import (
	"fmt"
	"strings"
)

type Identity struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Platform    string `json:"platform"`
}

type StopMethod int

const (
	StopForceful StopMethod = iota
	StopGraceful
)

func (m StopMethod) String() string {
	if m == StopGraceful {
		return "graceful"
	}
	return "forceful"
}

// ValidateDisplayName rejects names that cannot be used as a single archive
// directory component.
func ValidateDisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("display name is empty: %w", ErrInvalidName)
	case trimmed != name:
		return fmt.Errorf("display name %q has leading or trailing spaces: %w", name, ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("display name %q is reserved: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, `/\:*?"<>|`):
		return fmt.Errorf("display name %q contains path characters: %w", name, ErrInvalidName)
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("display name %q contains control characters: %w", name, ErrInvalidName)
		}
	}
	return nil
}

// CleanFileName maps a display name to something safe for image file names.
func CleanFileName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			continue
		case r == '#':
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
