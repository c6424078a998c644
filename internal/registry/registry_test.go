package registry

import (
	"errors"
	"testing"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	const path = `Software\Epic Games\Unreal Engine\Identifiers`

	if _, err := m.Get(path, "AccountId"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := m.Set(path, "AccountId", "abc123"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(path, "AccountId")
	if err != nil || got != "abc123" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := m.Delete(path, "AccountId"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(path, "AccountId"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := m.Get(path, "AccountId"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
}
