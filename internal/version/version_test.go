package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v1.2.3"
	if got := Current(); got != "v1.2.3" {
		t.Errorf("Current = %q", got)
	}
	if got := String(); !strings.HasPrefix(got, "v1.2.3 (") {
		t.Errorf("String = %q", got)
	}
}
