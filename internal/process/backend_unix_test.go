//go:build unix

package process

import "testing"

func TestParsePS(t *testing.T) {
	out := []byte(`    1     0 systemd
  812  1000 /Applications/Discord.app/Contents/MacOS/Discord
  900  1000 Discord Helper
 bad  line
  901  1000
`)
	got := parsePS(out)
	if len(got) != 3 {
		t.Fatalf("parsed %d entries, want 3: %+v", len(got), got)
	}
	if got[1].PID != 812 || got[1].UID != 1000 || got[1].Name != "Discord" {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if got[2].Name != "Discord Helper" {
		t.Errorf("entry 2 name = %q", got[2].Name)
	}
}

func TestUnixBackend_Matching(t *testing.T) {
	b := &unixBackend{list: func() ([]procEntry, error) {
		return []procEntry{
			{PID: 10, UID: 0, Name: "upc"},
			{PID: 11, UID: 1000, Name: "Discord"},
			{PID: 12, UID: 1000, Name: "Discord"},
		}, nil
	}}

	running, err := b.Running("Discord.exe")
	if err != nil || !running {
		t.Fatalf("Running = %v, %v", running, err)
	}
	elevated, err := b.IsProcessElevated("upc.exe")
	if err != nil || !elevated {
		t.Fatalf("IsProcessElevated(upc) = %v, %v", elevated, err)
	}
	elevated, _ = b.IsProcessElevated("Discord")
	if elevated {
		t.Fatal("Discord reported elevated")
	}
	running, _ = b.Running("EpicGamesLauncher")
	if running {
		t.Fatal("EpicGamesLauncher reported running")
	}
}
