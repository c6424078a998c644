package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

type fakeBackend struct {
	elevated       bool
	elevatedProcs  map[string]bool
	running        map[string]bool
	stubborn       map[string]bool // survive Kill
	killed         []string
	directStarts   []string
	desktopStarts  []string
	startErr       error
	lastElevate    bool
	lastArgs       string
	exitAfterPolls map[string]int
	polls          map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		elevatedProcs:  map[string]bool{},
		running:        map[string]bool{},
		stubborn:       map[string]bool{},
		exitAfterPolls: map[string]int{},
		polls:          map[string]int{},
	}
}

func (f *fakeBackend) IsElevated() bool { return f.elevated }

func (f *fakeBackend) IsProcessElevated(name string) (bool, error) {
	return f.running[name] && f.elevatedProcs[name], nil
}

func (f *fakeBackend) Running(name string) (bool, error) {
	if n, ok := f.exitAfterPolls[name]; ok && f.running[name] {
		f.polls[name]++
		if f.polls[name] > n {
			f.running[name] = false
		}
	}
	return f.running[name], nil
}

func (f *fakeBackend) Kill(name string, _ core.StopMethod) error {
	f.killed = append(f.killed, name)
	if _, delayed := f.exitAfterPolls[name]; delayed {
		return nil
	}
	if !f.stubborn[name] {
		f.running[name] = false
	}
	return nil
}

func (f *fakeBackend) StartDirect(path string, elevate bool, args string) error {
	f.directStarts = append(f.directStarts, path)
	f.lastElevate = elevate
	f.lastArgs = args
	return f.startErr
}

func (f *fakeBackend) StartAsDesktopUser(path string, args string) error {
	f.desktopStarts = append(f.desktopStarts, path)
	f.lastArgs = args
	return f.startErr
}

func newTestManager(b Backend) (*Manager, *[]time.Duration) {
	m := NewManager(b, nil)
	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestStop_AllExit(t *testing.T) {
	b := newFakeBackend()
	b.running["Discord.exe"] = true
	b.running["Update.exe"] = true
	m, slept := newTestManager(b)

	if err := m.Stop(context.Background(), []string{"Discord.exe", "Update.exe", "absent.exe"}, core.StopForceful); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(b.killed) != 2 {
		t.Errorf("killed = %v, want the two running processes", b.killed)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestStop_NeverExits(t *testing.T) {
	b := newFakeBackend()
	b.running["game.exe"] = true
	b.stubborn["game.exe"] = true
	m, slept := newTestManager(b)

	err := m.Stop(context.Background(), []string{"game.exe"}, core.StopForceful)
	if !errors.Is(err, core.ErrStopTimeout) {
		t.Fatalf("err = %v, want ErrStopTimeout", err)
	}
	var timeout *StopTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %T, want *StopTimeoutError", err)
	}
	if len(timeout.Survivors) != 1 || timeout.Survivors[0] != "game.exe" {
		t.Errorf("survivors = %v", timeout.Survivors)
	}
	if len(*slept) != DefaultMaxPolls {
		t.Errorf("polls = %d, want %d", len(*slept), DefaultMaxPolls)
	}
	for _, d := range *slept {
		if d != time.Second {
			t.Fatalf("poll interval = %s, want 1s", d)
		}
	}
}

func TestStop_ExitsAfterFewPolls(t *testing.T) {
	b := newFakeBackend()
	b.running["upc.exe"] = true
	b.exitAfterPolls["upc.exe"] = 3
	m, _ := newTestManager(b)

	var waits []int
	m.OnWait = func(_ []string, attempt, _ int) { waits = append(waits, attempt) }

	if err := m.Stop(context.Background(), []string{"upc.exe"}, core.StopGraceful); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(waits) == 0 || len(waits) >= DefaultMaxPolls {
		t.Errorf("waits = %v", waits)
	}
}

func TestStop_ElevatedTargetRefused(t *testing.T) {
	b := newFakeBackend()
	b.running["steam.exe"] = true
	b.elevatedProcs["steam.exe"] = true
	m, _ := newTestManager(b)

	err := m.Stop(context.Background(), []string{"steam.exe"}, core.StopForceful)
	if !errors.Is(err, core.ErrStopPermission) {
		t.Fatalf("err = %v, want ErrStopPermission", err)
	}
	if len(b.killed) != 0 {
		t.Errorf("killed = %v, want nothing", b.killed)
	}
}

func TestStop_ElevatedCallerMayStopElevatedTarget(t *testing.T) {
	b := newFakeBackend()
	b.elevated = true
	b.running["steam.exe"] = true
	b.elevatedProcs["steam.exe"] = true
	m, _ := newTestManager(b)

	if err := m.Stop(context.Background(), []string{"steam.exe"}, core.StopForceful); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStop_ContextCancelled(t *testing.T) {
	b := newFakeBackend()
	b.running["game.exe"] = true
	b.stubborn["game.exe"] = true
	m := NewManager(b, nil)
	m.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Stop(ctx, []string{"game.exe"}, core.StopForceful); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStart_Routing(t *testing.T) {
	tests := []struct {
		name        string
		callerAdmin bool
		elevate     bool
		wantDesktop bool
	}{
		{name: "unelevated caller, unelevated target", callerAdmin: false, elevate: false, wantDesktop: false},
		{name: "unelevated caller, elevated target", callerAdmin: false, elevate: true, wantDesktop: false},
		{name: "elevated caller, elevated target", callerAdmin: true, elevate: true, wantDesktop: false},
		{name: "elevated caller, unelevated target", callerAdmin: true, elevate: false, wantDesktop: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			b.elevated = tt.callerAdmin
			m, _ := newTestManager(b)

			if err := m.Start(context.Background(), `C:\Discord\Update.exe`, tt.elevate, "--processStart Discord.exe"); err != nil {
				t.Fatalf("Start: %v", err)
			}
			gotDesktop := len(b.desktopStarts) == 1
			if gotDesktop != tt.wantDesktop {
				t.Fatalf("desktop launch = %v, want %v", gotDesktop, tt.wantDesktop)
			}
			if b.lastArgs != "--processStart Discord.exe" {
				t.Errorf("args = %q", b.lastArgs)
			}
			if !tt.wantDesktop && b.lastElevate != tt.elevate {
				t.Errorf("elevate = %v, want %v", b.lastElevate, tt.elevate)
			}
		})
	}
}

func TestStart_CancelSwallowed(t *testing.T) {
	b := newFakeBackend()
	b.startErr = core.ErrLaunchCancelled
	m, _ := newTestManager(b)
	if err := m.Start(context.Background(), "/opt/launcher", true, ""); err != nil {
		t.Fatalf("Start: %v, want nil for cancelled prompt", err)
	}
}

func TestStart_OtherErrorsPropagate(t *testing.T) {
	b := newFakeBackend()
	b.startErr = errors.New("file not found")
	m, _ := newTestManager(b)
	if err := m.Start(context.Background(), "/opt/launcher", false, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestStart_EmptyPath(t *testing.T) {
	m, _ := newTestManager(newFakeBackend())
	if err := m.Start(context.Background(), " ", false, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		image, name string
		want        bool
	}{
		{"Discord.exe", "Discord.exe", true},
		{"discord.exe", "Discord.exe", true},
		{"Discord", "Discord.exe", true},
		{"steamwebhelper", "steamwebhelper.exe", true},
		{"EpicGamesLaunc", "EpicGamesLauncher.exe", false},
		{"EpicGamesLaunch", "EpicGamesLauncher.exe", true},
		{"Discord.exe", "DiscordPTB.exe", false},
		{"", "Discord.exe", false},
	}
	for _, tt := range tests {
		if got := MatchName(tt.image, tt.name); got != tt.want {
			t.Errorf("MatchName(%q, %q) = %v, want %v", tt.image, tt.name, got, tt.want)
		}
	}
}
