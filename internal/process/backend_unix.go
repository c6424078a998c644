//go:build unix

package process

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

type unixBackend struct {
	list func() ([]procEntry, error)
}

type procEntry struct {
	PID  int
	UID  int
	Name string
}

func newSystemBackend() Backend {
	return &unixBackend{list: listProcesses}
}

func listProcesses() ([]procEntry, error) {
	out, err := exec.Command("ps", "-A", "-o", "pid=", "-o", "uid=", "-o", "comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return parsePS(out), nil
}

// parsePS reads "pid uid comm" lines. comm may contain spaces and, on
// macOS, a full path.
func parsePS(out []byte) []procEntry {
	var entries []procEntry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		uid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		name := strings.Join(fields[2:], " ")
		entries = append(entries, procEntry{PID: pid, UID: uid, Name: filepath.Base(name)})
	}
	return entries
}

func (b *unixBackend) matching(name string) ([]procEntry, error) {
	all, err := b.list()
	if err != nil {
		return nil, err
	}
	var out []procEntry
	for _, p := range all {
		if p.PID == os.Getpid() {
			continue
		}
		if MatchName(p.Name, name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *unixBackend) IsElevated() bool {
	return unix.Geteuid() == 0
}

func (b *unixBackend) IsProcessElevated(name string) (bool, error) {
	procs, err := b.matching(name)
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.UID == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (b *unixBackend) Running(name string) (bool, error) {
	procs, err := b.matching(name)
	if err != nil {
		return false, err
	}
	return len(procs) > 0, nil
}

func (b *unixBackend) Kill(name string, method core.StopMethod) error {
	procs, err := b.matching(name)
	if err != nil {
		return err
	}
	sig := unix.SIGKILL
	if method == core.StopGraceful {
		sig = unix.SIGTERM
	}
	var firstErr error
	for _, p := range procs {
		if err := unix.Kill(p.PID, sig); err != nil && err != unix.ESRCH && firstErr == nil {
			firstErr = fmt.Errorf("signal %d: %w", p.PID, err)
		}
	}
	return firstErr
}

func (b *unixBackend) StartDirect(path string, elevate bool, args string) error {
	argv := strings.Fields(args)
	var cmd *exec.Cmd
	if elevate && !b.IsElevated() {
		cmd = exec.Command("pkexec", append([]string{path}, argv...)...)
	} else {
		cmd = exec.Command(path, argv...)
	}
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return startDetached(cmd)
}

// StartAsDesktopUser drops to the account that invoked sudo. Without sudo
// metadata the process is started directly.
func (b *unixBackend) StartAsDesktopUser(path string, args string) error {
	uid, uerr := strconv.ParseUint(os.Getenv("SUDO_UID"), 10, 32)
	gid, gerr := strconv.ParseUint(os.Getenv("SUDO_GID"), 10, 32)
	if uerr != nil || gerr != nil {
		return b.StartDirect(path, false, args)
	}
	cmd := exec.Command(path, strings.Fields(args)...)
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:     true,
		Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
	}
	return startDetached(cmd)
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
