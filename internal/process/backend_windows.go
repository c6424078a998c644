//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

type windowsBackend struct{}

func newSystemBackend() Backend {
	return windowsBackend{}
}

func (windowsBackend) IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func processIDs(name string) ([]uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snap, &entry); err != nil {
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return nil, nil
		}
		return nil, fmt.Errorf("walking processes: %w", err)
	}

	self := uint32(os.Getpid())
	var pids []uint32
	for {
		image := windows.UTF16ToString(entry.ExeFile[:])
		if entry.ProcessID != self && MatchName(image, name) {
			pids = append(pids, entry.ProcessID)
		}
		if err := windows.Process32Next(snap, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("walking processes: %w", err)
		}
	}
	return pids, nil
}

func (windowsBackend) Running(name string) (bool, error) {
	pids, err := processIDs(name)
	return len(pids) > 0, err
}

// IsProcessElevated treats processes whose token cannot be opened as
// elevated: an unelevated caller would not be able to terminate them either.
func (windowsBackend) IsProcessElevated(name string) (bool, error) {
	pids, err := processIDs(name)
	if err != nil {
		return false, err
	}
	for _, pid := range pids {
		h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
		if err != nil {
			if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
				return true, nil
			}
			continue
		}
		var token windows.Token
		err = windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
		windows.CloseHandle(h)
		if err != nil {
			return true, nil
		}
		elevated := token.IsElevated()
		token.Close()
		if elevated {
			return true, nil
		}
	}
	return false, nil
}

func (windowsBackend) Kill(name string, method core.StopMethod) error {
	if method == core.StopGraceful {
		// taskkill without /F asks windows to close; launchers that minimize to
		// tray usually still exit on WM_CLOSE.
		return exec.Command("taskkill", "/IM", name, "/T").Run()
	}
	pids, err := processIDs(name)
	if err != nil {
		return err
	}
	var firstErr error
	for _, pid := range pids {
		h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("open %d: %w", pid, err)
			}
			continue
		}
		if err := windows.TerminateProcess(h, 1); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("terminate %d: %w", pid, err)
		}
		windows.CloseHandle(h)
	}
	return firstErr
}

func (windowsBackend) StartDirect(path string, elevate bool, args string) error {
	verb := "open"
	if elevate {
		verb = "runas"
	}
	verbPtr, _ := windows.UTF16PtrFromString(verb)
	filePtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	var argsPtr *uint16
	if strings.TrimSpace(args) != "" {
		argsPtr, _ = windows.UTF16PtrFromString(args)
	}
	dirPtr, _ := windows.UTF16PtrFromString(filepath.Dir(path))

	err = windows.ShellExecute(0, verbPtr, filePtr, argsPtr, dirPtr, windows.SW_NORMAL)
	if errors.Is(err, windows.ERROR_CANCELLED) {
		return core.ErrLaunchCancelled
	}
	return err
}

// StartAsDesktopUser duplicates the token of the shell process (explorer)
// and starts path with it, so an elevated switcher launches the game
// launcher unelevated.
func (b windowsBackend) StartAsDesktopUser(path string, args string) error {
	if err := enablePrivilege("SeIncreaseQuotaPrivilege"); err != nil {
		return fmt.Errorf("enabling SeIncreaseQuotaPrivilege: %w", err)
	}

	shell := windows.GetShellWindow()
	if shell == 0 {
		// No shell (e.g. explorer not running); fall back to a direct launch.
		return b.StartDirect(path, false, args)
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(shell, &pid); err != nil {
		return fmt.Errorf("shell process id: %w", err)
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION, false, pid)
	if err != nil {
		return fmt.Errorf("open shell process: %w", err)
	}
	defer windows.CloseHandle(h)

	var shellToken windows.Token
	if err := windows.OpenProcessToken(h, windows.TOKEN_DUPLICATE, &shellToken); err != nil {
		return fmt.Errorf("open shell token: %w", err)
	}
	defer shellToken.Close()

	var primary windows.Token
	const access = windows.TOKEN_QUERY | windows.TOKEN_ASSIGN_PRIMARY | windows.TOKEN_DUPLICATE |
		windows.TOKEN_ADJUST_DEFAULT | windows.TOKEN_ADJUST_SESSIONID
	if err := windows.DuplicateTokenEx(shellToken, access, nil, windows.SecurityImpersonation, windows.TokenPrimary, &primary); err != nil {
		return fmt.Errorf("duplicate shell token: %w", err)
	}
	defer primary.Close()

	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Token:   syscall.Token(primary),
		CmdLine: syscall.EscapeArg(path) + " " + args,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func enablePrivilege(name string) error {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
		return err
	}
	defer token.Close()

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, namePtr, &luid); err != nil {
		return err
	}
	privs := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}
	return windows.AdjustTokenPrivileges(token, false, &privs, 0, nil, nil)
}
