//go:build windows

package process

import (
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetShellWindow           = user32.NewProc("GetShellWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetAncestor              = user32.NewProc("GetAncestor")
	procGetWindowLongPtr         = user32.NewProc("GetWindowLongPtrW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowText            = user32.NewProc("GetWindowTextW")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procPostThreadMessage        = user32.NewProc("PostThreadMessageW")
)

type systemFinder struct{}

// NewSystemFinder enumerates real top-level windows via EnumWindows.
func NewSystemFinder() WindowFinder { return systemFinder{} }

func (systemFinder) FindByPID(pid int) (Window, bool) {
	return enumerate(func(w Window) bool { return w.PID == pid })
}

func (systemFinder) FindByTitle(title string) (Window, bool) {
	return enumerate(func(w Window) bool { return w.Title == title })
}

type enumState struct {
	match func(Window) bool
	found Window
	ok    bool
}

// enumCallback is created exactly once. syscall.NewCallback allocations are
// never released and share a small process-wide limit, while enumeration
// runs on every frame; a per-call callback would exhaust the limit and
// panic the presentation thread within seconds.
var enumCallback = syscall.NewCallback(enumWindow)

func enumWindow(hwnd uintptr, lparam uintptr) uintptr {
	st := (*enumState)(unsafe.Pointer(lparam))

	shell, _, _ := procGetShellWindow.Call()
	if hwnd == 0 || hwnd == shell {
		return 1
	}
	if v, _, _ := procIsWindowVisible.Call(hwnd); v == 0 {
		return 1
	}
	if root, _, _ := procGetAncestor.Call(hwnd, uintptr(win.GA_ROOT)); root != hwnd {
		return 1
	}
	if style, _, _ := procGetWindowLongPtr.Call(hwnd, uintptr(cintToUintptr(win.GWL_STYLE))); style&win.WS_DISABLED != 0 {
		return 1
	}

	w := describeWindow(hwnd)
	if !st.match(w) {
		return 1
	}
	st.found = w
	st.ok = true
	return 0 // stop enumeration
}

// enumerate walks top-level windows, skipping the shell window, invisible
// windows, non-root windows and disabled ones, and stops at the first match.
// First match wins; EnumWindows order is not guaranteed stable.
func enumerate(match func(Window) bool) (Window, bool) {
	state := &enumState{match: match}
	procEnumWindows.Call(enumCallback, uintptr(unsafe.Pointer(state)))
	return state.found, state.ok
}

func describeWindow(hwnd uintptr) Window {
	var pid uint32
	tid, _, _ := procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	var buf [256]uint16
	procGetWindowText.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	title := syscall.UTF16ToString(buf[:])

	var rect win.RECT
	procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))

	return Window{
		Handle:   hwnd,
		PID:      int(pid),
		ThreadID: uint32(tid),
		Title:    title,
		X:        int(rect.Left),
		Y:        int(rect.Top),
		Width:    int(rect.Right - rect.Left),
		Height:   int(rect.Bottom - rect.Top),
	}
}

// GWL_STYLE is negative; the conversion through int keeps the two's
// complement bit pattern GetWindowLongPtrW expects.
func cintToUintptr(v int32) uintptr { return uintptr(int(v)) }

// PostQuit asks the window's owning thread to quit, the graceful shutdown
// path for the helper.
func PostQuit(w Window) {
	if w.ThreadID != 0 {
		procPostThreadMessage.Call(uintptr(w.ThreadID), win.WM_QUIT, 0, 0)
	}
}

// KillStale terminates every process whose executable name matches name.
// Run once at engine construction to clean up helpers left over from a
// previous session.
func KillStale(name string) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err := windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if exe != name {
			continue
		}
		h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, entry.ProcessID)
		if err != nil {
			continue
		}
		_ = windows.TerminateProcess(h, 9)
		windows.CloseHandle(h)
	}
}
