//go:build windows

package logging

import (
	"os"

	"golang.org/x/sys/windows"
)

// consoleHandle is the real stderr handle. STD_ERROR_HANDLE is only an ID for
// GetStdHandle and is rejected by GetConsoleMode.
func consoleHandle() windows.Handle {
	return windows.Handle(os.Stderr.Fd())
}

// enableColors turns on virtual terminal processing so ANSI colours render in conhost.
func enableColors() {
	handle := consoleHandle()
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		_ = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
