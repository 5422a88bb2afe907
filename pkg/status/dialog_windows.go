//go:build windows

package status

import "github.com/gonutz/w32"

const mbTopmost = 0x00040000

// ShowFatalError blocks on a message box describing a fatal deployment
// failure. It is only called for interactive runs.
func ShowFatalError(title, message string) {
	w32.MessageBox(0, message, title, w32.MB_OK|w32.MB_ICONERROR|mbTopmost)
}
