//go:build windows

package shortcut

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
)

// sFalse is returned by CoInitializeEx when COM is already initialized on the thread.
const sFalse = 1

// ShellCreator writes real .lnk files through the WScript.Shell COM object.
type ShellCreator struct{}

// Default returns the shortcut writer for this platform.
func Default(afero.Fs) Creator { return ShellCreator{} }

func (ShellCreator) Create(s action.Shortcut) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			return fmt.Errorf("failed to initialize COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return fmt.Errorf("failed to create WScript.Shell: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("failed to query WScript.Shell: %w", err)
	}
	defer shell.Release()

	linkVar, err := oleutil.CallMethod(shell, "CreateShortcut", s.LinkPath)
	if err != nil {
		return fmt.Errorf("CreateShortcut %s failed: %w", s.LinkPath, err)
	}
	defer linkVar.Clear()
	link := linkVar.ToIDispatch()
	if link == nil {
		return fmt.Errorf("CreateShortcut %s returned no object", s.LinkPath)
	}

	type prop struct{ name, value string }
	props := []prop{
		{"TargetPath", s.TargetPath},
		{"Arguments", s.Arguments},
		{"WorkingDirectory", s.WorkingDirectory},
		{"Description", s.Description},
	}
	if s.IconPath != "" {
		props = append(props, prop{"IconLocation", fmt.Sprintf("%s,%d", s.IconPath, s.IconIndex)})
	}
	for _, p := range props {
		if _, err := oleutil.PutProperty(link, p.name, p.value); err != nil {
			return fmt.Errorf("failed to set shortcut %s: %w", p.name, err)
		}
	}

	if _, err := oleutil.CallMethod(link, "Save"); err != nil {
		return fmt.Errorf("failed to save shortcut %s: %w", s.LinkPath, err)
	}
	return nil
}
