// pkg/installer/msi.go - msiexec command lines and exit codes

package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/windowsadmins/appdeploy/pkg/action"
)

// UILevel is the msiexec user interface level.
type UILevel string

const (
	UIBasic  UILevel = "/qb-!" // progress only, no cancel button, no completion dialog
	UISilent UILevel = "/qn"
)

// Well-known msiexec exit codes.
const (
	MSISuccess             = 0
	MSIRebootRequired      = 3010
	MSIRebootInitiated     = 1641
	MSIUnknownProduct      = 1605
	MSIAnotherInstallInUse = 1618
)

// MSIExecPath locates msiexec.exe under the Windows directory.
func MSIExecPath() string {
	if windir := os.Getenv("WINDIR"); windir != "" {
		return filepath.Join(windir, "System32", "msiexec.exe")
	}
	return "msiexec.exe"
}

// MSICommand builds the msiexec invocation for a. When logDir is set a
// verbose MSI log is written next to the run logs.
func MSICommand(a action.ExecuteMSI, ui UILevel, logDir string) Command {
	var b strings.Builder
	switch a.Mode {
	case action.MSIUninstall:
		b.WriteString("/x ")
	case action.MSIRepair:
		b.WriteString("/fomus ")
	default:
		b.WriteString("/i ")
	}
	b.WriteString(`"` + a.Path + `"`)

	keys := make([]string, 0, len(a.Properties))
	for k := range a.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, strings.ToUpper(k), strings.ReplaceAll(a.Properties[k], `"`, `""`))
	}

	b.WriteString(" " + string(ui) + " /norestart")
	if logDir != "" {
		fmt.Fprintf(&b, ` /l*v "%s"`, filepath.Join(logDir, msiLogName(a)))
	}
	if a.Arguments != "" {
		b.WriteString(" " + a.Arguments)
	}
	return Command{Path: MSIExecPath(), Args: b.String(), Wait: true}
}

func msiLogName(a action.ExecuteMSI) string {
	base := filepath.Base(strings.ReplaceAll(a.Path, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(base, "{}")
	return fmt.Sprintf("msi-%s-%s.log", a.Mode, base)
}

// InterpretMSIExit maps an msiexec exit code to success and reboot flags.
// 1605 (product not installed) counts as success only for uninstall.
func InterpretMSIExit(mode action.MSIMode, code int) (success, reboot bool) {
	switch code {
	case MSISuccess:
		return true, false
	case MSIRebootRequired, MSIRebootInitiated:
		return true, true
	case MSIUnknownProduct:
		return mode == action.MSIUninstall, false
	default:
		return false, false
	}
}
