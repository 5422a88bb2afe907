// pkg/executor/runcontext.go - deployment type, phase and the per-run context

package executor

import (
	"fmt"
	"strings"
)

// DeploymentType selects what a run does. It is fixed for the whole run.
type DeploymentType string

const (
	Install   DeploymentType = "install"
	Uninstall DeploymentType = "uninstall"
	Repair    DeploymentType = "repair"
)

// ParseDeploymentType is case-insensitive.
func ParseDeploymentType(s string) (DeploymentType, error) {
	switch DeploymentType(strings.ToLower(strings.TrimSpace(s))) {
	case Install:
		return Install, nil
	case Uninstall:
		return Uninstall, nil
	case Repair:
		return Repair, nil
	default:
		return "", fmt.Errorf("unknown deployment type %q (want install, uninstall or repair)", s)
	}
}

func (t DeploymentType) title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Stage is the position of a phase inside its deployment type.
type Stage string

const (
	StagePre  Stage = "pre"
	StageMain Stage = "main"
	StagePost Stage = "post"
)

// Phase is one named sub-stage of a deployment type, e.g. Pre-Install.
type Phase struct {
	Type  DeploymentType
	Stage Stage
}

func (p Phase) String() string {
	switch p.Stage {
	case StagePre:
		return "Pre-" + p.Type.title()
	case StagePost:
		return "Post-" + p.Type.title()
	default:
		return p.Type.title()
	}
}

// Phases returns the ordered phases of a deployment type.
func Phases(t DeploymentType) []Phase {
	return []Phase{{t, StagePre}, {t, StageMain}, {t, StagePost}}
}

// DeployMode controls how much the run may interact with the console user.
type DeployMode string

const (
	Interactive    DeployMode = "interactive"
	Silent         DeployMode = "silent"
	NonInteractive DeployMode = "noninteractive"
)

// ParseDeployMode is case-insensitive and accepts "non-interactive".
func ParseDeployMode(s string) (DeployMode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "") {
	case "interactive":
		return Interactive, nil
	case "silent":
		return Silent, nil
	case "noninteractive":
		return NonInteractive, nil
	default:
		return "", fmt.Errorf("unknown deploy mode %q (want interactive, silent or noninteractive)", s)
	}
}

// RunContext carries everything about the current run that actions may need.
// The phase runner owns it and hands a copy to the executor for every phase.
type RunContext struct {
	DeploymentType DeploymentType
	DeployMode     DeployMode
	Phase          Phase
	AppName        string
	InstallDir     string
	FilesDir       string
	LogDir         string
}
