// pkg/shortcut/shortcut.go - creating .lnk shortcuts

package shortcut

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
	"gopkg.in/yaml.v3"
)

// Creator writes a shortcut at s.LinkPath, replacing any existing one. The
// parent directory must already exist.
type Creator interface {
	Create(s action.Shortcut) error
}

// descriptor is the on-disk form written by FileCreator.
type descriptor struct {
	Target           string `yaml:"target"`
	Arguments        string `yaml:"arguments,omitempty"`
	Icon             string `yaml:"icon,omitempty"`
	IconIndex        int    `yaml:"icon_index,omitempty"`
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	Description      string `yaml:"description,omitempty"`
}

// FileCreator stores shortcuts as YAML descriptors on an afero filesystem.
// It stands in for the shell link writer where COM is unavailable.
type FileCreator struct {
	Fs afero.Fs
}

func (c FileCreator) Create(s action.Shortcut) error {
	data, err := yaml.Marshal(descriptor{
		Target:           s.TargetPath,
		Arguments:        s.Arguments,
		Icon:             s.IconPath,
		IconIndex:        s.IconIndex,
		WorkingDirectory: s.WorkingDirectory,
		Description:      s.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to encode shortcut: %w", err)
	}
	if err := afero.WriteFile(c.Fs, s.LinkPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write shortcut %s: %w", s.LinkPath, err)
	}
	return nil
}

// Read loads a shortcut previously written by FileCreator.
func Read(fs afero.Fs, linkPath string) (action.Shortcut, error) {
	data, err := afero.ReadFile(fs, linkPath)
	if err != nil {
		return action.Shortcut{}, err
	}
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return action.Shortcut{}, fmt.Errorf("failed to decode shortcut %s: %w", linkPath, err)
	}
	return action.Shortcut{
		LinkPath:         linkPath,
		TargetPath:       d.Target,
		Arguments:        d.Arguments,
		IconPath:         d.Icon,
		IconIndex:        d.IconIndex,
		WorkingDirectory: d.WorkingDirectory,
		Description:      d.Description,
	}, nil
}
