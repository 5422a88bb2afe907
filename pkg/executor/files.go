// pkg/executor/files.go - file tree, file and shortcut actions

package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/windowsadmins/appdeploy/pkg/action"
)

func (e *Executor) copyTree(a action.CopyTree) Outcome {
	copied, err := e.copyDir(a.Source, a.Destination, a.Policy().ContinueOnError)
	if err != nil {
		return Outcome{Fatal: true, Err: err, Detail: fmt.Sprintf("%d files copied", copied)}
	}
	return Outcome{Success: true, Detail: fmt.Sprintf("%d files copied", copied)}
}

// copyDir copies src into dst, overwriting files. With keepGoing set every
// per-file failure is collected and the rest of the tree is still copied.
func (e *Executor) copyDir(src, dst string, keepGoing bool) (int, error) {
	info, err := e.Fs.Stat(src)
	if err != nil {
		return 0, &TransientIOError{Op: "stat", Path: src, Err: err}
	}
	if !info.IsDir() {
		if err := e.Fs.MkdirAll(dst, 0755); err != nil {
			return 0, &TransientIOError{Op: "mkdir", Path: dst, Err: err}
		}
		target := filepath.Join(dst, filepath.Base(src))
		if err := copyFile(e.Fs, src, target, info.Mode()); err != nil {
			return 0, &TransientIOError{Op: "copy", Path: target, Err: err}
		}
		return 1, nil
	}

	copied := 0
	var errs []error
	fail := func(err error) error {
		if keepGoing {
			errs = append(errs, err)
			return nil
		}
		return err
	}

	walkErr := afero.Walk(e.Fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return fail(&TransientIOError{Op: "read", Path: path, Err: err})
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fail(&TransientIOError{Op: "resolve", Path: path, Err: err})
		}
		target := filepath.Join(dst, rel)

		if fi.IsDir() {
			if err := e.Fs.MkdirAll(target, 0755); err != nil {
				if ferr := fail(&TransientIOError{Op: "mkdir", Path: target, Err: err}); ferr != nil {
					return ferr
				}
				return filepath.SkipDir
			}
			return nil
		}

		if err := copyFile(e.Fs, path, target, fi.Mode()); err != nil {
			return fail(&TransientIOError{Op: "copy", Path: target, Err: err})
		}
		copied++
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, filepath.SkipDir) {
		return copied, walkErr
	}
	return copied, errors.Join(errs...)
}

func copyFile(fs afero.Fs, src, dst string, mode os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (e *Executor) removeTree(a action.RemoveTree) Outcome {
	if _, err := e.Fs.Stat(a.Path); errors.Is(err, os.ErrNotExist) {
		return Outcome{Success: true, Detail: "not present"}
	}
	if err := e.Fs.RemoveAll(a.Path); err != nil {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "remove", Path: a.Path, Err: err}}
	}
	return Outcome{Success: true, Detail: "removed"}
}

func (e *Executor) removeFile(a action.RemoveFile) Outcome {
	info, err := e.Fs.Stat(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Outcome{Success: true, Detail: "not present"}
	}
	if err == nil && info.IsDir() {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "remove", Path: a.Path, Err: errors.New("is a directory")}}
	}
	if err := e.Fs.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "remove", Path: a.Path, Err: err}}
	}
	return Outcome{Success: true, Detail: "removed"}
}

func (e *Executor) createShortcut(a action.CreateShortcut) Outcome {
	dir := filepath.Dir(a.LinkPath)
	if err := e.Fs.MkdirAll(dir, 0755); err != nil {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "mkdir", Path: dir, Err: err}}
	}
	detail := "created"
	if exists, _ := afero.Exists(e.Fs, a.LinkPath); exists {
		detail = "replaced"
	}
	if err := e.Shortcuts.Create(a.Shortcut); err != nil {
		return Outcome{Fatal: true, Err: &TransientIOError{Op: "create shortcut", Path: a.LinkPath, Err: err}}
	}
	return Outcome{Success: true, Detail: detail}
}
