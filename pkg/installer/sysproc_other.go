//go:build !windows

package installer

import (
	"os/exec"
	"strings"
)

func configureCmd(cmd *exec.Cmd, c Command) {
	cmd.Dir = c.Dir
	cmd.Args = append([]string{c.Path}, splitArgs(c.Args)...)
}

// splitArgs splits on whitespace, keeping double-quoted runs together.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}
