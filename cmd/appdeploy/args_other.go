//go:build !windows

package main

import "os"

func rawArgs() []string { return os.Args }
