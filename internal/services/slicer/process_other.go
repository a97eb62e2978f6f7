//go:build !unix

package slicer

import "os/exec"

func setupProcessGroup(_ *exec.Cmd) {}
