package slicer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// commandExecutor runs the real binary, capturing full stdout and stderr.
// The process is placed in its own group so a timeout kill also reaps any
// children the tool forks.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 10 * time.Second
	setupProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("run %s: %w", binary, err)
	}
	return stdout.String(), stderr.String(), nil
}
