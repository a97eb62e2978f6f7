//go:build unix

package slicer

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestCommandExecutorKillsProcessGroupOnTimeout(t *testing.T) {
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	pidFile := filepath.Join(t.TempDir(), "pid")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, _, err = commandExecutor{}.Run(ctx, shell,
		[]string{"-c", "echo $$ > " + pidFile + "; sleep 60"})
	if err == nil {
		t.Fatal("expected an error after the deadline expired")
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pgid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid %q: %v", data, err)
	}

	// The shell is its own group leader, so once the cancel kill has
	// landed and the children are reaped, signalling the group reports
	// ESRCH. The forked sleep may linger as a zombie briefly until init
	// collects it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		sigErr := unix.Kill(-pgid, 0)
		if errors.Is(sigErr, unix.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process group %d still signallable: %v", pgid, sigErr)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
