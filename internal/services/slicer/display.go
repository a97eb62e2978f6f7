package slicer

import (
	"os"
	"os/exec"
	"runtime"

	"stlforge/internal/config"
)

const virtualDisplayBinary = "xvfb-run"

// hasDisplay reports whether a graphical session is reachable. Overridable
// in tests.
var hasDisplay = func() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// virtualDisplayAvailable reports whether the wrapper binary is on PATH.
// Overridable in tests.
var virtualDisplayAvailable = func() bool {
	_, err := exec.LookPath(virtualDisplayBinary)
	return err == nil
}

// useVirtualDisplay decides whether to wrap the tool behind a virtual X
// server. In auto mode the wrapper is used only when no display is present
// and the wrapper itself is installed.
func (c *Client) useVirtualDisplay() bool {
	switch c.virtualDisplay {
	case config.VirtualDisplayAlways:
		return true
	case config.VirtualDisplayNever:
		return false
	default:
		return !hasDisplay() && virtualDisplayAvailable()
	}
}
