package slicer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stlforge/internal/config"
	"stlforge/internal/fileutil"
	"stlforge/internal/logging"
	"stlforge/internal/script"
	"stlforge/internal/services"
)

// Result captures one completed reconstruction run.
type Result struct {
	OutputPath string
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// Runner defines the behaviour required by the conversion workflow.
type Runner interface {
	Run(ctx context.Context, scr *script.Script) (*Result, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "slicer")
		}
	}
}

// Client supervises headless 3D Slicer invocations.
type Client struct {
	binary         string
	timeout        time.Duration
	pollInterval   time.Duration
	markerMaxWait  time.Duration
	virtualDisplay string
	exec           Executor
	logger         *slog.Logger
}

// New constructs a Slicer client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.Slicer.Binary)
	if binary == "" {
		return nil, errors.New("slicer binary required")
	}
	client := &Client{
		binary:         binary,
		timeout:        time.Duration(cfg.Slicer.TimeoutSeconds) * time.Second,
		pollInterval:   time.Duration(cfg.Slicer.MarkerPollInterval) * time.Millisecond,
		markerMaxWait:  time.Duration(cfg.Slicer.MarkerMaxWait) * time.Second,
		virtualDisplay: cfg.Slicer.VirtualDisplay,
		exec:           commandExecutor{},
		logger:         logging.NewNop(),
	}
	if client.pollInterval <= 0 {
		client.pollInterval = 500 * time.Millisecond
	}
	if client.markerMaxWait <= 0 {
		client.markerMaxWait = 10 * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Run executes the generated script and classifies the outcome. Stale
// markers from a prior attempt are removed before launch so the result
// always reflects this run.
func (c *Client) Run(ctx context.Context, scr *script.Script) (*Result, error) {
	for _, marker := range []string{scr.SuccessMarker, scr.ErrorMarker} {
		if err := fileutil.RemoveIfExists(marker); err != nil {
			return nil, services.Wrap(services.ErrIO, "slicer", "prepare", "remove stale marker", err)
		}
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	binary, args := c.commandLine(scr)
	c.logger.Info("launching reconstruction tool",
		logging.String("binary", binary),
		logging.String("script", scr.Path),
	)

	start := time.Now()
	stdout, stderr, runErr := c.exec.Run(runCtx, binary, args)
	result := &Result{
		OutputPath: scr.OutputPath,
		Stdout:     stdout,
		Stderr:     stderr,
		Duration:   time.Since(start),
	}

	return result, c.classify(ctx, runCtx, scr, result, runErr)
}

// commandLine builds the invocation, wrapping it behind a virtual X server
// when no display is available.
func (c *Client) commandLine(scr *script.Script) (string, []string) {
	args := []string{"--no-splash", "--no-main-window", "--python-script", scr.Path}
	if c.useVirtualDisplay() {
		return virtualDisplayBinary, append([]string{"-a", c.binary}, args...)
	}
	return c.binary, args
}

// classify resolves the run outcome. The tool's own error report wins over
// exit status because the tool may exit zero after a failed conversion.
// Success requires a clean exit, the success marker, and a non-empty
// output artifact, all three.
func (c *Client) classify(ctx, runCtx context.Context, scr *script.Script, result *Result, runErr error) error {
	if msg, ok := readErrorMarker(scr.ErrorMarker); ok {
		return services.Wrap(services.ErrExecution, "slicer", "run", msg, nil)
	}
	if runCtx.Err() != nil && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, "slicer", "run",
			fmt.Sprintf("reconstruction exceeded %s", c.timeout), runCtx.Err())
	}
	if ctx.Err() != nil {
		return services.Wrap(services.ErrExecution, "slicer", "run", "reconstruction cancelled", ctx.Err())
	}
	if runErr != nil {
		return services.Wrap(services.ErrExecution, "slicer", "run",
			fmt.Sprintf("tool exited with an error: %s", tail(result.Stderr, 512)), runErr)
	}

	if ok, msg := c.awaitSuccess(ctx, scr); !ok {
		return services.Wrap(services.ErrExecution, "slicer", "run", msg, nil)
	}

	if !fileutil.FileNonEmpty(scr.OutputPath) {
		return services.Wrap(services.ErrExecution, "slicer", "run", "output file missing or empty", nil)
	}

	c.logger.Info("reconstruction finished",
		logging.String("output", scr.OutputPath),
		logging.Duration("duration", result.Duration),
	)
	return nil
}

// awaitSuccess polls for the success marker for a bounded window after the
// process exits. Marker writes can land slightly after process exit when
// the filesystem is slow.
func (c *Client) awaitSuccess(ctx context.Context, scr *script.Script) (bool, string) {
	deadline := time.Now().Add(c.markerMaxWait)
	for {
		if msg, ok := readErrorMarker(scr.ErrorMarker); ok {
			return false, msg
		}
		if _, ok := readSuccessMarker(scr.SuccessMarker); ok {
			return true, ""
		}
		if time.Now().After(deadline) {
			return false, "tool exited without reporting a result"
		}
		select {
		case <-ctx.Done():
			return false, "tool exited without reporting a result"
		case <-time.After(c.pollInterval):
		}
	}
}

func tail(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return "..." + text[len(text)-limit:]
}
