// Package daemonctl controls a running orbix daemon from the CLI: it
// launches the process, talks to the admin API, and stops it by pid.
package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"orbix/internal/api"
	"orbix/internal/config"
)

// ErrUnavailable reports that the daemon API could not be reached.
var ErrUnavailable = errors.New("daemon not reachable")

// Client calls the daemon admin API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the API configured in cfg.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.AdminURL(),
		token:   cfg.API.Token,
		http:    &http.Client{Timeout: 15 * time.Minute},
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client, baseURL string) *Client {
	c.http = hc
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", &out)
	return out, err
}

// RunStage asks the daemon to run a stage now and waits for its tally.
func (c *Client) RunStage(ctx context.Context, name string) (api.StageResult, error) {
	var out api.StageResult
	err := c.do(ctx, http.MethodPost, "/api/stages/"+url.PathEscape(name)+"/run", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// Launch starts a detached `orbix daemon` process from executablePath.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForReady polls the status endpoint until it answers or timeout elapses.
func WaitForReady(ctx context.Context, client *Client, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon did not become ready within %s: %w", timeout, lastErr)
}

// ProcessInfo reads the pid file and reports whether that process is alive.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	pid, err := readPID(cfg.PIDFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return processAlive(pid), pid, nil
}

// StopResult captures the outcome of Stop.
type StopResult struct {
	PID    int
	Forced bool
}

// Stop sends SIGTERM to the daemon and escalates to SIGKILL after grace.
func Stop(cfg *config.Config, grace time.Duration) (StopResult, error) {
	alive, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !alive {
		_ = os.Remove(cfg.PIDFile())
		return StopResult{}, errors.New("daemon is not running")
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{PID: pid}, fmt.Errorf("signal daemon %d: %w", pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return StopResult{PID: pid}, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return StopResult{PID: pid}, fmt.Errorf("kill daemon %d: %w", pid, err)
	}
	_ = os.Remove(cfg.PIDFile())
	return StopResult{PID: pid, Forced: true}, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
