package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"orbix/internal/api"
	"orbix/internal/daemonctl"
	"orbix/internal/daemonrun"
	"orbix/internal/preflight"
)

const (
	startWaitTimeout = 15 * time.Second
	stopGracePeriod  = 30 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if alive, pid, _ := daemonctl.ProcessInfo(cfg); alive {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", pid)
				return nil
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			if err := daemonctl.Launch(exe, daemonctl.LaunchOptions{ConfigPath: ctx.configPath, LogLevel: logLevel}); err != nil {
				return err
			}
			status, err := daemonctl.WaitForReady(cmd.Context(), daemonctl.NewClient(cfg), startWaitTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", status.PID)
			return nil
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg, stopGracePeriod)
			if err != nil {
				return err
			}
			if result.Forced {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon %d did not exit in %s and was killed\n", result.PID, stopGracePeriod)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon %d stopped\n", result.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scheduler and install readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reqCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			status, err := daemonctl.NewClient(cfg).Status(reqCtx)
			if err != nil {
				if !errors.Is(err, daemonctl.ErrUnavailable) {
					return err
				}
				status = api.DaemonStatus{
					DatabasePath: cfg.Paths.DatabasePath,
					Checks:       api.FromChecks(preflight.RunAll(cmd.Context(), cfg, false)),
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			printStatus(cmd, status)
			return nil
		},
	}

	return []*cobra.Command{daemonCmd, startCmd, stopCmd, statusCmd}
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

	if status.Running {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Jobs", colorize)...)
		for _, job := range status.Workflow.Jobs {
			kind, msg := statusOK, "idle"
			switch {
			case job.Running:
				kind, msg = statusInfo, "running"
			case job.LastError != "":
				kind, msg = statusError, job.LastError
			case job.Runs > 0:
				msg = fmt.Sprintf("%d runs, last %d ok/%d failed", job.Runs, job.LastResult.Succeeded, job.LastResult.Failed)
			}
			if job.NextRun != "" {
				msg += "; next " + job.NextRun
			}
			lines = append(lines, renderStatusLine(job.Name, kind, truncateCell(msg), colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
			if check.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
