package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"orbix/internal/api"
	"orbix/internal/daemonctl"
	"orbix/internal/daemonrun"
	"orbix/internal/notifications"
	"orbix/internal/stage"
	"orbix/internal/stageexec"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:       "run <stage>",
		Short:     "Run one pipeline stage now",
		Long:      "Run one pipeline stage now. When the daemon is up the run is delegated to it; otherwise the stage runs in this process.\n\nStages: " + strings.Join(stage.Names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: stage.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			result, where, err := runStage(cmd, ctx, name, local)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s): considered=%d succeeded=%d failed=%d skipped=%d\n",
				name, where, result.Considered, result.Succeeded, result.Failed, result.Skipped)
			if result.Halted != "" {
				fmt.Fprintf(out, "halted: %s\n", result.Halted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run in this process even if the daemon is reachable")
	return cmd
}

func runStage(cmd *cobra.Command, ctx *commandContext, name string, local bool) (api.StageResult, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return api.StageResult{}, "", err
	}
	if !local {
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		_, pingErr := daemonctl.NewClient(cfg).Status(pingCtx)
		cancel()
		if pingErr == nil {
			result, err := daemonctl.NewClient(cfg).RunStage(cmd.Context(), name)
			return result, "daemon", err
		}
		if !errors.Is(pingErr, daemonctl.ErrUnavailable) {
			return api.StageResult{}, "", pingErr
		}
	}

	st, err := ctx.openStore(cmd)
	if err != nil {
		return api.StageResult{}, "", err
	}
	logger := ctx.logger()
	notifier := notifications.NewService(cfg)
	set, _, err := daemonrun.BuildStages(cfg, st, logger, notifier)
	if err != nil {
		return api.StageResult{}, "", err
	}
	handler, ok := set.Lookup(name)
	if !ok {
		return api.StageResult{}, "", fmt.Errorf("unknown stage %q (choose from %s)", name, strings.Join(stage.Names, ", "))
	}
	result, err := stageexec.Run(cmd.Context(), stageexec.Options{
		Logger:   logger,
		Settings: st,
		Notifier: notifier,
		LockDir:  cfg.LockDir(),
	}, handler)
	if err != nil {
		return api.StageResult{}, "", err
	}
	return api.FromResult(result), "local", nil
}
