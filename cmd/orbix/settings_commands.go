package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orbix/internal/api"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change runtime settings",
		Long:  "Runtime settings live in the database and take effect on the next stage run without a restart.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every setting with its effective value",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			items, err := svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Setting]{Items: items})
			}
			rows := make([][]string, 0, len(items))
			for _, s := range items {
				rows = append(rows, []string{s.Key, s.Kind, s.Value, s.Default, yesNo(s.Stored), s.UpdatedAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Kind", "Value", "Default", "Stored", "Updated"}, rows, nil))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			s, err := svc.Setting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, s)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Validate and store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			s, err := svc.UpdateSetting(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", s.Key, s.Value)
			return nil
		},
	})
	return cmd
}
