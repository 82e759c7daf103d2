package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"orbix/internal/api"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage ingestion sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			items, err := svc.Sources(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Source]{Items: items})
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, s := range items {
				rows = append(rows, []string{s.ID, s.Type, truncateCell(s.Name), truncateCell(s.URL), yesNo(s.Enabled), s.LastFetchedAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Type", "Name", "URL", "Enabled", "Last Fetched"}, rows, nil))
			return nil
		},
	})

	var name, typ string
	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			src, err := svc.AddSource(cmd.Context(), api.AddSourceRequest{Name: name, URL: args[0], Type: typ})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, src)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %s (%s)\n", src.Type, src.URL, src.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Display name")
	addCmd.Flags().StringVar(&typ, "type", "rss", "Source type: rss or html")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(newSourceToggleCommand(ctx, "enable", true))
	cmd.AddCommand(newSourceToggleCommand(ctx, "disable", false))

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import sources from a YAML list; existing URLs are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer file.Close()
			created, total, err := svc.ImportSources(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d sources\n", created, total)
			return nil
		},
	})
	return cmd
}

func newSourceToggleCommand(ctx *commandContext, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			src, err := svc.SetSourceEnabled(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %s enabled=%s\n", src.URL, yesNo(src.Enabled))
			return nil
		},
	}
}
