package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"orbix/internal/api"
	"orbix/internal/store"
)

type listFlags struct {
	status string
	since  string
	limit  int
}

func (f *listFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&f.since, "since", "", "Only rows newer than a duration (24h) or RFC3339 time")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum rows; 0 for all")
}

func (f *listFlags) filter() (store.ListFilter, error) {
	since, err := parseSince(f.since, time.Now())
	if err != nil {
		return store.ListFilter{}, err
	}
	return store.ListFilter{Status: strings.ToUpper(strings.TrimSpace(f.status)), Since: since, Limit: f.limit}, nil
}

func newDashboardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show pipeline counts and today's publishing quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			dash, err := svc.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, dash)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Published today: %d/%d   Review mode: %s\n", dash.PublishedToday, dash.DailyCap, yesNo(dash.ReviewMode))
			entities := make([]string, 0, len(dash.Counts))
			for entity := range dash.Counts {
				entities = append(entities, entity)
			}
			sort.Strings(entities)
			var rows [][]string
			for _, entity := range entities {
				statuses := make([]string, 0, len(dash.Counts[entity]))
				for status := range dash.Counts[entity] {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				for _, status := range statuses {
					rows = append(rows, []string{entity, status, strconv.Itoa(dash.Counts[entity][status])})
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Entity", "Status", "Count"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

func newStoriesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "stories", Short: "Inspect classified stories"}
	var flags listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			items, err := svc.Stories(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Story]{Items: items})
			}
			rows := make([][]string, 0, len(items))
			for _, s := range items {
				rows = append(rows, []string{s.ID, s.Category, strconv.Itoa(s.ShockScore), s.Status, truncateCell(s.DecisionReason), s.CreatedAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Category", "Score", "Status", "Reason", "Created"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	flags.bind(listCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "review", Short: "Inspect and decide review items"}

	var flags listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List review items (pending unless --status is given; --status all lists every item)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			switch {
			case !cmd.Flags().Changed("status"):
				flags.status = string(store.ReviewPending)
			case strings.EqualFold(flags.status, "all"):
				flags.status = ""
			}
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			items, err := svc.Reviews(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Review]{Items: items})
			}
			rows := make([][]string, 0, len(items))
			for _, r := range items {
				hook := r.EditedHook
				if hook == "" && r.Script != nil {
					hook = r.Script.Hook
				}
				rows = append(rows, []string{r.ID, r.Status, r.Category, strconv.Itoa(r.ShockScore), truncateCell(hook), r.CreatedAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Status", "Category", "Score", "Hook", "Created"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	flags.bind(listCmd)
	cmd.AddCommand(listCmd)

	decide := func(use, short string, action func(cmd *cobra.Command, id string) (api.Review, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				item, err := action(cmd, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review %s is %s\n", item.ID, item.Status)
				return nil
			},
		}
	}
	cmd.AddCommand(decide("approve", "Approve a pending review item", func(cmd *cobra.Command, id string) (api.Review, error) {
		svc, err := ctx.service(cmd)
		if err != nil {
			return api.Review{}, err
		}
		return svc.ApproveReview(cmd.Context(), id)
	}))
	cmd.AddCommand(decide("reject", "Reject a pending review item", func(cmd *cobra.Command, id string) (api.Review, error) {
		svc, err := ctx.service(cmd)
		if err != nil {
			return api.Review{}, err
		}
		return svc.RejectReview(cmd.Context(), id)
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "edit-hook <id> <hook>",
		Short: "Replace the hook of a pending review item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			item, err := svc.EditReviewHook(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hook updated: %s\n", item.EditedHook)
			return nil
		},
	})
	return cmd
}

func newRendersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "renders", Short: "Inspect and retry render jobs"}

	var flags listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List render jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			items, err := svc.Renders(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Render]{Items: items})
			}
			rows := make([][]string, 0, len(items))
			for _, r := range items {
				rows = append(rows, []string{r.ID, r.Status, r.BackgroundType, r.BackgroundID, r.CompletedAt, truncateCell(r.OutputURL)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Status", "Background", "Asset", "Completed", "Output"}, rows, nil))
			return nil
		},
	}
	flags.bind(listCmd)
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a render job including its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			r, err := svc.Render(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, r)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Render %s\n  status: %s\n  story: %s\n  background: %s/%s\n  output: %s\n",
				r.ID, r.Status, r.StoryID, r.BackgroundType, r.BackgroundID, r.OutputURL)
			if r.Log != "" {
				fmt.Fprintf(out, "\n%s\n", r.Log)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <id>",
		Short: "Return a FAILED render to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			r, err := svc.RetryRender(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Render %s is %s\n", r.ID, r.Status)
			return nil
		},
	})
	return cmd
}

func newPublishesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "publishes", Short: "Inspect published videos"}
	var flags listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			items, err := svc.Publishes(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.Publish]{Items: items})
			}
			rows := make([][]string, 0, len(items))
			for _, p := range items {
				rows = append(rows, []string{p.Platform, p.PlatformVideoID, truncateCell(p.Title), p.PostedAt, p.URL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Platform", "Video", "Title", "Posted", "URL"}, rows, nil))
			return nil
		},
	}
	flags.bind(listCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics <video-id>",
		Short: "Show daily snapshots for a published video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			points, err := svc.Analytics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ListResponse[api.AnalyticsPoint]{Items: points})
			}
			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{
					p.Date,
					strconv.FormatInt(p.Views, 10),
					strconv.FormatInt(p.Likes, 10),
					strconv.FormatInt(p.Comments, 10),
				})
			}
			right := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date", "Views", "Likes", "Comments"}, rows, right))
			return nil
		},
	}
}
