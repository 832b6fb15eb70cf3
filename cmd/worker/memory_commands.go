package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voice-memories-go/internal/dataset"
	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/types"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var opts repository.ListOptions
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			if status != "" {
				if opts.Status, err = types.ParseStatus(status); err != nil {
					return err
				}
			}
			res, err := app.Memories.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(res.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No memories found")
				return nil
			}
			rows := make([][]string, 0, len(res.Items))
			for _, m := range res.Items {
				rows = append(rows, []string{
					m.ID,
					string(m.Status),
					truncate(valueOr(m.Title, "-"), 40),
					m.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Status", "Title", "Updated"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d, %d of %d memories\n", res.Page.Page, len(res.Items), res.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "Memories per page (max 100)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Match title or summary")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			m, err := app.Memories.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			fmt.Fprintf(out, "ID:       %s\n", m.ID)
			fmt.Fprintf(out, "Status:   %s\n", m.Status)
			fmt.Fprintf(out, "Audio:    %s\n", m.AudioReference)
			fmt.Fprintf(out, "Title:    %s\n", valueOr(m.Title, "-"))
			if m.Duration != nil {
				fmt.Fprintf(out, "Duration: %ss\n", strconv.FormatFloat(*m.Duration, 'f', 1, 64))
			}
			fmt.Fprintf(out, "Created:  %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Updated:  %s\n", m.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			if m.Summary != nil {
				fmt.Fprintf(out, "\nSummary:\n  %s\n", *m.Summary)
			}
			printList(out, "Key points", m.KeyPoints)
			printList(out, "Action items", m.ActionItems)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <id>",
		Short: "Re-enqueue processing for an uploaded memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			m, err := app.Memories.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Memory %s is %s\n", m.ID, m.Status)
			return nil
		},
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <manifest.xlsx>",
		Short: "Upload and enqueue every recording listed in a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			entries, err := dataset.LoadManifest(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			in := dataset.NewIngester(app.Memories, filepath.Dir(args[0]), app.Log)
			results := in.Ingest(cmd.Context(), entries)

			rows := make([][]string, 0, len(results))
			var failed int
			for _, r := range results {
				outcome := "enqueued"
				switch {
				case r.Err != nil:
					failed++
					outcome = r.Err.Error()
				case !r.Enqueued:
					outcome = "stored, not enqueued"
				}
				rows = append(rows, []string{strconv.Itoa(r.Entry.Row), truncate(r.Entry.Title, 30), r.MemoryID, truncate(outcome, 50)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Row", "Title", "Memory", "Result"}, rows, 0))
			if failed > 0 {
				return fmt.Errorf("%d of %d rows failed", failed, len(results))
			}
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <report.xlsx>",
		Short: "Write every memory and a status summary to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			all, err := app.Repo.All(cmd.Context())
			if err != nil {
				return err
			}
			ins, err := dataset.WriteReport(args[0], all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d memories to %s (%d ready, %d failed)\n",
				ins.Total, args[0], ins.StatusCounts[types.StatusReady], ins.StatusCounts[types.StatusFailed])
			return nil
		},
	}
}

func valueOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

func printList(out io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}
