package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mangashelf/internal/app"
	"mangashelf/internal/entry"
	"mangashelf/pkg/models"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var category string
	var query string
	var mode string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, false, func(a *app.App) error {
				name := category
				if name == "" {
					selected, err := a.Categories.Selected(cmd.Context())
					if err != nil {
						return err
					}
					name = selected
				}
				entries, err := a.Entries.Search(cmd.Context(), name, query, mode)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No entries")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category to list (defaults to the selected category)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search text")
	cmd.Flags().StringVar(&mode, "mode", entry.SearchDefault, "Search field: a (alt titles), t (tags), b (badges), c (characters)")
	return cmd
}

func renderEntries(entries []models.Entry) string {
	headers := []string{"ID", "Title", "Category", "Type", "Rating", "Tags", "Opened"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rating := "-"
		if e.Rating != nil {
			rating = strconv.Itoa(*e.Rating)
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Title,
			e.Category,
			e.DataType,
			rating,
			strings.Join(e.Tags, ", "),
			formatWhen(e.OpenedAt),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight})
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, false, func(a *app.App) error {
				e, err := a.Entries.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("entry %d: %w", id, entry.ErrNotFound)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			})
		},
	}
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Record that an entry was opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, true, func(a *app.App) error {
				if err := a.Entries.MarkOpened(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d marked opened\n", id)
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, true, func(a *app.App) error {
				if err := a.Entries.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d deleted\n", id)
				return nil
			})
		},
	}
}

func parseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return id, nil
}
