package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mangashelf/internal/app"
	"mangashelf/internal/exchange"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Reconcile a JSON export into the catalog",
		Long:  "Reads a JSON array of entries (\"-\" for stdin) and inserts, merges or archive-forks each one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return ctx.withApp(cmd, true, func(a *app.App) error {
				batch, err := exchange.DecodeBatch(r, a.Log.With("component", "exchange"))
				if err != nil {
					return err
				}
				res, err := a.Engine.ImportBatch(cmd.Context(), batch)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Records", "Inserted", "Merged", "Archived", "New categories", "Failed"},
					[][]string{{
						strconv.Itoa(len(batch)),
						strconv.Itoa(res.Inserted),
						strconv.Itoa(res.Merged),
						strconv.Itoa(res.Archived),
						strconv.Itoa(len(res.CategoriesCreated)),
						strconv.Itoa(len(res.Failures)),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				if err != nil {
					return err
				}
				if len(res.Failures) > 0 {
					rows := make([][]string, 0, len(res.Failures))
					for _, f := range res.Failures {
						rows = append(rows, []string{strconv.Itoa(f.Index), f.Title, f.Err.Error()})
					}
					fmt.Fprintln(out, renderTable([]string{"#", "Title", "Error"}, rows, []columnAlignment{alignRight}))
					return fmt.Errorf("%d of %d records failed", len(res.Failures), len(batch))
				}
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case "json", "md", "markdown", "csv":
			case "pdf":
				if outPath == "" {
					return fmt.Errorf("pdf export needs --out")
				}
			default:
				return fmt.Errorf("unsupported format %q (json, md, csv, pdf)", format)
			}

			return ctx.withApp(cmd, false, func(a *app.App) error {
				if format == "pdf" {
					path, err := a.Exporter.PDF(cmd.Context(), outPath)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
					return nil
				}

				w := cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}

				var err error
				switch format {
				case "md", "markdown":
					err = a.Exporter.Markdown(cmd.Context(), w)
				case "csv":
					err = a.Exporter.CSV(cmd.Context(), w)
				default:
					err = a.Exporter.JSON(cmd.Context(), w)
				}
				if err != nil {
					return err
				}
				if outPath != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json, md, csv or pdf")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (stdout when empty; required for pdf)")
	return cmd
}
