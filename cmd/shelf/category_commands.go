package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mangashelf/internal/app"
	"mangashelf/pkg/models"
)

func newCategoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, false, func(a *app.App) error {
				cats, err := a.Categories.Categories(cmd.Context())
				if err != nil {
					return err
				}
				selected, err := a.Categories.Selected(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{{"-", models.AllCategory, "-", yesNo(selected == models.AllCategory)}}
				for _, c := range cats {
					rows = append(rows, []string{
						strconv.Itoa(c.Order),
						c.Name,
						c.CreatedAt.Local().Format("2006-01-02"),
						yesNo(selected == c.Name),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Order", "Name", "Created", "Selected"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, true, func(a *app.App) error {
				created, err := a.Categories.Ensure(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Category %q created\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Category %q already exists\n", args[0])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a category and move its entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, true, func(a *app.App) error {
				if err := a.Categories.Rename(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Category %q renamed to %q\n", args[0], args[1])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a category; its entries move to All",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, true, func(a *app.App) error {
				if err := a.Categories.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Category %q removed\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reorder <name>...",
		Short: "Set the display order of categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, true, func(a *app.App) error {
				if err := a.Categories.Reorder(cmd.Context(), args); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Categories reordered")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select [name]",
		Short: "Show or change the selected category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, len(args) == 1, func(a *app.App) error {
				if len(args) == 1 {
					if err := a.Categories.Select(cmd.Context(), args[0]); err != nil {
						return err
					}
				}
				selected, err := a.Categories.Selected(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), selected)
				return nil
			})
		},
	})

	return cmd
}
