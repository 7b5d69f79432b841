package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangashelf/internal/app"
	"mangashelf/internal/backup"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write or schedule JSON backups",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Backup directory (defaults to backup.dir)")

	backupDir := func() (string, []string, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", nil, err
		}
		if dir != "" {
			return dir, cfg.Backup.Times, nil
		}
		return cfg.Backup.Dir, cfg.Backup.Times, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Write " + backup.FileName + " now",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := backupDir()
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, false, func(a *app.App) error {
				sched := backup.NewScheduler(target, nil, a.Exporter, a.Log.With("component", "backup"))
				path, err := sched.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Run the backup scheduler in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, specs, err := backupDir()
			if err != nil {
				return err
			}
			times, err := backup.ParseTimes(specs)
			if err != nil {
				return err
			}
			if err := backup.CheckWritable(target); err != nil {
				return err
			}
			return ctx.withApp(cmd, false, func(a *app.App) error {
				sched := backup.NewScheduler(target, times, a.Exporter, a.Log.With("component", "backup"))
				fmt.Fprintf(cmd.OutOrStdout(), "Backing up to %s at %v\n", target, times)
				return sched.Run(cmd.Context())
			})
		},
	})

	return cmd
}
