package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"mangashelf/internal/app"
	"mangashelf/pkg/database"
	"mangashelf/pkg/utils"
)

type commandContext struct {
	configFlag *string
	logLevel   *string

	once   sync.Once
	cfg    *utils.Config
	cfgErr error
}

func newCommandContext(configFlag, logLevel *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevel: logLevel}
}

func (c *commandContext) ensureConfig() (*utils.Config, error) {
	c.once.Do(func() {
		cfg, err := utils.Load(*c.configFlag)
		if err != nil {
			c.cfgErr = err
			return
		}
		if c.logLevel != nil && *c.logLevel != "" {
			cfg.Log.Level = *c.logLevel
		}
		c.cfg = cfg
	})
	return c.cfg, c.cfgErr
}

// withApp opens the catalog for the duration of fn. Mutating commands pass
// write so the writer lock is held until fn returns.
func (c *commandContext) withApp(cmd *cobra.Command, write bool, fn func(a *app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if write {
		lock := database.NewWriterLock(cfg.DB())
		if err := lock.TryAcquire(); err != nil {
			return fmt.Errorf("%w (%s); stop shelf-server or retry later", err, lock.Path())
		}
		defer func() { _ = lock.Release() }()
	}

	a, err := app.Open(cmd.Context(), cfg.DB(), logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
