package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"voice-memories-go/internal/bootstrap"
	"voice-memories-go/internal/config"
	"voice-memories-go/internal/logger"
)

type commandContext struct {
	configFlag *string

	once sync.Once
	app  *bootstrap.App
	err  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureApp loads config and builds the components once per invocation. Logs
// go to the command's stderr so table output stays clean.
func (c *commandContext) ensureApp(cmd *cobra.Command) (*bootstrap.App, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.err = err
			return
		}
		log := logger.NewWithOptions(logger.Options{
			Environment: cfg.App.Environment,
			Level:       cfg.Logging.Level,
			Output:      cmd.ErrOrStderr(),
		})
		c.app, c.err = bootstrap.New(cmd.Context(), cfg, log)
	})
	return c.app, c.err
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}
