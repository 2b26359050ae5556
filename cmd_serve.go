package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"chatarchive/internal/api"
)

// ServeCmd serves the read-only API
type ServeCmd struct {
	Addr string `help:"Listen address; defaults to basic_config.server_address"`
}

// Run executes the serve command
func (c *ServeCmd) Run(kctx *kong.Context, cli *CLI) error {
	a, err := loadApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, closeRuns, err := a.runLog(context.Background())
	if err != nil {
		return err
	}
	defer closeRuns()

	// keep a nil *runlog.Store out of the RunLog interface
	var handlers *api.Handler
	if runs != nil {
		handlers = api.NewHandler(a.archive, runs)
	} else {
		handlers = api.NewHandler(a.archive, nil)
	}

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := c.Addr
	if addr == "" {
		addr = a.cfg.BasicConfig.ServerAddress
	}
	a.logger.Info("serving archive API", "addr", addr)
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
