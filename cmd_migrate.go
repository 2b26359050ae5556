package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

// MigrateCmd creates the archive tables
type MigrateCmd struct{}

// Run executes the migrate command
func (c *MigrateCmd) Run(kctx *kong.Context, cli *CLI) error {
	a, err := loadApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(kctx.Stdout, "Database ready (%s)\n", a.cfg.BasicConfig.Driver)
	return nil
}
