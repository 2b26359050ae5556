package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"chatarchive/internal/mapper"
)

// SeedProjectsCmd creates the configured known projects
type SeedProjectsCmd struct{}

// Run executes the seed-projects command
func (c *SeedProjectsCmd) Run(kctx *kong.Context, cli *CLI) error {
	a, err := loadApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.KnownProjects) == 0 {
		fmt.Fprintln(kctx.Stdout, "No known_projects in config; nothing to seed")
		return nil
	}
	res, err := mapper.Seed(context.Background(), a.archive, a.cfg.KnownProjects, a.logger)
	if err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}
	fmt.Fprintf(kctx.Stdout, "Projects created: %d, already present: %d\n", res.Created, res.Skipped)
	return nil
}
