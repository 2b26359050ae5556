package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"chatarchive/internal/classify"
	"chatarchive/internal/mapper"
)

// MapProjectsCmd correlates custom GPTs with projects
type MapProjectsCmd struct {
	Apply         bool    `help:"Write accepted mappings to the database"`
	AssignGeneral string  `help:"With --apply, move conversations without GPT or project into this project" placeholder:"NAME"`
	Summary       string  `type:"path" help:"Write a JSON summary to this file" placeholder:"FILE"`
	Threshold     float64 `default:"0.3" help:"Minimum similarity a match must exceed"`
}

// Run executes the map-projects command
func (c *MapProjectsCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	a, err := loadApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	threshold := c.Threshold
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	summary, err := mapper.New(a.archive, a.logger).Run(ctx, mapper.Options{
		Apply:         c.Apply,
		AssignGeneral: c.AssignGeneral,
		Threshold:     threshold,
	})
	if err != nil {
		return fmt.Errorf("map projects: %w", err)
	}

	printMappingSummary(kctx.Stdout, summary)

	if c.Summary != "" {
		if err := mapper.WriteSummary(afero.NewOsFs(), c.Summary, summary); err != nil {
			return err
		}
		a.logger.Info("mapping summary written", "path", c.Summary)
	}
	return nil
}

func printMappingSummary(out io.Writer, summary *mapper.Summary) {
	fmt.Fprintf(out, "Proposed mappings: %d (unmatched GPTs: %d)\n", len(summary.Mappings), len(summary.Unmatched))
	for i, m := range summary.Mappings {
		fmt.Fprintf(out, "%2d. %s <- %s (%d conversations, %.1f%%)\n", i+1, m.ProjectName, m.ExternalID, m.ConversationCount, m.Score*100)
	}
	for _, u := range summary.Unmatched {
		fmt.Fprintf(out, "    no mapping for %s (%d conversations)\n", u.GizmoID, u.ConversationCount)
	}
	if summary.Applied {
		fmt.Fprintf(out, "Applied with %d errors; %d conversations moved to the general project\n", summary.ApplyErrors, summary.GeneralAssigned)
	}
	fmt.Fprintf(out, "Projects: %d total, %d mapped, %d unmapped\n", summary.Projects.Total, summary.Projects.Mapped, summary.Projects.Unmapped)
	fmt.Fprintf(out, "Conversations: %d total, %d assigned, %d unassigned\n",
		summary.Conversations.Total, summary.Conversations.Assigned, summary.Conversations.Unassigned)
}
