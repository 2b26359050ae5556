package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" env:"CHATARCHIVE_CONFIG" default:"config.json" help:"Path to the JSON config file"`
	LogLevel string `env:"CHATARCHIVE_LOG_LEVEL" help:"Log level (debug, info, warn, error); defaults to the config value"`

	Import       ImportCmd       `cmd:"" help:"Import a ChatGPT export archive"`
	MapProjects  MapProjectsCmd  `cmd:"" name:"map-projects" help:"Match custom GPTs to existing projects"`
	SeedProjects SeedProjectsCmd `cmd:"" name:"seed-projects" help:"Create the known projects listed in the config"`
	Migrate      MigrateCmd      `cmd:"" help:"Create the archive tables"`
	Serve        ServeCmd        `cmd:"" help:"Serve the read-only archive API"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("chatarchive"),
		kong.Description("Incremental importer and browser for ChatGPT conversation exports"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
