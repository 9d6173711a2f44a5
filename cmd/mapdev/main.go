package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/mapdev/cmd/mapdev/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug mode." env:"MAPDEV_DEBUG"`
		Config  string           `help:"Path to the config file." default:"mapdev.yaml" env:"MAPDEV_CONFIG" type:"path"`
		Version kong.VersionFlag `help:"Print the version and exit."`

		Serve  commands.ServeCmd  `cmd:"" default:"withargs" help:"Build, watch and serve the frontend with the dev proxy"`
		Build  commands.BuildCmd  `cmd:"" help:"Bundle assets and copy static targets once"`
		Routes commands.RoutesCmd `cmd:"" help:"Print the proxy rule table in match order"`
		Check  commands.CheckCmd  `cmd:"" help:"Probe every proxy upstream"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("mapdev"),
		kong.Description("Development server and tile proxy for the map frontend."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Config: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}
