package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/awsui/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Seed an emulator with demo resources"`
		Search    commands.SearchCmd    `cmd:"" help:"Fuzzy search the keys of a bucket"`
		Preview   commands.PreviewCmd   `cmd:"" help:"Render an object preview as text"`
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("awsui-cli"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
