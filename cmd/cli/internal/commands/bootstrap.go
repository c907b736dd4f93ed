package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/bootstrap"
)

// BootstrapCmd seeds an emulator with the demo bucket, queues and table.
type BootstrapCmd struct {
	AWS      awsclient.Flags `embed:"" prefix:"aws-"`
	Prefix   string          `help:"name prefix for the demo resources" default:"demo" env:"AWSUI_BOOTSTRAP_PREFIX"`
	Clean    bool            `help:"delete the demo resources before seeding (deletes all data)" default:"false"`
	Teardown bool            `help:"delete the demo resources and exit" default:"false"`
	Wait     time.Duration   `help:"how long to wait for the backend to answer, 0 to skip" default:"1m"`
	Settle   time.Duration   `help:"pause after deleting queues before they are recreated" default:"2s"`

	out io.Writer
}

func (cmd *BootstrapCmd) Validate() error {
	if cmd.Clean && cmd.Teardown {
		return errors.New("--clean and --teardown are mutually exclusive")
	}
	return nil
}

// Run executes the bootstrap command
func (cmd *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	log := cliLogger(globals.Debug)
	ctx = log.WithContext(ctx)

	b, err := connect(ctx, cmd.AWS)
	if err != nil {
		return err
	}

	cfg := bootstrap.Config{
		Objects:        b.objects,
		Queues:         b.queues,
		Tables:         b.tables,
		Prefix:         cmd.Prefix,
		CleanResources: cmd.Clean,
		WaitTimeout:    cmd.Wait,
		SettleDelay:    cmd.Settle,
	}

	out := stdout(cmd.out)

	if cmd.Teardown {
		log.Info().Str("prefix", cmd.Prefix).Msg("Removing demo resources")
		if cmd.Wait > 0 {
			if err := bootstrap.WaitForBackend(ctx, cfg, cmd.Wait); err != nil {
				return err
			}
		}
		if err := bootstrap.Cleanup(ctx, cfg, nil); err != nil {
			return fmt.Errorf("failed to remove demo resources: %w", err)
		}
		_, err := fmt.Fprintf(out, "Removed demo resources with prefix %q\n", cmd.Prefix)
		return err
	}

	log.Info().Str("prefix", cmd.Prefix).Bool("clean", cmd.Clean).Msg("Seeding demo resources")
	res, err := bootstrap.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}

	printResources(out, res)
	return nil
}

func printResources(w io.Writer, res *bootstrap.Resources) {
	fmt.Fprintf(w, "%-8s %s (%d objects)\n", "Bucket", res.Bucket, len(res.Keys))
	for _, role := range slices.Sorted(maps.Keys(res.Queues)) {
		fmt.Fprintf(w, "%-8s %s (%s)\n", "Queue", res.Queues[role], role)
	}
	fmt.Fprintf(w, "%-8s %s\n", "Table", res.Table)
}
