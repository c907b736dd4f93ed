package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
)

type Globals struct {
	Debug   bool
	Version string
}

// backend holds the services a command works against.
type backend struct {
	objects *objects.Service
	queues  *queues.Service
	tables  *tables.Service
}

// connect builds the services from the AWS flags. Tests swap it for fakes.
var connect = func(ctx context.Context, flags awsclient.Flags) (*backend, error) {
	cfg := flags.Config()
	clients, err := awsclient.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS clients: %w", err)
	}
	return &backend{
		objects: objects.NewService(clients.S3, clients.Presign, objects.Config{Region: cfg.Region}),
		queues:  queues.NewService(clients.SQS),
		tables:  tables.NewService(clients.DynamoDB),
	}, nil
}

// cliLogger writes human readable logs to stderr so stdout stays clean for
// command output.
func cliLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
}

func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
