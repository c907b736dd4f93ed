//go:build integration

package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
)

func setupLocalStack(t *testing.T, ctx context.Context) (Config, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:4",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES": "s3,sqs,dynamodb",
		},
		WaitingFor: wait.ForHTTP("/_localstack/health").WithPort("4566/tcp").WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)

	flags := awsclient.Flags{
		Region:    "us-east-1",
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		PathStyle: true,
	}
	clients, err := awsclient.New(ctx, flags.Config())
	require.NoError(t, err)

	cfg := Config{
		Objects:     objects.NewService(clients.S3, clients.Presign, objects.Config{Region: flags.Region}),
		Queues:      queues.NewService(clients.SQS),
		Tables:      tables.NewService(clients.DynamoDB),
		Prefix:      "it",
		WaitTimeout: 30 * time.Second,
		SettleDelay: time.Second,
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return cfg, cleanup
}

func TestIntegration_Bootstrap(t *testing.T) {
	ctx := context.Background()
	cfg, cleanup := setupLocalStack(t, ctx)
	defer cleanup()

	res, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)

	t.Run("objects", func(t *testing.T) {
		listing, err := cfg.Objects.List(ctx, res.Bucket, "data/", "", 0)
		require.NoError(t, err)
		require.NotEmpty(t, listing.Objects)

		url, err := cfg.Objects.PresignGet(ctx, res.Bucket, "data/customers.json", time.Minute)
		require.NoError(t, err)

		doc, err := preview.NewLoader(preview.LoaderConfig{}).Load(ctx, preview.Request{
			URL:         url,
			ContentType: "application/json",
			Name:        "data/customers.json",
		})
		require.NoError(t, err)
		require.Equal(t, preview.KindJSON, doc.Kind)
		require.NotNil(t, doc.Tree)
	})

	t.Run("queues", func(t *testing.T) {
		detail, err := cfg.Queues.Attributes(ctx, res.Queues["orders"])
		require.NoError(t, err)
		require.True(t, detail.FIFO)

		msgs, err := cfg.Queues.Peek(ctx, res.Queues["events"], 10)
		require.NoError(t, err)
		require.NotEmpty(t, msgs)
	})

	t.Run("tables", func(t *testing.T) {
		page, err := cfg.Tables.Scan(ctx, res.Table, "", 0)
		require.NoError(t, err)
		require.Len(t, page.Items, len(sampleItems))
	})

	t.Run("clean reseed", func(t *testing.T) {
		cfg := cfg
		cfg.CleanResources = true
		_, err := Bootstrap(ctx, cfg)
		require.NoError(t, err)

		require.NoError(t, Cleanup(ctx, cfg, nil))
		_, err = cfg.Tables.Describe(ctx, res.Table)
		require.ErrorIs(t, err, awsclient.ErrNotFound)
	})
}
