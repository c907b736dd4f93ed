// Package bootstrap seeds a local AWS emulator with demo buckets, queues and
// tables so every console page has something to show.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Bootstrap creates all demo infrastructure (S3 bucket + SQS queues + DynamoDB table)
// If CleanResources is true, deletes existing resources first to ensure clean state
// If CleanResources is false, reuses existing resources and leaves their data alone
func Bootstrap(ctx context.Context, cfg Config) (*Resources, error) {
	if cfg.Objects == nil {
		return nil, errors.New("objects service is required")
	}
	if cfg.Queues == nil {
		return nil, errors.New("queues service is required")
	}
	if cfg.Tables == nil {
		return nil, errors.New("tables service is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "demo"
	}

	if cfg.WaitTimeout > 0 {
		if err := WaitForBackend(ctx, cfg, cfg.WaitTimeout); err != nil {
			return nil, err
		}
	}

	if cfg.CleanResources {
		if err := Cleanup(ctx, cfg, nil); err != nil {
			return nil, fmt.Errorf("failed to clean existing resources: %w", err)
		}
	}

	resources := &Resources{}

	bucket, keys, err := CreateBucket(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 bucket: %w", err)
	}
	resources.Bucket, resources.Keys = bucket, keys

	queueNames, err := CreateQueues(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS queues: %w", err)
	}
	resources.Queues = queueNames

	table, err := CreateTable(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB table: %w", err)
	}
	resources.Table = table

	zerolog.Ctx(ctx).Info().
		Str("bucket", resources.Bucket).
		Int("objects", len(resources.Keys)).
		Str("table", resources.Table).
		Msg("bootstrap complete")

	return resources, nil
}

// WaitForBackend retries ListBuckets with exponential backoff until the
// emulator answers or timeout passes.
func WaitForBackend(ctx context.Context, cfg Config, timeout time.Duration) error {
	log := zerolog.Ctx(ctx)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := cfg.Objects.ListBuckets(ctx)
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Info().Err(err).Dur("retry_in", next).Msg("waiting for backend")
		}),
	)
	if err != nil {
		return fmt.Errorf("backend not ready after %s: %w", timeout, err)
	}
	return nil
}

// Cleanup deletes the demo resources. A nil res deletes the resources the
// configuration names, missing resources are ignored.
func Cleanup(ctx context.Context, cfg Config, res *Resources) error {
	if cfg.Prefix == "" {
		cfg.Prefix = "demo"
	}
	if res == nil {
		res = &Resources{Bucket: cfg.bucketName(), Queues: cfg.queueNames(), Table: cfg.tableName()}
	}

	if err := DeleteBucket(ctx, cfg, res.Bucket); err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	if err := DeleteQueues(ctx, cfg, res.Queues); err != nil {
		return fmt.Errorf("failed to delete queues: %w", err)
	}

	if err := DeleteTable(ctx, cfg, res.Table); err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	return nil
}
