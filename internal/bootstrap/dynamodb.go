package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/tables"
)

const tableActiveTimeout = 30 * time.Second

// CreateTable creates the orders table, keyed by customer and order number,
// and writes the sample items. An existing table is reused untouched.
func CreateTable(ctx context.Context, cfg Config) (string, error) {
	name := cfg.tableName()

	_, err := cfg.Tables.Describe(ctx, name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, awsclient.ErrNotFound) {
		return "", fmt.Errorf("failed to check table %s: %w", name, err)
	}

	_, err = cfg.Tables.Create(ctx, name,
		tables.KeyAttr{Name: "customer", Type: "S"},
		&tables.KeyAttr{Name: "order_id", Type: "N"},
	)
	if err != nil {
		return "", err
	}

	if err := waitForActive(ctx, cfg.Tables, name); err != nil {
		return "", err
	}

	for _, doc := range sampleItems {
		if _, err := cfg.Tables.Put(ctx, name, []byte(doc)); err != nil {
			return "", fmt.Errorf("failed to write sample item: %w", err)
		}
	}

	return name, nil
}

// waitForActive polls the table until it leaves the CREATING state.
func waitForActive(ctx context.Context, svc *tables.Service, name string) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		t, err := svc.Describe(ctx, name)
		if err != nil {
			return struct{}{}, err
		}
		if t.Status != "ACTIVE" {
			return struct{}{}, fmt.Errorf("table %s is %s", name, t.Status)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(500*time.Millisecond)),
		backoff.WithMaxElapsedTime(tableActiveTimeout),
	)
	return err
}

// DeleteTable removes the table if it exists.
func DeleteTable(ctx context.Context, cfg Config, name string) error {
	if name == "" {
		return nil
	}
	err := cfg.Tables.Delete(ctx, name)
	if errors.Is(err, awsclient.ErrNotFound) {
		return nil
	}
	return err
}
