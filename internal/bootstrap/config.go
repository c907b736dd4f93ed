package bootstrap

import (
	"time"

	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
)

// Config holds configuration for seeding a local emulator with demo resources
type Config struct {
	Objects *objects.Service
	Queues  *queues.Service
	Tables  *tables.Service

	// Prefix names the demo resources, e.g. "demo" gives the bucket
	// "demo-bucket" and the queue "demo-events".
	Prefix string

	// CleanResources controls whether to delete existing resources before creating
	// Set to false to preserve data across restarts (useful for development with live reload)
	CleanResources bool

	// WaitTimeout bounds how long Bootstrap waits for the emulator to answer.
	// Zero skips the wait.
	WaitTimeout time.Duration

	// SettleDelay is slept after deleting queues, SQS deletes are eventually
	// consistent and a queue cannot be recreated straight away.
	SettleDelay time.Duration
}

// Resources holds identifiers for created infrastructure resources
type Resources struct {
	Bucket string
	// Keys are the sample object keys.
	Keys []string

	// Queue names by role ("events", "orders")
	Queues map[string]string

	// DynamoDB table name
	Table string
}

func (c Config) bucketName() string { return c.Prefix + "-bucket" }

func (c Config) queueNames() map[string]string {
	return map[string]string{
		"events": c.Prefix + "-events",
		"orders": c.Prefix + "-orders.fifo",
	}
}

func (c Config) tableName() string { return c.Prefix + "-orders" }
