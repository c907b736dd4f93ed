// Package console serves the browser console: server rendered pages for S3,
// SQS and DynamoDB plus the JSON API used by the page scripts.
package console

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfeidau/awsui/internal/assets"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
)

const (
	defaultSearchLimit = 50
	defaultSearchKeys  = 10000
	defaultPeek        = 10
	defaultMaxRequest  = 256 << 20
	maxJSONBody        = 1 << 20
)

// Config tunes the console handlers.
type Config struct {
	// Endpoint and Region are shown on the dashboard.
	Endpoint string
	Region   string
	// SearchLimit caps the number of search results returned.
	SearchLimit int
	// SearchKeys caps the number of keys walked by a bucket search.
	SearchKeys int
	// MaxRequestBytes caps an upload request holding several files.
	MaxRequestBytes int64
	// PresignTTL is the lifetime of the URLs handed to the preview loader.
	PresignTTL time.Duration
}

// Previewer renders object previews.
type Previewer interface {
	Load(ctx context.Context, req preview.Request) (*preview.Document, error)
}

// Services are the backend services the console drives.
type Services struct {
	Objects *objects.Service
	Queues  *queues.Service
	Tables  *tables.Service
}

// Console holds the handlers.
type Console struct {
	cfg      Config
	objects  *objects.Service
	queues   *queues.Service
	tables   *tables.Service
	previews Previewer
	pages    *assets.Pipeline
}

func New(cfg Config, svc Services, previews Previewer, pages *assets.Pipeline) *Console {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.SearchKeys <= 0 {
		cfg.SearchKeys = defaultSearchKeys
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequest
	}
	return &Console{
		cfg:      cfg,
		objects:  svc.Objects,
		queues:   svc.Queues,
		tables:   svc.Tables,
		previews: previews,
		pages:    pages,
	}
}

// Routes registers every console route on mux.
func (c *Console) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /{$}", c.page(c.dashboard))

	// S3
	mux.HandleFunc("GET /s3", c.page(c.listBuckets))
	mux.HandleFunc("POST /s3", c.page(c.createBucket))
	mux.HandleFunc("GET /s3/{bucket}", c.page(c.listObjects))
	mux.HandleFunc("POST /s3/{bucket}/delete", c.page(c.deleteBucket))
	mux.HandleFunc("GET /s3/{bucket}/object", c.page(c.showObject))
	mux.HandleFunc("GET /raw/s3/{bucket}", c.page(c.rawObject))

	mux.HandleFunc("GET /api/s3/{bucket}/search", c.api(c.searchObjects))
	mux.HandleFunc("GET /api/s3/{bucket}/preview", c.api(c.previewObject))
	mux.HandleFunc("POST /api/s3/{bucket}/upload", c.api(c.uploadObjects))
	mux.HandleFunc("POST /api/s3/{bucket}/delete", c.api(c.deleteObjects))
	mux.HandleFunc("POST /api/s3/{bucket}/rename", c.api(c.renameObject))
	mux.HandleFunc("POST /api/s3/{bucket}/folder", c.api(c.createFolder))

	// SQS
	mux.HandleFunc("GET /sqs", c.page(c.listQueues))
	mux.HandleFunc("POST /sqs", c.page(c.createQueue))
	mux.HandleFunc("GET /sqs/{queue}", c.page(c.showQueue))
	mux.HandleFunc("POST /sqs/{queue}/delete", c.page(c.deleteQueue))
	mux.HandleFunc("POST /sqs/{queue}/purge", c.page(c.purgeQueue))

	mux.HandleFunc("POST /api/sqs/{queue}/send", c.api(c.sendMessage))
	mux.HandleFunc("POST /api/sqs/{queue}/messages/delete", c.api(c.deleteMessage))

	// DynamoDB
	mux.HandleFunc("GET /dynamodb", c.page(c.listTables))
	mux.HandleFunc("POST /dynamodb", c.page(c.createTable))
	mux.HandleFunc("GET /dynamodb/{table}", c.page(c.scanTable))
	mux.HandleFunc("POST /dynamodb/{table}/delete", c.page(c.deleteTable))

	mux.HandleFunc("GET /api/dynamodb/{table}/item", c.api(c.getItem))
	mux.HandleFunc("POST /api/dynamodb/{table}/items", c.api(c.putItem))
	mux.HandleFunc("POST /api/dynamodb/{table}/items/delete", c.api(c.deleteItem))
}

// Handler returns a mux serving the console routes.
func (c *Console) Handler() http.Handler {
	mux := http.NewServeMux()
	c.Routes(mux)
	return mux
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type dashboardPage struct {
	Endpoint string
	Region   string
	Buckets  int
	Queues   int
	Tables   int
	Errors   map[string]string
}

func (c *Console) dashboard(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	data := dashboardPage{
		Endpoint: c.cfg.Endpoint,
		Region:   c.cfg.Region,
		Errors:   map[string]string{},
	}
	if data.Endpoint == "" {
		data.Endpoint = "AWS"
	}

	// one unreachable service should not hide the others
	if buckets, err := c.objects.ListBuckets(ctx); err != nil {
		data.Errors["s3"] = err.Error()
	} else {
		data.Buckets = len(buckets)
	}
	if qs, err := c.queues.List(ctx, ""); err != nil {
		data.Errors["sqs"] = err.Error()
	} else {
		data.Queues = len(qs)
	}
	if ts, err := c.tables.List(ctx); err != nil {
		data.Errors["dynamodb"] = err.Error()
	} else {
		data.Tables = len(ts)
	}

	return c.render(w, "dashboard", assets.Page{Title: "Dashboard", Context: data})
}
