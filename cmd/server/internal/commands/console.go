package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/assets"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/bootstrap"
	"github.com/wolfeidau/awsui/internal/console"
	httpmiddleware "github.com/wolfeidau/awsui/internal/http"
	"github.com/wolfeidau/awsui/internal/logger"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"github.com/wolfeidau/awsui/ui"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ConsoleCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"127.0.0.1:8080" env:"AWSUI_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"AWSUI_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"AWSUI_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:8080" env:"AWSUI_CORS_ORIGINS"`

	// Backend configuration
	AWS awsclient.Flags `embed:"" prefix:"aws-"`

	// Console limits
	PageSize          int           `help:"objects per listing page" default:"200" env:"AWSUI_PAGE_SIZE"`
	SearchKeys        int           `help:"maximum keys walked by a bucket search" default:"10000" env:"AWSUI_SEARCH_KEYS"`
	MaxUploadBytes    int64         `help:"maximum size of a single uploaded file" default:"104857600" env:"AWSUI_MAX_UPLOAD_BYTES"`
	PresignTTL        time.Duration `help:"lifetime of presigned preview URLs" default:"15m" env:"AWSUI_PRESIGN_TTL"`
	PreviewMaxBytes   int64         `help:"maximum bytes read for a preview" default:"1048576" env:"AWSUI_PREVIEW_MAX_BYTES"`
	PreviewTimeout    time.Duration `help:"timeout fetching a preview body" default:"30s" env:"AWSUI_PREVIEW_TIMEOUT"`
	PreviewCacheDir   string        `help:"directory caching preview bodies, in memory when empty" default:"" env:"AWSUI_PREVIEW_CACHE_DIR"`
	PreviewCacheBytes int64         `help:"size bound of the in-memory preview cache" default:"67108864" env:"AWSUI_PREVIEW_CACHE_BYTES"`

	// Assets
	Prebuilt bool `help:"serve assets from a previous build instead of running esbuild at startup" default:"false" env:"AWSUI_PREBUILT"`

	// Development and operational modes
	Development      bool    `help:"development mode - seed the emulator with demo resources" default:"false" env:"AWSUI_DEVELOPMENT"`
	DevelopmentClean bool    `help:"clean demo resources on startup in development mode (deletes all data)" default:"false" env:"AWSUI_DEVELOPMENT_CLEAN"`
	Tracing          bool    `help:"enable tracing" default:"false" env:"AWSUI_TRACING"`
	TraceSampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"AWSUI_TRACE_SAMPLE_RATIO"`
}

func (c *ConsoleCmd) Validate() error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be set together (--cert and --key)")
	}
	return nil
}

func (c *ConsoleCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting console")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "awsui",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	awsCfg := c.AWS.Config()
	clients, err := awsclient.New(ctx, awsCfg)
	if err != nil {
		return fmt.Errorf("failed to create AWS clients: %w", err)
	}

	svc := console.Services{
		Objects: objects.NewService(clients.S3, clients.Presign, objects.Config{
			Region:         awsCfg.Region,
			MaxUploadBytes: c.MaxUploadBytes,
			PageSize:       c.PageSize,
		}),
		Queues: queues.NewService(clients.SQS),
		Tables: tables.NewService(clients.DynamoDB),
	}

	// Development mode: seed the emulator
	if c.Development {
		log.Info().Str("endpoint", awsCfg.Endpoint).Msg("Development mode enabled - seeding demo resources")

		resources, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
			Objects:        svc.Objects,
			Queues:         svc.Queues,
			Tables:         svc.Tables,
			Prefix:         "demo",
			CleanResources: c.DevelopmentClean,
			WaitTimeout:    time.Minute,
			SettleDelay:    2 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to bootstrap development resources: %w", err)
		}

		log.Info().
			Str("bucket", resources.Bucket).
			Str("table", resources.Table).
			Str("events_queue", resources.Queues["events"]).
			Str("orders_queue", resources.Queues["orders"]).
			Msg("Development resources ready")
	}

	// Build assets for UI
	assetCfg := assets.DefaultConfig()
	pipeline, err := assets.New(assetCfg, ui.Templates, ui.TemplateDir, console.Funcs())
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}
	if c.Prebuilt {
		err = pipeline.LoadMetafile()
	} else {
		err = pipeline.Build()
	}
	if err != nil {
		return fmt.Errorf("failed to load js assets: %w", err)
	}

	loader := preview.NewLoader(preview.LoaderConfig{
		Client:   preview.NewHTTPClient(c.PreviewCacheDir, c.PreviewCacheBytes, c.PreviewTimeout),
		MaxBytes: c.PreviewMaxBytes,
	})

	con := console.New(console.Config{
		Endpoint:        awsCfg.Endpoint,
		Region:          awsCfg.Region,
		SearchKeys:      c.SearchKeys,
		MaxRequestBytes: c.MaxUploadBytes * 4,
		PresignTTL:      c.PresignTTL,
	}, svc, loader, pipeline)

	mux := http.NewServeMux()

	// Serve static assets
	mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir(assetCfg.OutputDir))))
	con.Routes(mux)

	handler, err := c.handler(log, mux)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(ctx, c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" {
			if _, err := os.Stat(c.Cert); err != nil {
				errCh <- fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
				return
			}
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// handler wraps the routes with the middleware stack: request logging, client
// IP capture, optional tracing, CORS for API routes and cross origin
// protection for every state changing request.
func (c *ConsoleCmd) handler(log zerolog.Logger, mux http.Handler) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range c.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}

	protected := protection.Handler(mux)
	api := withCORS(c.CORSOrigins, protected)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API routes get CORS, every route gets CSRF
		if isAPIRoute(r.URL.Path) {
			api.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})

	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "awsui",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !strings.HasPrefix(r.URL.Path, "/public/") && r.URL.Path != "/healthz"
			}),
		)
	}

	handler = httpmiddleware.ClientIPMiddleware()(handler)
	return logger.RequestLogger(log)(handler), nil
}

// isAPIRoute returns true if the path is an API route that needs CORS
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support to the JSON API.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Accept", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	return middleware.Handler(h)
}
