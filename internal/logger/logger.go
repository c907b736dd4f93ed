package logger

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/awsui/internal/http"
)

const requestIDHeader = "X-Request-Id"

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// RequestLogger attaches a request scoped logger to the context and logs
// every request once it has been served. Static assets are logged at debug.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			requestID := incomingRequestID(r)
			if requestID == "" {
				requestID = uuid.Must(uuid.NewV7()).String()
			}
			w.Header().Set(requestIDHeader, requestID)

			ctx := logger.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger().WithContext(r.Context())

			rec := httpmiddleware.NewRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			var evt *zerolog.Event
			switch {
			case rec.Status() >= http.StatusInternalServerError:
				evt = zerolog.Ctx(ctx).Error()
			case strings.HasPrefix(r.URL.Path, "/public/"):
				evt = zerolog.Ctx(ctx).Debug()
			default:
				evt = zerolog.Ctx(ctx).Info()
			}

			evt.Int("status", rec.Status()).
				Int64("bytes", rec.Written()).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}

// incomingRequestID returns the caller's request ID in canonical form when it
// is a UUID, and empty otherwise so arbitrary text never reaches the logs.
func incomingRequestID(r *http.Request) string {
	id, err := uuid.Parse(r.Header.Get(requestIDHeader))
	if err != nil {
		return ""
	}
	return id.String()
}
