package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/s3/demo/folder", nil)
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	requestID := w.Header().Get(requestIDHeader)
	require.NotEmpty(t, requestID)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, summary map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &summary))

	require.Equal(t, requestID, inner["request_id"])
	require.Equal(t, "inside", inner["message"])
	require.Equal(t, "http request", summary["message"])
	require.Equal(t, "info", summary["level"])
	require.EqualValues(t, http.StatusCreated, summary["status"])
	require.EqualValues(t, 2, summary["bytes"])
	require.Equal(t, "/api/s3/demo/folder", summary["path"])
}

func TestRequestLogger_reusesIncomingIDAndFlagsErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/s3", nil)
	r.Header.Set(requestIDHeader, "0190B0A6-6C1E-7B3A-9D2F-5E8A1C4B7D90")
	handler.ServeHTTP(w, r)

	require.Equal(t, "0190b0a6-6c1e-7b3a-9d2f-5e8a1c4b7d90", w.Header().Get(requestIDHeader))

	var summary map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &summary))
	require.Equal(t, "error", summary["level"])
	require.Equal(t, "0190b0a6-6c1e-7b3a-9d2f-5e8a1c4b7d90", summary["request_id"])
}

func TestRequestLogger_replacesInvalidIncomingID(t *testing.T) {
	for _, incoming := range []string{
		"req-123",
		"forged\n{\"level\":\"error\"}",
		strings.Repeat("a", 4096),
	} {
		var buf bytes.Buffer
		handler := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/s3", nil)
		r.Header.Set(requestIDHeader, incoming)
		handler.ServeHTTP(w, r)

		requestID := w.Header().Get(requestIDHeader)
		require.NotEqual(t, incoming, requestID)
		_, err := uuid.Parse(requestID)
		require.NoError(t, err)

		require.NotContains(t, buf.String(), incoming)
		var summary map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &summary))
		require.Equal(t, requestID, summary["request_id"])
	}
}
