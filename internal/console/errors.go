package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/assets"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/objects"
)

// errRender marks failures of the console itself rather than the backend.
var errRender = errors.New("render failed")

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// StatusFor maps an error to the HTTP status reported to the browser.
// Unclassified errors are backend failures and report 502.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, awsclient.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, awsclient.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, awsclient.ErrAlreadyExists), errors.Is(err, awsclient.ErrNotEmpty):
		return http.StatusConflict
	case errors.Is(err, objects.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, awsclient.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errRender):
		return http.StatusInternalServerError
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadGateway
}

func logError(r *http.Request, status int, err error) {
	evt := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Int("status", status).Msg("request failed")
}

type errorPage struct {
	Status     int
	StatusText string
	Message    string
	Back       string
}

// page adapts an HTML handler, rendering the error page on failure.
func (c *Console) page(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		status := StatusFor(err)
		logError(r, status, err)

		data := errorPage{
			Status:     status,
			StatusText: http.StatusText(status),
			Message:    err.Error(),
			Back:       r.Referer(),
		}

		var buf bytes.Buffer
		if rerr := c.pages.Render(&buf, "error", assets.Page{Title: data.StatusText, Context: data}); rerr != nil {
			zerolog.Ctx(r.Context()).Error().Err(rerr).Msg("failed to render error page")
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = buf.WriteTo(w)
	}
}

// api adapts a JSON handler, writing {"error": "..."} on failure.
func (c *Console) api(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		status := StatusFor(err)
		logError(r, status, err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func (c *Console) render(w http.ResponseWriter, name string, page assets.Page) error {
	var buf bytes.Buffer
	if err := c.pages.Render(&buf, name, page); err != nil {
		return fmt.Errorf("%w: %w", errRender, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", awsclient.ErrInvalidInput, err)
	}
	return nil
}

// seeOther redirects a form post back to a listing.
func seeOther(w http.ResponseWriter, r *http.Request, path string, query url.Values) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
	return nil
}
