package console

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/assets"
	"github.com/wolfeidau/awsui/internal/awsclient"
	httpmiddleware "github.com/wolfeidau/awsui/internal/http"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/search"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type bucketsPage struct {
	Buckets []objects.Bucket
}

func (c *Console) listBuckets(w http.ResponseWriter, r *http.Request) error {
	buckets, err := c.objects.ListBuckets(r.Context())
	if err != nil {
		return err
	}
	return c.render(w, "buckets", assets.Page{
		Title:   "S3 buckets",
		Entry:   "ui/pages/app.ts",
		Context: bucketsPage{Buckets: buckets},
	})
}

func (c *Console) createBucket(w http.ResponseWriter, r *http.Request) error {
	name := strings.TrimSpace(r.FormValue("name"))
	if err := c.objects.CreateBucket(r.Context(), name); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "s3.create_bucket").Str("bucket", name).Msg("bucket created")
	return seeOther(w, r, "/s3/"+name, nil)
}

func (c *Console) deleteBucket(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	force := formBool(r, "force")
	if err := c.objects.DeleteBucket(r.Context(), bucket, force); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "s3.delete_bucket").Str("bucket", bucket).Bool("force", force).Msg("bucket deleted")
	return seeOther(w, r, "/s3", nil)
}

// objectRow is a listing entry with its name split into highlighted runs.
type objectRow struct {
	objects.Object
	Segments []search.Segment
}

type objectsPage struct {
	*objects.Listing
	Query string
	Rows  []objectRow
}

func (c *Console) listObjects(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))

	listing, err := c.objects.List(r.Context(), bucket, q.Get("prefix"), q.Get("cursor"), 0)
	if err != nil {
		return err
	}

	data := objectsPage{Listing: listing, Query: query}
	if query == "" {
		data.Rows = make([]objectRow, 0, len(listing.Objects))
		for _, obj := range listing.Objects {
			data.Rows = append(data.Rows, objectRow{Object: obj, Segments: []search.Segment{{Text: obj.Name}}})
		}
	} else {
		countSearch(r, "page")
		names := make([]string, len(listing.Objects))
		for i, obj := range listing.Objects {
			names[i] = obj.Name
		}
		for _, m := range search.Filter(query, names, 0) {
			data.Rows = append(data.Rows, objectRow{
				Object:   listing.Objects[m.Index],
				Segments: search.Highlight(m.Text, m.Result.Spans),
			})
		}
	}

	return c.render(w, "objects", assets.Page{
		Title:   bucket + "/" + listing.Prefix,
		Entry:   "ui/pages/browser.ts",
		Context: data,
	})
}

func countSearch(r *http.Request, scope string) {
	telemetry.GetMetrics().SearchQueriesTotal.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("scope", scope)))
}

func rawURL(bucket, key string, download bool) string {
	q := url.Values{"key": {key}}
	if download {
		q.Set("download", "1")
	}
	return "/raw/s3/" + url.PathEscape(bucket) + "?" + q.Encode()
}

func requireKey(r *http.Request) (string, error) {
	key := r.URL.Query().Get("key")
	if key == "" {
		return "", fmt.Errorf("%w: key is required", awsclient.ErrInvalidInput)
	}
	return key, nil
}

type objectPage struct {
	Info         *objects.ObjectInfo
	Breadcrumbs  []objects.Crumb
	RawURL       string
	DownloadURL  string
	Preview      *preview.Document
	PreviewError string
}

func (c *Console) showObject(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	key, err := requireKey(r)
	if err != nil {
		return err
	}

	info, err := c.objects.Head(r.Context(), bucket, key)
	if err != nil {
		return err
	}

	data := objectPage{
		Info:        info,
		Breadcrumbs: objects.Breadcrumbs(bucket, info.Dir),
		RawURL:      rawURL(bucket, key, false),
		DownloadURL: rawURL(bucket, key, true),
	}

	// a failed preview still shows the object details
	data.Preview, err = c.loadPreview(r, info)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("preview failed")
		data.PreviewError = err.Error()
	}

	return c.render(w, "object", assets.Page{
		Title:   info.Name,
		Entry:   "ui/pages/object.ts",
		Context: data,
	})
}

func (c *Console) loadPreview(r *http.Request, info *objects.ObjectInfo) (*preview.Document, error) {
	presigned, err := c.objects.PresignGet(r.Context(), info.Bucket, info.Key, c.cfg.PresignTTL)
	if err != nil {
		return nil, err
	}
	return c.previews.Load(r.Context(), preview.Request{
		URL:         presigned,
		ContentType: info.ContentType,
		Name:        info.Name,
		EmbedURL:    rawURL(info.Bucket, info.Key, false),
	})
}

func (c *Console) previewObject(w http.ResponseWriter, r *http.Request) error {
	key, err := requireKey(r)
	if err != nil {
		return err
	}
	info, err := c.objects.Head(r.Context(), r.PathValue("bucket"), key)
	if err != nil {
		return err
	}
	doc, err := c.loadPreview(r, info)
	if err != nil {
		var fetchErr *preview.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", awsclient.ErrNotFound, err)
		}
		return err
	}
	writeJSON(w, http.StatusOK, doc)
	return nil
}

// rawObject streams an object through the console so media embeds work
// against backends the browser cannot reach directly.
func (c *Console) rawObject(w http.ResponseWriter, r *http.Request) error {
	key, err := requireKey(r)
	if err != nil {
		return err
	}

	obj, err := c.objects.Open(r.Context(), r.PathValue("bucket"), key, r.Header.Get("Range"))
	if err != nil {
		return err
	}
	defer obj.Close()

	h := w.Header()
	h.Set("Content-Type", obj.Info.ContentType)
	h.Set("Content-Length", strconv.FormatInt(obj.Info.Size, 10))
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Content-Type-Options", "nosniff")
	// html and svg objects render inline without script or same-origin access
	h.Set("Content-Security-Policy", "sandbox")
	if obj.Info.ETag != "" {
		h.Set("ETag", strconv.Quote(obj.Info.ETag))
	}
	if obj.Info.ContentEncoding != "" {
		h.Set("Content-Encoding", obj.Info.ContentEncoding)
	}
	if !obj.Info.LastModified.IsZero() {
		h.Set("Last-Modified", obj.Info.LastModified.UTC().Format(http.TimeFormat))
	}
	disposition := "inline"
	if formBool(r, "download") {
		disposition = "attachment"
	}
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": obj.Info.Name}))

	status := http.StatusOK
	if obj.ContentRange != "" {
		h.Set("Content-Range", obj.ContentRange)
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if _, err := io.Copy(w, obj); err != nil {
		// headers are gone, the client sees a short body
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("object stream interrupted")
	}
	return nil
}

type searchResult struct {
	Key      string           `json:"key"`
	Score    float64          `json:"score"`
	Spans    []search.Span    `json:"spans"`
	Segments []search.Segment `json:"segments"`
}

type searchResponse struct {
	Query     string         `json:"query"`
	Prefix    string         `json:"prefix"`
	Results   []searchResult `json:"results"`
	Scanned   int            `json:"scanned"`
	Truncated bool           `json:"truncated"`
}

func (c *Console) searchObjects(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	prefix := q.Get("prefix")

	limit := c.cfg.SearchLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v < limit {
		limit = v
	}

	// one extra key tells a bucket holding exactly SearchKeys keys apart
	// from a larger one
	keys, err := c.objects.Keys(r.Context(), r.PathValue("bucket"), prefix, c.cfg.SearchKeys+1)
	if err != nil {
		return err
	}
	countSearch(r, "bucket")

	truncated := len(keys) > c.cfg.SearchKeys
	if truncated {
		keys = keys[:c.cfg.SearchKeys]
	}

	resp := searchResponse{
		Query:     query,
		Prefix:    prefix,
		Results:   []searchResult{},
		Scanned:   len(keys),
		Truncated: truncated,
	}
	for _, m := range search.Filter(query, keys, limit) {
		resp.Results = append(resp.Results, searchResult{
			Key:      m.Text,
			Score:    m.Result.Score,
			Spans:    m.Result.Spans,
			Segments: search.Highlight(m.Text, m.Result.Spans),
		})
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

type uploadFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Uploaded []*objects.UploadResult `json:"uploaded"`
	Failed   []uploadFailure         `json:"failed"`
}

// uploadObjects stores every file part of a multipart request under the
// "prefix" field. A "path" field before a file part carries its relative
// path for dropped folders; otherwise the part's file name is used.
func (c *Console) uploadObjects(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	r.Body = http.MaxBytesReader(w, r.Body, c.cfg.MaxRequestBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return fmt.Errorf("%w: expected a multipart upload: %v", awsclient.ErrInvalidInput, err)
	}

	var (
		prefix      string
		pendingPath string
		resp        = uploadResponse{Uploaded: []*objects.UploadResult{}, Failed: []uploadFailure{}}
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: malformed multipart body: %v", awsclient.ErrInvalidInput, err)
		}

		switch part.FormName() {
		case "prefix":
			prefix, err = readField(part)
		case "path":
			pendingPath, err = readField(part)
		case "file":
			name := pendingPath
			if name == "" {
				name = part.FileName()
			}
			pendingPath = ""
			key := prefix + name

			res, uerr := c.objects.Upload(r.Context(), objects.UploadInput{
				Bucket:      bucket,
				Key:         key,
				Body:        part,
				ContentType: part.Header.Get("Content-Type"),
			})
			if uerr != nil {
				var maxErr *http.MaxBytesError
				if errors.As(uerr, &maxErr) {
					return uerr
				}
				resp.Failed = append(resp.Failed, uploadFailure{Key: key, Error: uerr.Error()})
			} else {
				httpmiddleware.Audit(r.Context(), "s3.upload").Str("bucket", bucket).Str("key", res.Key).Int64("size", res.Size).Msg("object uploaded")
				resp.Uploaded = append(resp.Uploaded, res)
			}
		}
		_ = part.Close()
		if err != nil {
			return err
		}
	}

	if len(resp.Uploaded) == 0 && len(resp.Failed) == 0 {
		return fmt.Errorf("%w: no files in upload", awsclient.ErrInvalidInput)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, 4096))
	if err != nil {
		return "", fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	return string(data), nil
}

type deleteRequest struct {
	Keys []string `json:"keys"`
}

func (c *Console) deleteObjects(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if len(req.Keys) == 0 {
		return fmt.Errorf("%w: no keys given", awsclient.ErrInvalidInput)
	}

	deleted, err := c.objects.Delete(r.Context(), bucket, req.Keys)
	httpmiddleware.Audit(r.Context(), "s3.delete").Str("bucket", bucket).Strs("keys", req.Keys).Int("deleted", deleted).Err(err).Msg("objects deleted")
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	return nil
}

type renameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (c *Console) renameObject(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	moved, err := c.objects.Rename(r.Context(), bucket, req.From, req.To)
	if err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "s3.rename").Str("bucket", bucket).Str("from", req.From).Str("to", req.To).Int("moved", moved).Msg("object renamed")
	writeJSON(w, http.StatusOK, map[string]int{"moved": moved})
	return nil
}

type folderRequest struct {
	Prefix string `json:"prefix"`
}

func (c *Console) createFolder(w http.ResponseWriter, r *http.Request) error {
	bucket := r.PathValue("bucket")
	var req folderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	key, err := c.objects.CreateFolder(r.Context(), bucket, req.Prefix)
	if err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "s3.create_folder").Str("bucket", bucket).Str("key", key).Msg("folder created")
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
	return nil
}

func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.FormValue(name)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
