package objects

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/cursor"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"github.com/wolfeidau/awsui/internal/util"
)

// S3 service limits
const (
	maxDeleteBatch      = 1000 // DeleteObjects accepts at most 1000 keys
	maxPageSize         = 1000 // ListObjectsV2 returns at most 1000 keys
	defaultPageSize     = 200
	defaultMaxUpload    = 64 << 20
	defaultPresignedTTL = 15 * time.Minute
)

var ErrTooLarge = errors.New("object exceeds upload limit")

// Config tunes the object service.
type Config struct {
	// Region used as the location constraint for new buckets.
	Region string
	// MaxUploadBytes caps the size of a single upload.
	MaxUploadBytes int64
	// PageSize is the listing page size when callers pass 0.
	PageSize int
}

// Service lists and mutates S3 buckets and objects.
type Service struct {
	client  awsclient.S3API
	presign awsclient.S3Presigner
	cfg     Config
}

func NewService(client awsclient.S3API, presign awsclient.S3Presigner, cfg Config) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = defaultPageSize
	}
	return &Service{client: client, presign: presign, cfg: cfg}
}

func (s *Service) observe(ctx context.Context, op string, err error) error {
	telemetry.RecordBackendCall(ctx, "s3", op, err)
	return awsclient.Classify(err, "s3."+op)
}

// ListBuckets returns every bucket sorted by name.
func (s *Service) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err = s.observe(ctx, "ListBuckets", err); err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int { return strings.Compare(a.Name, b.Name) })
	return buckets, nil
}

// CreateBucket creates a bucket in the configured region.
func (s *Service) CreateBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 is the default location and rejects an explicit constraint
	if s.cfg.Region != "" && s.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	return s.observe(ctx, "CreateBucket", err)
}

// DeleteBucket removes a bucket. With force set every object is deleted
// first, otherwise a non-empty bucket fails with ErrNotEmpty.
func (s *Service) DeleteBucket(ctx context.Context, name string, force bool) error {
	if force {
		if _, err := s.deletePrefix(ctx, name, ""); err != nil {
			return err
		}
	}

	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	return s.observe(ctx, "DeleteBucket", err)
}

// List returns one page of the folders and objects directly under prefix.
// Folders come first, then objects, each ordered by name.
func (s *Service) List(ctx context.Context, bucket, prefix, pageCursor string, pageSize int) (*Listing, error) {
	token, err := cursor.DecodeString(pageCursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = s.cfg.PageSize
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(util.AsInt32(pageSize)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err = s.observe(ctx, "ListObjectsV2", err); err != nil {
		return nil, err
	}

	listing := &Listing{
		Bucket:      bucket,
		Prefix:      prefix,
		Breadcrumbs: Breadcrumbs(bucket, prefix),
		Objects:     make([]Object, 0, len(out.CommonPrefixes)+len(out.Contents)),
	}
	if aws.ToBool(out.IsTruncated) {
		listing.NextCursor = cursor.EncodeString(aws.ToString(out.NextContinuationToken))
	}

	for _, cp := range out.CommonPrefixes {
		key := aws.ToString(cp.Prefix)
		dir, name := SplitKey(key)
		listing.Objects = append(listing.Objects, Object{Key: key, Name: name, Dir: dir, IsFolder: true})
	}

	files := make([]Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		// the folder marker created by CreateFolder
		if key == prefix {
			continue
		}
		files = append(files, objectFromListing(obj))
	}

	byName := func(a, b Object) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(listing.Objects, byName)
	slices.SortFunc(files, byName)
	listing.Objects = append(listing.Objects, files...)

	return listing, nil
}

func objectFromListing(obj types.Object) Object {
	key := aws.ToString(obj.Key)
	dir, name := SplitKey(key)
	size := aws.ToInt64(obj.Size)
	return Object{
		Key:          key,
		Name:         name,
		Dir:          dir,
		IsFolder:     strings.HasSuffix(key, "/"),
		Size:         size,
		SizeHuman:    HumanSize(size),
		LastModified: aws.ToTime(obj.LastModified),
		ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
		StorageClass: string(obj.StorageClass),
	}
}

// Keys walks every page under prefix and returns up to limit keys. It feeds
// the bucket wide fuzzy search.
func (s *Service) Keys(ctx context.Context, bucket, prefix string, limit int) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err = s.observe(ctx, "ListObjectsV2", err); err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
			if limit > 0 && len(keys) >= limit {
				log.Ctx(ctx).Debug().Str("bucket", bucket).Int("limit", limit).Msg("key walk truncated")
				return keys, nil
			}
		}
	}
	return keys, nil
}

// Head returns the metadata of a single object.
func (s *Service) Head(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err = s.observe(ctx, "HeadObject", err); err != nil {
		return nil, err
	}

	return newObjectInfo(bucket, key, aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType),
		aws.ToString(out.ContentEncoding), aws.ToString(out.ETag), aws.ToTime(out.LastModified), out.Metadata), nil
}

// ObjectReader is an open object body with its metadata. Callers must close it.
type ObjectReader struct {
	Info         *ObjectInfo
	ContentRange string
	Body         io.ReadCloser
}

func (r *ObjectReader) Read(p []byte) (int, error) {
	return r.Body.Read(p)
}

func (r *ObjectReader) Close() error {
	return r.Body.Close()
}

// Open streams the object body. byteRange is an optional HTTP Range value.
func (s *Service) Open(ctx context.Context, bucket, key, byteRange string) (*ObjectReader, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if byteRange != "" {
		input.Range = aws.String(byteRange)
	}

	out, err := s.client.GetObject(ctx, input)
	if err = s.observe(ctx, "GetObject", err); err != nil {
		return nil, err
	}

	return &ObjectReader{
		Info: newObjectInfo(bucket, key, aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType),
			aws.ToString(out.ContentEncoding), aws.ToString(out.ETag), aws.ToTime(out.LastModified), out.Metadata),
		ContentRange: aws.ToString(out.ContentRange),
		Body:         out.Body,
	}, nil
}

func newObjectInfo(bucket, key string, size int64, contentType, encoding, etag string, modified time.Time, meta map[string]string) *ObjectInfo {
	dir, name := SplitKey(key)
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = preview.ContentTypeFor(name, nil)
	}
	return &ObjectInfo{
		Bucket:          bucket,
		Key:             key,
		Name:            name,
		Dir:             dir,
		Size:            size,
		SizeHuman:       HumanSize(size),
		ContentType:     contentType,
		ContentEncoding: encoding,
		ETag:            strings.Trim(etag, `"`),
		LastModified:    modified,
		Metadata:        meta,
	}
}

// PresignGet returns a URL that fetches the object without credentials.
func (s *Service) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultPresignedTTL
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", awsclient.Classify(err, "s3.PresignGetObject")
	}
	return req.URL, nil
}

// UploadInput describes a single object upload.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
}

// UploadResult reports what was stored.
type UploadResult struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Checksum    string `json:"checksum_crc64nvme"`
}

// Upload stores a body of at most MaxUploadBytes. The content type is taken
// from the input, then the key extension, then the content itself. A
// CRC64NVME checksum is sent so the backend verifies the payload.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	key := in.Key
	if err := ValidateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	if strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("%w: object key must not end in \"/\"", awsclient.ErrInvalidInput)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload body: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %s is larger than %s", ErrTooLarge, key, HumanSize(s.cfg.MaxUploadBytes))
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = preview.ContentTypeFor(key, data)
	}

	checksum := checksumCRC64NVME(data)
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(in.Bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ContentType:       aws.String(contentType),
		ChecksumCRC64NVME: aws.String(checksum),
	})
	if err = s.observe(ctx, "PutObject", err); err != nil {
		return nil, err
	}

	m := telemetry.GetMetrics()
	m.ObjectsUploadedTotal.Add(ctx, 1)
	m.UploadedBytesTotal.Add(ctx, int64(len(data)))

	return &UploadResult{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Checksum:    checksum,
	}, nil
}

// checksumCRC64NVME returns the base64 big endian CRC64NVME digest expected
// by the x-amz-checksum-crc64nvme header.
func checksumCRC64NVME(data []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return base64.StdEncoding.EncodeToString(buf[:])
}

// CreateFolder writes the zero byte marker object for prefix.
func (s *Service) CreateFolder(ctx context.Context, bucket, prefix string) (string, error) {
	key := strings.TrimSpace(prefix)
	if key == "" {
		return "", fmt.Errorf("%w: folder name is required", awsclient.ErrInvalidInput)
	}
	if err := ValidateKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	return key, s.observe(ctx, "PutObject", err)
}

// Delete removes keys from bucket. Keys ending in "/" remove everything under
// that prefix. It returns the number of deleted objects.
func (s *Service) Delete(ctx context.Context, bucket string, keys []string) (int, error) {
	var (
		plain   []string
		deleted int
	)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if strings.HasSuffix(key, "/") {
			n, err := s.deletePrefix(ctx, bucket, key)
			deleted += n
			if err != nil {
				return deleted, err
			}
			continue
		}
		plain = append(plain, key)
	}

	n, err := s.deleteKeys(ctx, bucket, plain)
	return deleted + n, err
}

func (s *Service) deletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	keys, err := s.Keys(ctx, bucket, prefix, 0)
	if err != nil {
		return 0, err
	}
	return s.deleteKeys(ctx, bucket, keys)
}

func (s *Service) deleteKeys(ctx context.Context, bucket string, keys []string) (int, error) {
	deleted := 0
	for batch := range slices.Chunk(keys, maxDeleteBatch) {
		ids := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			ids[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err = s.observe(ctx, "DeleteObjects", err); err != nil {
			return deleted, err
		}

		deleted += len(batch) - len(out.Errors)
		telemetry.GetMetrics().ObjectsDeletedTotal.Add(ctx, int64(len(batch)-len(out.Errors)))

		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deleted, fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return deleted, nil
}

// Rename moves an object, or a whole folder when from ends in "/", by copying
// and then deleting the source. The target must not exist.
func (s *Service) Rename(ctx context.Context, bucket, from, to string) (int, error) {
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: source and target are required", awsclient.ErrInvalidInput)
	}
	if err := ValidateKey(to); err != nil {
		return 0, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}

	if strings.HasSuffix(from, "/") {
		if !strings.HasSuffix(to, "/") {
			to += "/"
		}
		if from == to {
			return 0, fmt.Errorf("%w: source and target are the same", awsclient.ErrInvalidInput)
		}
		if strings.HasPrefix(to, from) {
			return 0, fmt.Errorf("%w: cannot move a folder into itself", awsclient.ErrInvalidInput)
		}
		return s.renameFolder(ctx, bucket, from, to)
	}

	if from == to || strings.HasSuffix(to, "/") {
		return 0, fmt.Errorf("%w: target must be a different object key", awsclient.ErrInvalidInput)
	}

	if err := s.ensureAbsent(ctx, bucket, to); err != nil {
		return 0, err
	}
	if err := s.copy(ctx, bucket, from, to); err != nil {
		return 0, err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(from),
	})
	if err = s.observe(ctx, "DeleteObject", err); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Service) renameFolder(ctx context.Context, bucket, from, to string) (int, error) {
	existing, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(to),
		MaxKeys: aws.Int32(1),
	})
	if err = s.observe(ctx, "ListObjectsV2", err); err != nil {
		return 0, err
	}
	if len(existing.Contents) > 0 {
		return 0, fmt.Errorf("%w: %s", awsclient.ErrAlreadyExists, to)
	}

	keys, err := s.Keys(ctx, bucket, from, 0)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: %s", awsclient.ErrNotFound, from)
	}

	for _, key := range keys {
		if err := s.copy(ctx, bucket, key, to+strings.TrimPrefix(key, from)); err != nil {
			return 0, err
		}
	}
	return s.deleteKeys(ctx, bucket, keys)
}

func (s *Service) ensureAbsent(ctx context.Context, bucket, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return fmt.Errorf("%w: %s", awsclient.ErrAlreadyExists, key)
	}
	if err = s.observe(ctx, "HeadObject", err); errors.Is(err, awsclient.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) copy(ctx context.Context, bucket, from, to string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(to),
		CopySource: aws.String(copySource(bucket, from)),
	})
	return s.observe(ctx, "CopyObject", err)
}

// copySource URL encodes each path segment of bucket/key.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return bucket + "/" + strings.Join(parts, "/")
}
