// Package awsfake provides in-memory stand-ins for the S3, SQS and DynamoDB
// clients. They implement enough of each API for the console services and
// handlers to be tested without a running emulator.
package awsfake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/wolfeidau/awsui/internal/awsclient"
)

type s3Object struct {
	data        []byte
	contentType string
	encoding    string
	modified    time.Time
	metadata    map[string]string
}

type s3Bucket struct {
	created time.Time
	objects map[string]*s3Object
}

// S3 is an in-memory S3API and S3Presigner.
type S3 struct {
	mu      sync.Mutex
	buckets map[string]*s3Bucket

	// BaseURL prefixes presigned URLs.
	BaseURL string
	// FailDeleteKeys are reported as per key errors by DeleteObjects.
	FailDeleteKeys map[string]bool
	// Calls counts invocations per operation name.
	Calls map[string]int
}

var (
	_ awsclient.S3API       = (*S3)(nil)
	_ awsclient.S3Presigner = (*S3)(nil)
)

func NewS3() *S3 {
	return &S3{
		buckets:        map[string]*s3Bucket{},
		BaseURL:        "http://s3.fake",
		FailDeleteKeys: map[string]bool{},
		Calls:          map[string]int{},
	}
}

// AddBucket creates a bucket directly.
func (f *S3) AddBucket(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[name]; !ok {
		f.buckets[name] = &s3Bucket{created: time.Now(), objects: map[string]*s3Object{}}
	}
}

// Put stores an object directly, creating the bucket when needed.
func (f *S3) Put(bucket, key, contentType string, data []byte) {
	f.AddBucket(bucket)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket].objects[key] = &s3Object{data: data, contentType: contentType, modified: time.Now()}
}

// Data returns the stored body of an object.
func (f *S3) Data(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return nil, false
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// Keys returns the sorted keys of a bucket.
func (f *S3) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// HasBucket reports whether a bucket exists.
func (f *S3) HasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[name]
	return ok
}

func (f *S3) bucket(name string) (*s3Bucket, error) {
	b, ok := f.buckets[name]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	return b, nil
}

func (f *S3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ListBuckets"]++

	out := &s3.ListBucketsOutput{}
	for name, b := range f.buckets {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name), CreationDate: aws.Time(b.created)})
	}
	return out, nil
}

func (f *S3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CreateBucket"]++

	name := aws.ToString(params.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String("bucket exists")}
	}
	f.buckets[name] = &s3Bucket{created: time.Now(), objects: map[string]*s3Object{}}
	return &s3.CreateBucketOutput{Location: aws.String("/" + name)}, nil
}

func (f *S3) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["DeleteBucket"]++

	name := aws.ToString(params.Bucket)
	b, err := f.bucket(name)
	if err != nil {
		return nil, err
	}
	if len(b.objects) > 0 {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "The bucket you tried to delete is not empty"}
	}
	delete(f.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

// ListObjectsV2 supports Prefix, Delimiter, MaxKeys and ContinuationToken.
// The continuation token is the last key returned.
func (f *S3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ListObjectsV2"]++

	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}

	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)
	after := aws.ToString(params.ContinuationToken)
	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	out := &s3.ListObjectsV2Output{Prefix: params.Prefix, Delimiter: params.Delimiter}
	seen := map[string]bool{}
	count := 0
	last := ""
	for _, k := range keys {
		// entries are keyed by the key or common prefix they roll up into
		entry := k
		if delimiter != "" {
			if idx := strings.Index(k[len(prefix):], delimiter); idx >= 0 {
				entry = k[:len(prefix)+idx+len(delimiter)]
			}
		}
		if after != "" && entry <= after {
			continue
		}
		if seen[entry] {
			continue
		}
		if count == maxKeys {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(last)
			break
		}
		seen[entry] = true
		count++
		last = entry

		if entry != k {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(entry)})
			continue
		}
		obj := b.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
			ETag:         aws.String(fmt.Sprintf(`"%x"`, len(obj.data))),
			StorageClass: types.ObjectStorageClassStandard,
		})
	}
	out.KeyCount = aws.Int32(int32(count)) // #nosec G115 - bounded by maxKeys
	if out.IsTruncated == nil {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *S3) object(bucket, key string) (*s3Object, error) {
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return obj, nil
}

func (f *S3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["HeadObject"]++

	obj, err := f.object(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if err != nil {
		// HEAD responses carry no body so the SDK only sees NotFound
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{
		ContentLength:   aws.Int64(int64(len(obj.data))),
		ContentType:     aws.String(obj.contentType),
		ContentEncoding: nilIfEmpty(obj.encoding),
		ETag:            aws.String(fmt.Sprintf(`"%x"`, len(obj.data))),
		LastModified:    aws.Time(obj.modified),
		Metadata:        obj.metadata,
	}, nil
}

func (f *S3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["GetObject"]++

	obj, err := f.object(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if err != nil {
		return nil, err
	}
	data, contentRange := obj.data, ""
	if params.Range != nil {
		var start, end int
		if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil || start > end || start >= len(data) {
			return nil, &smithy.GenericAPIError{Code: "InvalidRange", Message: "The requested range is not satisfiable"}
		}
		end = min(end, len(data)-1)
		contentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, len(data))
		data = data[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:            io.NopCloser(bytes.NewReader(data)),
		ContentLength:   aws.Int64(int64(len(data))),
		ContentRange:    nilIfEmpty(contentRange),
		ContentType:     aws.String(obj.contentType),
		ContentEncoding: nilIfEmpty(obj.encoding),
		ETag:            aws.String(fmt.Sprintf(`"%x"`, len(obj.data))),
		LastModified:    aws.Time(obj.modified),
		Metadata:        obj.metadata,
	}, nil
}

func (f *S3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["PutObject"]++

	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(params.Key)] = &s3Object{
		data:        data,
		contentType: aws.ToString(params.ContentType),
		encoding:    aws.ToString(params.ContentEncoding),
		modified:    time.Now(),
		metadata:    params.Metadata,
	}
	return &s3.PutObjectOutput{
		ETag:              aws.String(fmt.Sprintf(`"%x"`, len(data))),
		ChecksumCRC64NVME: params.ChecksumCRC64NVME,
	}, nil
}

func (f *S3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CopyObject"]++

	srcBucket, srcKey, ok := strings.Cut(aws.ToString(params.CopySource), "/")
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: "invalid copy source"}
	}
	srcKey, err := url.PathUnescape(srcKey)
	if err != nil {
		return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
	}
	src, err := f.object(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	dst, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	cp := *src
	cp.modified = time.Now()
	dst.objects[aws.ToString(params.Key)] = &cp
	return &s3.CopyObjectOutput{}, nil
}

func (f *S3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["DeleteObject"]++

	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	delete(b.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *S3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["DeleteObjects"]++

	b, err := f.bucket(aws.ToString(params.Bucket))
	if err != nil {
		return nil, err
	}
	if len(params.Delete.Objects) > 1000 {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML", Message: "too many keys"}
	}

	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		if f.FailDeleteKeys[key] {
			out.Errors = append(out.Errors, types.Error{
				Key:     aws.String(key),
				Code:    aws.String("AccessDenied"),
				Message: aws.String("Access Denied"),
			})
			continue
		}
		delete(b.objects, key)
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: aws.String(key)})
	}
	return out, nil
}

// PresignGetObject returns BaseURL/bucket/key with a query that changes on
// every call, as a SigV4 signature does.
func (f *S3) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	f.mu.Lock()
	f.Calls["PresignGetObject"]++
	n := f.Calls["PresignGetObject"]
	f.mu.Unlock()

	query := url.Values{}
	query.Set("X-Amz-Expires", strconv.Itoa(int(opts.Expires.Seconds())))
	query.Set("X-Amz-Signature", fmt.Sprintf("%064x", n))
	u := f.BaseURL + "/" + aws.ToString(params.Bucket) + "/" + (&url.URL{Path: aws.ToString(params.Key)}).EscapedPath() + "?" + query.Encode()
	return &v4.PresignedHTTPRequest{URL: u, Method: "GET"}, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
