package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/objects"
)

// CreateBucket creates the demo bucket and uploads the sample objects. An
// existing bucket is reused and its samples rewritten.
func CreateBucket(ctx context.Context, cfg Config) (string, []string, error) {
	bucket := cfg.bucketName()

	err := cfg.Objects.CreateBucket(ctx, bucket)
	if err != nil && !errors.Is(err, awsclient.ErrAlreadyExists) {
		return "", nil, err
	}

	keys := make([]string, 0, len(sampleObjects))
	for _, obj := range sampleObjects {
		if _, err := cfg.Objects.Upload(ctx, objects.UploadInput{
			Bucket:      bucket,
			Key:         obj.key,
			Body:        bytes.NewReader(obj.body),
			ContentType: obj.contentType,
		}); err != nil {
			return "", nil, fmt.Errorf("failed to upload %s: %w", obj.key, err)
		}
		keys = append(keys, obj.key)
	}

	return bucket, keys, nil
}

// DeleteBucket removes the bucket and everything in it if it exists.
func DeleteBucket(ctx context.Context, cfg Config, bucket string) error {
	if bucket == "" {
		return nil
	}
	err := cfg.Objects.DeleteBucket(ctx, bucket, true)
	if errors.Is(err, awsclient.ErrNotFound) {
		return nil
	}
	return err
}
