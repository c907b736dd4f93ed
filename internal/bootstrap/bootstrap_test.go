package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/awsclient/awsfake"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/queues"
	"github.com/wolfeidau/awsui/internal/tables"
)

type fakes struct {
	s3  *awsfake.S3
	sqs *awsfake.SQS
	ddb *awsfake.DynamoDB
}

func newTestConfig(t *testing.T, s3Client awsclient.S3API) (Config, fakes) {
	t.Helper()
	f := fakes{s3: awsfake.NewS3(), sqs: awsfake.NewSQS(), ddb: awsfake.NewDynamoDB()}
	if s3Client == nil {
		s3Client = f.s3
	}
	return Config{
		Objects: objects.NewService(s3Client, f.s3, objects.Config{Region: "us-east-1", MaxUploadBytes: 1 << 20}),
		Queues:  queues.NewService(f.sqs),
		Tables:  tables.NewService(f.ddb),
		Prefix:  "test",
	}, f
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	cfg, f := newTestConfig(t, nil)
	cfg.WaitTimeout = time.Second

	res, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, "test-bucket", res.Bucket)
	require.Equal(t, "test-orders", res.Table)
	require.Equal(t, map[string]string{"events": "test-events", "orders": "test-orders.fifo"}, res.Queues)
	require.Len(t, res.Keys, len(sampleObjects))

	for _, obj := range sampleObjects {
		data, ok := f.s3.Data("test-bucket", obj.key)
		require.True(t, ok, obj.key)
		require.Equal(t, obj.body, data)
	}
	require.Equal(t, 3, f.sqs.Len("test-events"))
	require.Equal(t, 3, f.sqs.Len("test-orders.fifo"))
	require.Equal(t, len(sampleItems), f.ddb.Items("test-orders"))

	table, err := cfg.Tables.Describe(ctx, "test-orders")
	require.NoError(t, err)
	require.Equal(t, "customer", table.HashKey.Name)
	require.Equal(t, "order_id", table.RangeKey.Name)
	require.Equal(t, "N", table.RangeKey.Type)
}

func TestBootstrapReusesResources(t *testing.T) {
	ctx := context.Background()
	cfg, f := newTestConfig(t, nil)

	_, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)

	_, err = cfg.Queues.Send(ctx, "test-events", queues.SendInput{Body: "extra"})
	require.NoError(t, err)
	_, err = cfg.Tables.Put(ctx, "test-orders", []byte(`{"customer":"c-999","order_id":1}`))
	require.NoError(t, err)

	// a second run keeps existing data and sends nothing new
	_, err = Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 4, f.sqs.Len("test-events"))
	require.Equal(t, len(sampleItems)+1, f.ddb.Items("test-orders"))

	// clean mode starts over
	cfg.CleanResources = true
	_, err = Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 3, f.sqs.Len("test-events"))
	require.Equal(t, len(sampleItems), f.ddb.Items("test-orders"))
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	cfg, f := newTestConfig(t, nil)

	// nothing exists yet
	require.NoError(t, Cleanup(ctx, cfg, nil))

	res, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, Cleanup(ctx, cfg, res))
	require.False(t, f.s3.HasBucket("test-bucket"))
	require.False(t, f.sqs.HasQueue("test-events"))
	require.False(t, f.sqs.HasQueue("test-orders.fifo"))
	require.False(t, f.ddb.HasTable("test-orders"))
}

func TestBootstrapRequiresServices(t *testing.T) {
	_, err := Bootstrap(context.Background(), Config{})
	require.ErrorContains(t, err, "objects service is required")
}

type unreachableS3 struct {
	*awsfake.S3
}

func (unreachableS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "ServiceUnavailable", Message: "connection refused"}
}

func TestWaitForBackend(t *testing.T) {
	cfg, f := newTestConfig(t, nil)
	require.NoError(t, WaitForBackend(context.Background(), cfg, time.Second))

	cfg, _ = newTestConfig(t, unreachableS3{f.s3})
	err := WaitForBackend(context.Background(), cfg, 50*time.Millisecond)
	require.ErrorContains(t, err, "backend not ready")

	cfg.WaitTimeout = 50 * time.Millisecond
	_, err = Bootstrap(context.Background(), cfg)
	require.ErrorContains(t, err, "connection refused")
}
