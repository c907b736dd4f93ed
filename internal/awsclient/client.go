package awsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Config describes how to reach the backend. Endpoint applies to every
// service; the per-service endpoints override it (for example DynamoDB Local
// next to LocalStack).
type Config struct {
	Region           string
	Endpoint         string
	S3Endpoint       string
	SQSEndpoint      string
	DynamoDBEndpoint string

	// Static credentials, typically "test"/"test" for LocalStack.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle addresses buckets as http://host/bucket, required by
	// LocalStack and MinIO.
	UsePathStyle bool
}

func (c Config) Validate() error {
	if c.Region == "" {
		return errors.New("AWS region is required (--region or AWS_REGION)")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.New("access key ID and secret access key must be set together")
	}
	return nil
}

func (c Config) endpointFor(override string) string {
	if override != "" {
		return override
	}
	return c.Endpoint
}

// S3BaseEndpoint is the endpoint used by the S3 client, empty for AWS.
func (c Config) S3BaseEndpoint() string { return c.endpointFor(c.S3Endpoint) }

// SQSBaseEndpoint is the endpoint used by the SQS client, empty for AWS.
func (c Config) SQSBaseEndpoint() string { return c.endpointFor(c.SQSEndpoint) }

// DynamoDBBaseEndpoint is the endpoint used by the DynamoDB client, empty for AWS.
func (c Config) DynamoDBBaseEndpoint() string { return c.endpointFor(c.DynamoDBEndpoint) }

// Clients bundles the SDK clients for the services the console manages.
type Clients struct {
	S3       *s3.Client
	Presign  *s3.PresignClient
	SQS      *sqs.Client
	DynamoDB *dynamodb.Client
	Config   Config
}

// New loads the default SDK configuration and builds a client per service.
func New(ctx context.Context, cfg Config) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewFromConfig(awsConfig, cfg), nil
}

// NewFromConfig builds the clients from an already loaded SDK config.
func NewFromConfig(awsConfig aws.Config, cfg Config) *Clients {
	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if endpoint := cfg.S3BaseEndpoint(); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	sqsClient := sqs.NewFromConfig(awsConfig, func(o *sqs.Options) {
		if endpoint := cfg.SQSBaseEndpoint(); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	dynamoClient := dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if endpoint := cfg.DynamoDBBaseEndpoint(); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Clients{
		S3:       s3Client,
		Presign:  s3.NewPresignClient(s3Client),
		SQS:      sqsClient,
		DynamoDB: dynamoClient,
		Config:   cfg,
	}
}
