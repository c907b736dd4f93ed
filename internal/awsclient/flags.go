package awsclient

// Flags are the command line settings for reaching the backend, embedded by
// the server and CLI commands.
type Flags struct {
	Region           string `help:"AWS region" default:"us-east-1" env:"AWS_REGION"`
	Endpoint         string `help:"endpoint URL for every service, e.g. http://localhost:4566 for LocalStack" default:"" env:"AWSUI_ENDPOINT"`
	S3Endpoint       string `help:"S3 endpoint URL override" default:"" env:"AWSUI_S3_ENDPOINT"`
	SQSEndpoint      string `help:"SQS endpoint URL override" default:"" env:"AWSUI_SQS_ENDPOINT"`
	DynamoDBEndpoint string `help:"DynamoDB endpoint URL override (for DynamoDB Local)" default:"" env:"AWSUI_DYNAMODB_ENDPOINT"`
	AccessKeyID      string `help:"static access key ID" default:"" env:"AWSUI_ACCESS_KEY_ID"`
	SecretAccessKey  string `help:"static secret access key" default:"" env:"AWSUI_SECRET_ACCESS_KEY"`
	PathStyle        bool   `help:"use path style S3 addressing (LocalStack, MinIO)" default:"true" negatable:"" env:"AWSUI_S3_PATH_STYLE"`
}

// Config converts the flags into a client configuration. Emulators accept
// any credentials, so "test"/"test" is used when any endpoint, shared or
// per service, is set without keys. Mixing an emulator with real AWS needs
// explicit keys.
func (f Flags) Config() Config {
	cfg := Config{
		Region:           f.Region,
		Endpoint:         f.Endpoint,
		S3Endpoint:       f.S3Endpoint,
		SQSEndpoint:      f.SQSEndpoint,
		DynamoDBEndpoint: f.DynamoDBEndpoint,
		AccessKeyID:      f.AccessKeyID,
		SecretAccessKey:  f.SecretAccessKey,
		UsePathStyle:     f.PathStyle,
	}
	if cfg.AccessKeyID == "" && cfg.SecretAccessKey == "" && f.hasEndpoint() {
		cfg.AccessKeyID, cfg.SecretAccessKey = "test", "test"
	}
	return cfg
}

func (f Flags) hasEndpoint() bool {
	return f.Endpoint != "" || f.S3Endpoint != "" || f.SQSEndpoint != "" || f.DynamoDBEndpoint != ""
}
