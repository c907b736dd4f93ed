package awsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Sentinel errors for backend failures the console reacts to.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrThrottled     = errors.New("request throttled")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotEmpty      = errors.New("resource not empty")
)

var errorCodes = map[string]error{
	"NoSuchBucket":                            ErrNotFound,
	"NoSuchKey":                               ErrNotFound,
	"NotFound":                                ErrNotFound,
	"ResourceNotFoundException":               ErrNotFound,
	"TableNotFoundException":                  ErrNotFound,
	"AWS.SimpleQueueService.NonExistentQueue": ErrNotFound,
	"QueueDoesNotExist":                       ErrNotFound,
	"ReceiptHandleIsInvalid":                  ErrNotFound,

	"BucketAlreadyExists":             ErrAlreadyExists,
	"BucketAlreadyOwnedByYou":         ErrAlreadyExists,
	"ResourceInUseException":          ErrAlreadyExists,
	"QueueAlreadyExists":              ErrAlreadyExists,
	"QueueNameExists":                 ErrAlreadyExists,
	"ConditionalCheckFailedException": ErrAlreadyExists,

	"ThrottlingException":                         ErrThrottled,
	"Throttling":                                  ErrThrottled,
	"RequestThrottled":                            ErrThrottled,
	"RequestLimitExceeded":                        ErrThrottled,
	"TooManyRequestsException":                    ErrThrottled,
	"ProvisionedThroughputExceededException":      ErrThrottled,
	"SlowDown":                                    ErrThrottled,
	"AWS.SimpleQueueService.PurgeQueueInProgress": ErrThrottled,
	"PurgeQueueInProgress":                        ErrThrottled,

	"ValidationException":   ErrInvalidInput,
	"InvalidParameterValue": ErrInvalidInput,
	"InvalidAttributeValue": ErrInvalidInput,
	"InvalidBucketName":     ErrInvalidInput,
	"InvalidArgument":       ErrInvalidInput,
	"InvalidRequest":        ErrInvalidInput,
	"KeyTooLongError":       ErrInvalidInput,
	"MissingParameter":      ErrInvalidInput,
	"InvalidRange":          ErrInvalidInput,

	"BucketNotEmpty": ErrNotEmpty,
}

// Code returns the API error code carried by err, or "" when err did not come
// from a service response.
func Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Classify wraps an SDK error with the matching sentinel so callers can use
// errors.Is without knowing which service produced it. Errors that match no
// sentinel are wrapped with op only.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if sentinel, ok := errorCodes[Code(err)]; ok {
		return fmt.Errorf("%s: %w: %w", op, sentinel, err)
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w: %w", op, ErrThrottled, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
