// Package queues lists, inspects and mutates SQS queues and their messages.
package queues

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goccy/go-json"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"github.com/wolfeidau/awsui/internal/util"
)

const (
	fifoSuffix   = ".fifo"
	maxPeek      = 10 // ReceiveMessage returns at most 10 messages
	maxDelay     = 900
	maxQueueName = 80
)

// Queue is a row of the queue listing.
type Queue struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	FIFO      bool      `json:"fifo"`
	Messages  int       `json:"messages"`
	InFlight  int       `json:"in_flight"`
	Delayed   int       `json:"delayed"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a peeked message.
type Message struct {
	ID            string            `json:"id"`
	Body          string            `json:"body"`
	ReceiptHandle string            `json:"receipt_handle"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	SentAt        time.Time         `json:"sent_at"`
	ReceiveCount  int               `json:"receive_count"`
	GroupID       string            `json:"group_id,omitempty"`
	// BodyKind is preview.KindJSON for JSON bodies, otherwise preview.KindText.
	BodyKind preview.Kind `json:"body_kind"`
}

// Service wraps the SQS client.
type Service struct {
	client awsclient.SQSAPI
}

func NewService(client awsclient.SQSAPI) *Service {
	return &Service{client: client}
}

func (s *Service) observe(ctx context.Context, op string, err error) error {
	telemetry.RecordBackendCall(ctx, "sqs", op, err)
	return awsclient.Classify(err, "sqs."+op)
}

// NameFromURL returns the queue name, the last path segment of its URL.
func NameFromURL(queueURL string) string {
	if u, err := url.Parse(queueURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(queueURL)
}

// ValidateName applies the SQS queue naming rules.
func ValidateName(name string, fifo bool) error {
	base := strings.TrimSuffix(name, fifoSuffix)
	if base == "" || len(name) > maxQueueName {
		return fmt.Errorf("%w: queue name must be between 1 and %d characters", awsclient.ErrInvalidInput, maxQueueName)
	}
	for _, r := range base {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return fmt.Errorf("%w: queue name may only contain letters, numbers, hyphens and underscores", awsclient.ErrInvalidInput)
		}
	}
	if !fifo && strings.HasSuffix(name, fifoSuffix) {
		return fmt.Errorf("%w: only FIFO queue names may end in %s", awsclient.ErrInvalidInput, fifoSuffix)
	}
	return nil
}

// List returns the queues whose names start with prefix, sorted by name.
func (s *Service) List(ctx context.Context, prefix string) ([]Queue, error) {
	input := &sqs.ListQueuesInput{}
	if prefix != "" {
		input.QueueNamePrefix = aws.String(prefix)
	}

	var queues []Queue
	paginator := sqs.NewListQueuesPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err = s.observe(ctx, "ListQueues", err); err != nil {
			return nil, err
		}
		for _, queueURL := range page.QueueUrls {
			attrs, err := s.attributes(ctx, queueURL)
			if err != nil {
				return nil, err
			}
			queues = append(queues, queueFromAttributes(queueURL, attrs))
		}
	}

	slices.SortFunc(queues, func(a, b Queue) int { return strings.Compare(a.Name, b.Name) })
	return queues, nil
}

func queueFromAttributes(queueURL string, attrs map[string]string) Queue {
	q := Queue{
		Name:     NameFromURL(queueURL),
		URL:      queueURL,
		FIFO:     attrs[string(types.QueueAttributeNameFifoQueue)] == "true",
		Messages: atoi(attrs[string(types.QueueAttributeNameApproximateNumberOfMessages)]),
		InFlight: atoi(attrs[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]),
		Delayed:  atoi(attrs[string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed)]),
	}
	if ts, err := strconv.ParseInt(attrs[string(types.QueueAttributeNameCreatedTimestamp)], 10, 64); err == nil {
		q.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return q
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (s *Service) url(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err = s.observe(ctx, "GetQueueUrl", err); err != nil {
		return "", err
	}
	return aws.ToString(out.QueueUrl), nil
}

func (s *Service) attributes(ctx context.Context, queueURL string) (map[string]string, error) {
	out, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
	})
	if err = s.observe(ctx, "GetQueueAttributes", err); err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

// CreateInput describes a new queue.
type CreateInput struct {
	Name              string
	FIFO              bool
	ContentBasedDedup bool
}

// Create creates a queue. FIFO queue names get the .fifo suffix when it is
// missing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Queue, error) {
	name := strings.TrimSpace(in.Name)
	if in.FIFO && !strings.HasSuffix(name, fifoSuffix) {
		name += fifoSuffix
	}
	if err := ValidateName(name, in.FIFO); err != nil {
		return nil, err
	}

	attrs := map[string]string{}
	if in.FIFO {
		attrs[string(types.QueueAttributeNameFifoQueue)] = "true"
		if in.ContentBasedDedup {
			attrs[string(types.QueueAttributeNameContentBasedDeduplication)] = "true"
		}
	}

	out, err := s.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: attrs,
	})
	if err = s.observe(ctx, "CreateQueue", err); err != nil {
		return nil, err
	}

	return &Queue{Name: name, URL: aws.ToString(out.QueueUrl), FIFO: in.FIFO}, nil
}

// Delete removes a queue.
func (s *Service) Delete(ctx context.Context, name string) error {
	queueURL, err := s.url(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(queueURL)})
	return s.observe(ctx, "DeleteQueue", err)
}

// Purge deletes every message in a queue. SQS allows one purge per queue
// every 60 seconds, a second attempt fails with ErrThrottled.
func (s *Service) Purge(ctx context.Context, name string) error {
	queueURL, err := s.url(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.client.PurgeQueue(ctx, &sqs.PurgeQueueInput{QueueUrl: aws.String(queueURL)})
	return s.observe(ctx, "PurgeQueue", err)
}

// Detail is a queue with its full attribute set.
type Detail struct {
	Queue
	Attributes map[string]string `json:"attributes"`
}

// Attributes returns the queue summary and every attribute.
func (s *Service) Attributes(ctx context.Context, name string) (*Detail, error) {
	queueURL, err := s.url(ctx, name)
	if err != nil {
		return nil, err
	}
	attrs, err := s.attributes(ctx, queueURL)
	if err != nil {
		return nil, err
	}
	return &Detail{Queue: queueFromAttributes(queueURL, attrs), Attributes: attrs}, nil
}

// SendInput describes a message to send.
type SendInput struct {
	Body         string
	GroupID      string
	DelaySeconds int
	Attributes   map[string]string
}

// Send sends a message and returns its ID. FIFO queues require a group ID,
// and when content based deduplication is off the deduplication ID is
// derived from the group and body.
func (s *Service) Send(ctx context.Context, name string, in SendInput) (string, error) {
	if in.Body == "" {
		return "", fmt.Errorf("%w: message body is required", awsclient.ErrInvalidInput)
	}
	if in.DelaySeconds < 0 || in.DelaySeconds > maxDelay {
		return "", fmt.Errorf("%w: delay must be between 0 and %d seconds", awsclient.ErrInvalidInput, maxDelay)
	}

	queueURL, err := s.url(ctx, name)
	if err != nil {
		return "", err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(in.Body),
	}
	for k, v := range in.Attributes {
		if input.MessageAttributes == nil {
			input.MessageAttributes = map[string]types.MessageAttributeValue{}
		}
		input.MessageAttributes[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	if strings.HasSuffix(name, fifoSuffix) {
		if in.GroupID == "" {
			return "", fmt.Errorf("%w: FIFO queues require a message group ID", awsclient.ErrInvalidInput)
		}
		if in.DelaySeconds > 0 {
			return "", fmt.Errorf("%w: FIFO queues do not support per message delays", awsclient.ErrInvalidInput)
		}
		input.MessageGroupId = aws.String(in.GroupID)

		attrs, err := s.attributes(ctx, queueURL)
		if err != nil {
			return "", err
		}
		if attrs[string(types.QueueAttributeNameContentBasedDeduplication)] != "true" {
			input.MessageDeduplicationId = aws.String(DeduplicationID(in.GroupID, in.Body))
		}
	} else {
		input.DelaySeconds = util.AsInt32(in.DelaySeconds)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err = s.observe(ctx, "SendMessage", err); err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// DeduplicationID mirrors content based deduplication: the SHA-256 of the
// group ID and body.
func DeduplicationID(groupID, body string) string {
	sum := sha256.Sum256([]byte(groupID + "\x00" + body))
	return hex.EncodeToString(sum[:])
}

// Peek receives up to max messages and makes them visible again straight
// away so they stay available to consumers. max is clamped to 1..10.
//
// A zero VisibilityTimeout on ReceiveMessage is dropped by the SDK, which
// would leave the queue default in force, so visibility is reset with
// ChangeMessageVisibilityBatch instead. Each peek still counts as a receive.
func (s *Service) Peek(ctx context.Context, name string, max int) ([]Message, error) {
	queueURL, err := s.url(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(queueURL),
		MaxNumberOfMessages:         util.AsInt32(util.Clamp(max, 1, maxPeek)),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		MessageAttributeNames:       []string{"All"},
	})
	if err = s.observe(ctx, "ReceiveMessage", err); err != nil {
		return nil, err
	}

	if err := s.release(ctx, queueURL, out.Messages); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, messageFromSQS(m))
	}
	return messages, nil
}

// release sets the visibility timeout of received messages to zero.
func (s *Service) release(ctx context.Context, queueURL string, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	entries := make([]types.ChangeMessageVisibilityBatchRequestEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = types.ChangeMessageVisibilityBatchRequestEntry{
			Id:                aws.String(strconv.Itoa(i)),
			ReceiptHandle:     m.ReceiptHandle,
			VisibilityTimeout: 0,
		}
	}

	out, err := s.client.ChangeMessageVisibilityBatch(ctx, &sqs.ChangeMessageVisibilityBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err = s.observe(ctx, "ChangeMessageVisibilityBatch", err); err != nil {
		return err
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return fmt.Errorf("failed to release %d peeked messages, first %s: %s",
			len(out.Failed), aws.ToString(first.Code), aws.ToString(first.Message))
	}
	return nil
}

func messageFromSQS(m types.Message) Message {
	body := aws.ToString(m.Body)
	msg := Message{
		ID:            aws.ToString(m.MessageId),
		Body:          body,
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Attributes:    map[string]string{},
		ReceiveCount:  atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]),
		GroupID:       m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)],
		BodyKind:      BodyKind(body),
	}
	if ms, err := strconv.ParseInt(m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64); err == nil {
		msg.SentAt = time.UnixMilli(ms).UTC()
	}
	for k, v := range m.MessageAttributes {
		msg.Attributes[k] = aws.ToString(v.StringValue)
	}
	return msg
}

// BodyKind classifies a message body for preview.
func BodyKind(body string) preview.Kind {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return preview.Classify("application/json", "")
		}
	}
	return preview.Classify("text/plain", "")
}

// DeleteMessage deletes a peeked message by its receipt handle.
func (s *Service) DeleteMessage(ctx context.Context, name, receiptHandle string) error {
	if receiptHandle == "" {
		return fmt.Errorf("%w: receipt handle is required", awsclient.ErrInvalidInput)
	}
	queueURL, err := s.url(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return s.observe(ctx, "DeleteMessage", err)
}
