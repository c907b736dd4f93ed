package awsfake

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/wolfeidau/awsui/internal/awsclient"
)

const queueURLBase = "http://sqs.fake/000000000000/"

type sqsMessage struct {
	id            string
	body          string
	groupID       string
	dedupID       string
	sentAt        time.Time
	receiveCount  int
	messageAttrs  map[string]types.MessageAttributeValue
	receiptHandle string
	visibleAt     time.Time
}

func (m *sqsMessage) visible(now time.Time) bool {
	return !now.Before(m.visibleAt)
}

type sqsQueue struct {
	attributes map[string]string
	created    time.Time
	messages   []*sqsMessage
}

// SQS is an in-memory SQSAPI. Received messages are hidden for the request's
// VisibilityTimeout, or the queue's when the request leaves it at zero,
// until ChangeMessageVisibilityBatch makes them visible again.
type SQS struct {
	mu     sync.Mutex
	queues map[string]*sqsQueue

	// LastSend records the most recent SendMessage input.
	LastSend *sqs.SendMessageInput
	// LastReceive records the most recent ReceiveMessage input.
	LastReceive *sqs.ReceiveMessageInput
	// LastVisibility records the most recent ChangeMessageVisibilityBatch input.
	LastVisibility *sqs.ChangeMessageVisibilityBatchInput
}

var _ awsclient.SQSAPI = (*SQS)(nil)

func NewSQS() *SQS {
	return &SQS{queues: map[string]*sqsQueue{}}
}

// QueueURL returns the URL the fake assigns to name.
func QueueURL(name string) string {
	return queueURLBase + name
}

// Len returns the number of messages held by a queue.
func (f *SQS) Len(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return 0
	}
	return len(q.messages)
}

// HasQueue reports whether a queue exists.
func (f *SQS) HasQueue(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.queues[name]
	return ok
}

func queueDoesNotExist() error {
	return &types.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
}

func (f *SQS) queue(queueURL string) (*sqsQueue, error) {
	q, ok := f.queues[strings.TrimPrefix(queueURL, queueURLBase)]
	if !ok {
		return nil, queueDoesNotExist()
	}
	return q, nil
}

func (f *SQS) ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(params.QueueNamePrefix)
	out := &sqs.ListQueuesOutput{}
	for name := range f.queues {
		if strings.HasPrefix(name, prefix) {
			out.QueueUrls = append(out.QueueUrls, QueueURL(name))
		}
	}
	slices.Sort(out.QueueUrls)
	return out, nil
}

func (f *SQS) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.QueueName)
	fifo := params.Attributes[string(types.QueueAttributeNameFifoQueue)] == "true"
	if fifo != strings.HasSuffix(name, ".fifo") {
		return nil, &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "FIFO queue names must end in .fifo"}
	}
	if q, ok := f.queues[name]; ok {
		for k, v := range params.Attributes {
			if q.attributes[k] != v {
				return nil, &types.QueueNameExists{Message: aws.String("queue exists with different attributes")}
			}
		}
		return &sqs.CreateQueueOutput{QueueUrl: aws.String(QueueURL(name))}, nil
	}

	attrs := map[string]string{}
	for k, v := range params.Attributes {
		attrs[k] = v
	}
	f.queues[name] = &sqsQueue{attributes: attrs, created: time.Now()}
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(QueueURL(name))}, nil
}

func (f *SQS) DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.queue(aws.ToString(params.QueueUrl)); err != nil {
		return nil, err
	}
	delete(f.queues, strings.TrimPrefix(aws.ToString(params.QueueUrl), queueURLBase))
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *SQS) PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}
	q.messages = nil
	return &sqs.PurgeQueueOutput{}, nil
}

func (f *SQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.QueueName)
	if _, ok := f.queues[name]; !ok {
		return nil, queueDoesNotExist()
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(QueueURL(name))}, nil
}

func (f *SQS) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	hidden := 0
	for _, m := range q.messages {
		if !m.visible(now) {
			hidden++
		}
	}

	attrs := map[string]string{
		string(types.QueueAttributeNameApproximateNumberOfMessages):           strconv.Itoa(len(q.messages) - hidden),
		string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): strconv.Itoa(hidden),
		string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "0",
		string(types.QueueAttributeNameCreatedTimestamp):                      strconv.FormatInt(q.created.Unix(), 10),
		string(types.QueueAttributeNameQueueArn):                              "arn:aws:sqs:us-east-1:000000000000:" + strings.TrimPrefix(aws.ToString(params.QueueUrl), queueURLBase),
		string(types.QueueAttributeNameVisibilityTimeout):                     "30",
	}
	for k, v := range q.attributes {
		attrs[k] = v
	}
	return &sqs.GetQueueAttributesOutput{Attributes: attrs}, nil
}

func (f *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastSend = params

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}
	if q.attributes[string(types.QueueAttributeNameFifoQueue)] == "true" && params.MessageGroupId == nil {
		return nil, &smithy.GenericAPIError{Code: "MissingParameter", Message: "The request must contain the parameter MessageGroupId."}
	}

	id := uuid.NewString()
	q.messages = append(q.messages, &sqsMessage{
		id:            id,
		body:          aws.ToString(params.MessageBody),
		groupID:       aws.ToString(params.MessageGroupId),
		dedupID:       aws.ToString(params.MessageDeduplicationId),
		sentAt:        time.Now(),
		messageAttrs:  params.MessageAttributes,
		receiptHandle: "rh-" + id,
	})
	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (f *SQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastReceive = params

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}

	limit := int(params.MaxNumberOfMessages)
	if limit <= 0 {
		limit = 1
	}
	// zero is indistinguishable from unset on the wire
	timeout := time.Duration(params.VisibilityTimeout) * time.Second
	if timeout == 0 {
		timeout = q.visibilityTimeout()
	}

	now := time.Now()
	out := &sqs.ReceiveMessageOutput{}
	for _, m := range q.messages {
		if len(out.Messages) == limit {
			break
		}
		if !m.visible(now) {
			continue
		}
		m.receiveCount++
		m.visibleAt = now.Add(timeout)
		attrs := map[string]string{
			string(types.MessageSystemAttributeNameSentTimestamp):           strconv.FormatInt(m.sentAt.UnixMilli(), 10),
			string(types.MessageSystemAttributeNameApproximateReceiveCount): strconv.Itoa(m.receiveCount),
		}
		if m.groupID != "" {
			attrs[string(types.MessageSystemAttributeNameMessageGroupId)] = m.groupID
		}
		out.Messages = append(out.Messages, types.Message{
			MessageId:         aws.String(m.id),
			Body:              aws.String(m.body),
			ReceiptHandle:     aws.String(m.receiptHandle),
			Attributes:        attrs,
			MessageAttributes: m.messageAttrs,
		})
	}
	return out, nil
}

func (q *sqsQueue) visibilityTimeout() time.Duration {
	secs, err := strconv.Atoi(q.attributes[string(types.QueueAttributeNameVisibilityTimeout)])
	if err != nil {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func (f *SQS) ChangeMessageVisibilityBatch(ctx context.Context, params *sqs.ChangeMessageVisibilityBatchInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastVisibility = params

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := &sqs.ChangeMessageVisibilityBatchOutput{}
	for _, e := range params.Entries {
		handle := aws.ToString(e.ReceiptHandle)
		idx := slices.IndexFunc(q.messages, func(m *sqsMessage) bool { return m.receiptHandle == handle })
		if idx == -1 {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{
				Id:          e.Id,
				Code:        aws.String("ReceiptHandleIsInvalid"),
				Message:     aws.String("The input receipt handle is invalid."),
				SenderFault: true,
			})
			continue
		}
		q.messages[idx].visibleAt = now.Add(time.Duration(e.VisibilityTimeout) * time.Second)
		out.Successful = append(out.Successful, types.ChangeMessageVisibilityBatchResultEntry{Id: e.Id})
	}
	return out, nil
}

func (f *SQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, err := f.queue(aws.ToString(params.QueueUrl))
	if err != nil {
		return nil, err
	}
	handle := aws.ToString(params.ReceiptHandle)
	idx := slices.IndexFunc(q.messages, func(m *sqsMessage) bool { return m.receiptHandle == handle })
	if idx == -1 {
		return nil, &types.ReceiptHandleIsInvalid{Message: aws.String("The input receipt handle is invalid.")}
	}
	q.messages = slices.Delete(q.messages, idx, idx+1)
	return &sqs.DeleteMessageOutput{}, nil
}
