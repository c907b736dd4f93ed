package queues

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/awsclient/awsfake"
	"github.com/wolfeidau/awsui/internal/preview"
)

func TestService_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	fake := awsfake.NewSQS()
	svc := NewService(fake)

	q, err := svc.Create(ctx, CreateInput{Name: "orders"})
	require.NoError(t, err)
	require.Equal(t, "orders", q.Name)
	require.False(t, q.FIFO)

	q, err = svc.Create(ctx, CreateInput{Name: "events", FIFO: true})
	require.NoError(t, err)
	require.Equal(t, "events.fifo", q.Name)
	require.True(t, q.FIFO)

	_, err = svc.Create(ctx, CreateInput{Name: "plain.fifo"})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{Name: "bad name"})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	queues, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, queues, 2)
	require.Equal(t, "events.fifo", queues[0].Name)
	require.True(t, queues[0].FIFO)
	require.Equal(t, "orders", queues[1].Name)
	require.False(t, queues[1].CreatedAt.IsZero())

	queues, err = svc.List(ctx, "ord")
	require.NoError(t, err)
	require.Len(t, queues, 1)

	require.NoError(t, svc.Delete(ctx, "orders"))
	require.False(t, fake.HasQueue("orders"))

	err = svc.Delete(ctx, "orders")
	require.ErrorIs(t, err, awsclient.ErrNotFound)
}

func TestService_SendPeekDelete(t *testing.T) {
	ctx := context.Background()
	fake := awsfake.NewSQS()
	svc := NewService(fake)

	_, err := svc.Create(ctx, CreateInput{Name: "work"})
	require.NoError(t, err)

	id, err := svc.Send(ctx, "work", SendInput{Body: `{"job":1}`, DelaySeconds: 5, Attributes: map[string]string{"source": "test"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int32(5), fake.LastSend.DelaySeconds)
	require.Nil(t, fake.LastSend.MessageGroupId)

	_, err = svc.Send(ctx, "work", SendInput{Body: "plain text"})
	require.NoError(t, err)

	_, err = svc.Send(ctx, "work", SendInput{Body: ""})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Send(ctx, "work", SendInput{Body: "x", DelaySeconds: 901})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	detail, err := svc.Attributes(ctx, "work")
	require.NoError(t, err)
	require.Equal(t, 2, detail.Messages)
	require.NotEmpty(t, detail.Attributes["QueueArn"])

	msgs, err := svc.Peek(ctx, "work", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, int32(10), fake.LastReceive.MaxNumberOfMessages)
	require.Len(t, fake.LastVisibility.Entries, 2)

	require.Equal(t, preview.KindJSON, msgs[0].BodyKind)
	require.Equal(t, "test", msgs[0].Attributes["source"])
	require.Equal(t, 1, msgs[0].ReceiveCount)
	require.False(t, msgs[0].SentAt.IsZero())
	require.Equal(t, preview.KindText, msgs[1].BodyKind)

	// peeking leaves messages in place
	_, err = svc.Peek(ctx, "work", 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), fake.LastReceive.MaxNumberOfMessages)
	require.Equal(t, 2, fake.Len("work"))

	require.NoError(t, svc.DeleteMessage(ctx, "work", msgs[0].ReceiptHandle))
	require.Equal(t, 1, fake.Len("work"))

	err = svc.DeleteMessage(ctx, "work", msgs[0].ReceiptHandle)
	require.ErrorIs(t, err, awsclient.ErrNotFound)

	err = svc.DeleteMessage(ctx, "work", "")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	require.NoError(t, svc.Purge(ctx, "work"))
	require.Equal(t, 0, fake.Len("work"))
}

func TestService_PeekKeepsMessagesVisible(t *testing.T) {
	ctx := context.Background()
	fake := awsfake.NewSQS()
	svc := NewService(fake)

	_, err := svc.Create(ctx, CreateInput{Name: "work"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, "work", SendInput{Body: "job"})
	require.NoError(t, err)

	msgs, err := svc.Peek(ctx, "work", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 1, msgs[0].ReceiveCount)

	for _, e := range fake.LastVisibility.Entries {
		require.Equal(t, int32(0), e.VisibilityTimeout)
	}

	msgs, err = svc.Peek(ctx, "work", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 2, msgs[0].ReceiveCount)

	detail, err := svc.Attributes(ctx, "work")
	require.NoError(t, err)
	require.Equal(t, 1, detail.Messages)
	require.Equal(t, 0, detail.InFlight)
}

func TestService_PeekSkipsInFlightMessages(t *testing.T) {
	ctx := context.Background()
	fake := awsfake.NewSQS()
	svc := NewService(fake)

	_, err := svc.Create(ctx, CreateInput{Name: "work"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, "work", SendInput{Body: "job"})
	require.NoError(t, err)

	// a consumer holds the message under the queue's visibility timeout
	_, err = fake.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{QueueUrl: aws.String(awsfake.QueueURL("work"))})
	require.NoError(t, err)

	msgs, err := svc.Peek(ctx, "work", 10)
	require.NoError(t, err)
	require.Empty(t, msgs)

	detail, err := svc.Attributes(ctx, "work")
	require.NoError(t, err)
	require.Equal(t, 1, detail.InFlight)
}

func TestService_SendFIFO(t *testing.T) {
	ctx := context.Background()
	fake := awsfake.NewSQS()
	svc := NewService(fake)

	_, err := svc.Create(ctx, CreateInput{Name: "plain.fifo", FIFO: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "cbd", FIFO: true, ContentBasedDedup: true})
	require.NoError(t, err)

	_, err = svc.Send(ctx, "plain.fifo", SendInput{Body: "x"})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Send(ctx, "plain.fifo", SendInput{Body: "x", GroupID: "g", DelaySeconds: 3})
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Send(ctx, "plain.fifo", SendInput{Body: "x", GroupID: "g"})
	require.NoError(t, err)
	require.Equal(t, "g", aws.ToString(fake.LastSend.MessageGroupId))
	require.Equal(t, DeduplicationID("g", "x"), aws.ToString(fake.LastSend.MessageDeduplicationId))

	_, err = svc.Send(ctx, "cbd.fifo", SendInput{Body: "x", GroupID: "g"})
	require.NoError(t, err)
	require.Nil(t, fake.LastSend.MessageDeduplicationId)

	msgs, err := svc.Peek(ctx, "plain.fifo", 1)
	require.NoError(t, err)
	require.Equal(t, "g", msgs[0].GroupID)
}

func TestDeduplicationID(t *testing.T) {
	require.Len(t, DeduplicationID("g", "body"), 64)
	require.Equal(t, DeduplicationID("g", "body"), DeduplicationID("g", "body"))
	require.NotEqual(t, DeduplicationID("g1", "body"), DeduplicationID("g2", "body"))
}

func TestNameFromURL(t *testing.T) {
	require.Equal(t, "orders", NameFromURL("http://localhost:4566/000000000000/orders"))
	require.Equal(t, "events.fifo", NameFromURL("https://sqs.us-east-1.amazonaws.com/123/events.fifo"))
	require.Equal(t, "bare", NameFromURL("bare"))
}

func TestBodyKind(t *testing.T) {
	require.Equal(t, preview.KindJSON, BodyKind(` [1, 2] `))
	require.Equal(t, preview.KindText, BodyKind(`{not json`))
	require.Equal(t, preview.KindText, BodyKind(`hello`))
}
