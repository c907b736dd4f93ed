package console

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/assets"
	httpmiddleware "github.com/wolfeidau/awsui/internal/http"
	"github.com/wolfeidau/awsui/internal/preview"
	"github.com/wolfeidau/awsui/internal/queues"
)

type queuesPage struct {
	Prefix string
	Queues []queues.Queue
}

func (c *Console) listQueues(w http.ResponseWriter, r *http.Request) error {
	prefix := r.URL.Query().Get("prefix")
	qs, err := c.queues.List(r.Context(), prefix)
	if err != nil {
		return err
	}
	return c.render(w, "queues", assets.Page{
		Title:   "SQS queues",
		Entry:   "ui/pages/app.ts",
		Context: queuesPage{Prefix: prefix, Queues: qs},
	})
}

func (c *Console) createQueue(w http.ResponseWriter, r *http.Request) error {
	q, err := c.queues.Create(r.Context(), queues.CreateInput{
		Name:              r.FormValue("name"),
		FIFO:              formBool(r, "fifo"),
		ContentBasedDedup: formBool(r, "content_based_dedup"),
	})
	if err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "sqs.create_queue").Str("queue", q.Name).Bool("fifo", q.FIFO).Msg("queue created")
	return seeOther(w, r, "/sqs/"+q.Name, nil)
}

func (c *Console) deleteQueue(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("queue")
	if err := c.queues.Delete(r.Context(), name); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "sqs.delete_queue").Str("queue", name).Msg("queue deleted")
	return seeOther(w, r, "/sqs", nil)
}

func (c *Console) purgeQueue(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("queue")
	if err := c.queues.Purge(r.Context(), name); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "sqs.purge_queue").Str("queue", name).Msg("queue purged")
	return seeOther(w, r, "/sqs/"+name, nil)
}

// messageRow pairs a peeked message with its rendered body.
type messageRow struct {
	queues.Message
	Preview *preview.Document
}

type queuePage struct {
	*queues.Detail
	Peek     int
	Messages []messageRow
}

func (c *Console) showQueue(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("queue")

	detail, err := c.queues.Attributes(r.Context(), name)
	if err != nil {
		return err
	}

	peek := defaultPeek
	if v, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil {
		peek = v
	}
	msgs, err := c.queues.Peek(r.Context(), name, peek)
	if err != nil {
		return err
	}

	data := queuePage{Detail: detail, Peek: peek, Messages: make([]messageRow, 0, len(msgs))}
	for _, m := range msgs {
		data.Messages = append(data.Messages, messageRow{Message: m, Preview: renderMessage(r, m)})
	}

	return c.render(w, "queue", assets.Page{
		Title:   name,
		Entry:   "ui/pages/queue.ts",
		Context: data,
	})
}

// renderMessage previews a message body as a JSON tree or as text.
func renderMessage(r *http.Request, m queues.Message) *preview.Document {
	contentType := "text/plain"
	if m.BodyKind == preview.KindJSON {
		contentType = "application/json"
	}
	doc, err := preview.Render(r.Context(), preview.StaticSource(m.ID, contentType, []byte(m.Body)))
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("message_id", m.ID).Msg("message preview failed")
		return nil
	}
	return doc
}

type sendRequest struct {
	Body         string            `json:"body"`
	GroupID      string            `json:"group_id"`
	DelaySeconds int               `json:"delay_seconds"`
	Attributes   map[string]string `json:"attributes"`
}

func (c *Console) sendMessage(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("queue")
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	id, err := c.queues.Send(r.Context(), name, queues.SendInput{
		Body:         req.Body,
		GroupID:      strings.TrimSpace(req.GroupID),
		DelaySeconds: req.DelaySeconds,
		Attributes:   req.Attributes,
	})
	if err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "sqs.send").Str("queue", name).Str("message_id", id).Msg("message sent")
	writeJSON(w, http.StatusCreated, map[string]string{"message_id": id})
	return nil
}

type deleteMessageRequest struct {
	ReceiptHandle string `json:"receipt_handle"`
}

func (c *Console) deleteMessage(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("queue")
	var req deleteMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if err := c.queues.DeleteMessage(r.Context(), name, req.ReceiptHandle); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "sqs.delete_message").Str("queue", name).Msg("message deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	return nil
}
