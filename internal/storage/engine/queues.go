package engine

import (
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

var queueNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)

// QueueSettings carries the optional attributes of CreateQueue. The ranges
// mirror the SQS attribute limits.
type QueueSettings struct {
	VisibilityTimeout *int `validate:"omitempty,gte=0,lte=43200"`
	RetentionPeriod   *int `validate:"omitempty,gte=60,lte=1209600"`
	DelaySeconds      *int `validate:"omitempty,gte=0,lte=900"`
	ReceiveWait       *int `validate:"omitempty,gte=0,lte=20"`
}

type createQueueInput struct {
	Name     string `validate:"required,queue_name"`
	Settings QueueSettings
}

// CreateQueue creates a queue. Recreating an existing queue returns the
// existing row, as SQS does when attributes match.
func (e *Engine) CreateQueue(name string, settings QueueSettings) (*Queue, error) {
	if err := e.validate.Struct(createQueueInput{Name: name, Settings: settings}); err != nil {
		return nil, apperr.InvalidArgument("invalid queue %q: %v", name, err)
	}
	if q, err := e.GetQueue(name); err == nil {
		return q, nil
	}
	q := &Queue{
		Name:              name,
		URL:               arn.QueueURL(e.endpoint, name),
		ARN:               arn.Queue(e.region, name),
		VisibilityTimeout: 30,
		RetentionPeriod:   345600,
		DelaySeconds:      0,
		ReceiveWait:       0,
		CreatedAt:         e.nowNS(),
	}
	if settings.VisibilityTimeout != nil {
		q.VisibilityTimeout = *settings.VisibilityTimeout
	}
	if settings.RetentionPeriod != nil {
		q.RetentionPeriod = *settings.RetentionPeriod
	}
	if settings.DelaySeconds != nil {
		q.DelaySeconds = *settings.DelaySeconds
	}
	if settings.ReceiveWait != nil {
		q.ReceiveWait = *settings.ReceiveWait
	}
	_, err := e.meta.Exec(
		`INSERT INTO queues (name, url, arn, visibility_timeout, retention_period, delay_seconds, receive_wait, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Name, q.URL, q.ARN, q.VisibilityTimeout, q.RetentionPeriod, q.DelaySeconds, q.ReceiveWait, q.CreatedAt)
	if err != nil {
		return nil, dbErr(err, "create queue")
	}
	return q, nil
}

// GetQueue returns a queue row by name.
func (e *Engine) GetQueue(name string) (*Queue, error) {
	var q Queue
	if err := e.meta.Get(&q, `SELECT * FROM queues WHERE name = ?`, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("queue", name))
	}
	return &q, nil
}

// ListQueues returns queues, optionally filtered by name prefix.
func (e *Engine) ListQueues(prefix string) ([]Queue, error) {
	var out []Queue
	query := `SELECT * FROM queues`
	args := []any{}
	if prefix != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, likeEscape(prefix)+"%")
	}
	query += ` ORDER BY name`
	if err := e.meta.Select(&out, query, args...); err != nil {
		return nil, dbErr(err, "list queues")
	}
	return out, nil
}

// DeleteQueue removes a queue and its messages.
func (e *Engine) DeleteQueue(name string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM queues WHERE name = ?`, name)
		if err != nil {
			return dbErr(err, "delete queue")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("queue", name)
		}
		if _, err := tx.Exec(`DELETE FROM queue_messages WHERE queue = ?`, name); err != nil {
			return dbErr(err, "delete queue messages")
		}
		return nil
	})
}

// PurgeQueue removes all messages but keeps the queue.
func (e *Engine) PurgeQueue(name string) error {
	if _, err := e.GetQueue(name); err != nil {
		return err
	}
	if _, err := e.meta.Exec(`DELETE FROM queue_messages WHERE queue = ?`, name); err != nil {
		return dbErr(err, "purge queue")
	}
	return nil
}

// SendMessage enqueues a message. The queue's delay pushes visible_at past
// sent_at.
func (e *Engine) SendMessage(queue, body string) (*Message, error) {
	q, err := e.GetQueue(queue)
	if err != nil {
		return nil, err
	}
	now := e.nowNS()
	m := &Message{
		ID:        arn.NewID(),
		Queue:     queue,
		Body:      body,
		SentAt:    now,
		VisibleAt: now + int64(q.DelaySeconds)*int64(time.Second),
	}
	_, err = e.meta.Exec(
		`INSERT INTO queue_messages (id, queue, body, sent_at, visible_at, receipt_handle, receive_count)
		 VALUES (?, ?, ?, ?, ?, '', 0)`,
		m.ID, m.Queue, m.Body, m.SentAt, m.VisibleAt)
	if err != nil {
		return nil, dbErr(err, "send message")
	}
	return m, nil
}

// ReceiveMessage returns up to maxCount visible messages. Each returned
// message gets a fresh receipt handle, an incremented receive count, and a
// visibility deadline pushed out by the queue's visibility timeout.
func (e *Engine) ReceiveMessage(queue string, maxCount int) ([]Message, error) {
	q, err := e.GetQueue(queue)
	if err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		maxCount = 1
	}
	if maxCount > 10 {
		maxCount = 10
	}
	now := e.nowNS()
	invisibleUntil := now + int64(q.VisibilityTimeout)*int64(time.Second)

	var received []Message
	err = e.meta.Tx(func(tx *sqlx.Tx) error {
		var rows []Message
		if err := tx.Select(&rows,
			`SELECT * FROM queue_messages WHERE queue = ? AND visible_at <= ? ORDER BY sent_at LIMIT ?`,
			queue, now, maxCount); err != nil {
			return err
		}
		for _, m := range rows {
			m.ReceiptHandle = arn.NewID()
			m.ReceiveCount++
			m.VisibleAt = invisibleUntil
			if _, err := tx.Exec(
				`UPDATE queue_messages SET receipt_handle = ?, receive_count = ?, visible_at = ? WHERE id = ?`,
				m.ReceiptHandle, m.ReceiveCount, m.VisibleAt, m.ID); err != nil {
				return err
			}
			received = append(received, m)
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "receive message")
	}
	return received, nil
}

// DeleteMessage removes the message matching the receipt handle. A handle
// invalidated by a later receive no longer matches and fails NotFound.
func (e *Engine) DeleteMessage(queue, receiptHandle string) error {
	if _, err := e.GetQueue(queue); err != nil {
		return err
	}
	n, err := e.meta.Exec(`DELETE FROM queue_messages WHERE queue = ? AND receipt_handle = ?`, queue, receiptHandle)
	if err != nil {
		return dbErr(err, "delete message")
	}
	if n == 0 {
		return apperr.NotFound("receipt handle", receiptHandle)
	}
	return nil
}

// ChangeMessageVisibility resets the visibility deadline of a received
// message to now + timeout seconds.
func (e *Engine) ChangeMessageVisibility(queue, receiptHandle string, timeout int) error {
	if timeout < 0 || timeout > 43200 {
		return apperr.InvalidArgument("visibility timeout %d out of range", timeout)
	}
	if _, err := e.GetQueue(queue); err != nil {
		return err
	}
	visibleAt := e.nowNS() + int64(timeout)*int64(time.Second)
	n, err := e.meta.Exec(`UPDATE queue_messages SET visible_at = ? WHERE queue = ? AND receipt_handle = ?`, visibleAt, queue, receiptHandle)
	if err != nil {
		return dbErr(err, "change message visibility")
	}
	if n == 0 {
		return apperr.NotFound("receipt handle", receiptHandle)
	}
	return nil
}

// QueueDepth returns the number of stored messages, visible or not.
func (e *Engine) QueueDepth(queue string) (int, error) {
	if _, err := e.GetQueue(queue); err != nil {
		return 0, err
	}
	var n int
	if err := e.meta.Get(&n, `SELECT COUNT(*) FROM queue_messages WHERE queue = ?`, queue); err != nil {
		return 0, dbErr(err, "queue depth")
	}
	return n, nil
}
