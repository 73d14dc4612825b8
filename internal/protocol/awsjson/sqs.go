package awsjson

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

func invalidAttr(name, raw string) error {
	return apperr.InvalidArgument("attribute %s has non-integer value %q", name, raw)
}

// queueNameFromURL extracts the queue name, the last URL path segment.
func queueNameFromURL(queueURL string) string {
	if i := strings.LastIndex(queueURL, "/"); i >= 0 {
		return queueURL[i+1:]
	}
	return queueURL
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// queueSettings maps the wire Attributes map onto engine settings; values
// arrive as strings.
func queueSettings(attrs map[string]string) (engine.QueueSettings, error) {
	var settings engine.QueueSettings
	fields := map[string]**int{
		"VisibilityTimeout":             &settings.VisibilityTimeout,
		"MessageRetentionPeriod":        &settings.RetentionPeriod,
		"DelaySeconds":                  &settings.DelaySeconds,
		"ReceiveMessageWaitTimeSeconds": &settings.ReceiveWait,
	}
	for name, dst := range fields {
		raw, ok := attrs[name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return settings, invalidAttr(name, raw)
		}
		v := n
		*dst = &v
	}
	return settings, nil
}

func (a *API) sqs(op string, body []byte) (any, error) {
	switch op {
	case "CreateQueue":
		var req struct {
			QueueName  string            `json:"QueueName"`
			Attributes map[string]string `json:"Attributes"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		settings, err := queueSettings(req.Attributes)
		if err != nil {
			return nil, err
		}
		q, err := a.eng.CreateQueue(req.QueueName, settings)
		if err != nil {
			return nil, err
		}
		return map[string]any{"QueueUrl": q.URL}, nil

	case "GetQueueUrl":
		var req struct {
			QueueName string `json:"QueueName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		q, err := a.eng.GetQueue(req.QueueName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"QueueUrl": q.URL}, nil

	case "ListQueues":
		var req struct {
			QueueNamePrefix string `json:"QueueNamePrefix"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		queues, err := a.eng.ListQueues(req.QueueNamePrefix)
		if err != nil {
			return nil, err
		}
		urls := make([]string, 0, len(queues))
		for _, q := range queues {
			urls = append(urls, q.URL)
		}
		return map[string]any{"QueueUrls": urls}, nil

	case "DeleteQueue":
		var req struct {
			QueueURL string `json:"QueueUrl"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteQueue(queueNameFromURL(req.QueueURL)); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "PurgeQueue":
		var req struct {
			QueueURL string `json:"QueueUrl"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.PurgeQueue(queueNameFromURL(req.QueueURL)); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "SendMessage":
		var req struct {
			QueueURL    string `json:"QueueUrl"`
			MessageBody string `json:"MessageBody"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		msg, err := a.eng.SendMessage(queueNameFromURL(req.QueueURL), req.MessageBody)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"MessageId":        msg.ID,
			"MD5OfMessageBody": md5Hex(req.MessageBody),
		}, nil

	case "ReceiveMessage":
		var req struct {
			QueueURL            string `json:"QueueUrl"`
			MaxNumberOfMessages int    `json:"MaxNumberOfMessages"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		msgs, err := a.eng.ReceiveMessage(queueNameFromURL(req.QueueURL), req.MaxNumberOfMessages)
		if err != nil {
			return nil, err
		}
		type message struct {
			MessageID     string            `json:"MessageId"`
			ReceiptHandle string            `json:"ReceiptHandle"`
			Body          string            `json:"Body"`
			MD5OfBody     string            `json:"MD5OfBody"`
			Attributes    map[string]string `json:"Attributes"`
		}
		out := make([]message, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, message{
				MessageID:     m.ID,
				ReceiptHandle: m.ReceiptHandle,
				Body:          m.Body,
				MD5OfBody:     md5Hex(m.Body),
				Attributes: map[string]string{
					"ApproximateReceiveCount": strconv.Itoa(m.ReceiveCount),
					"SentTimestamp":           strconv.FormatInt(m.SentAt/1e6, 10),
				},
			})
		}
		return map[string]any{"Messages": out}, nil

	case "DeleteMessage":
		var req struct {
			QueueURL      string `json:"QueueUrl"`
			ReceiptHandle string `json:"ReceiptHandle"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteMessage(queueNameFromURL(req.QueueURL), req.ReceiptHandle); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "ChangeMessageVisibility":
		var req struct {
			QueueURL          string `json:"QueueUrl"`
			ReceiptHandle     string `json:"ReceiptHandle"`
			VisibilityTimeout int    `json:"VisibilityTimeout"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.ChangeMessageVisibility(queueNameFromURL(req.QueueURL), req.ReceiptHandle, req.VisibilityTimeout); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "GetQueueAttributes":
		var req struct {
			QueueURL string `json:"QueueUrl"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		name := queueNameFromURL(req.QueueURL)
		q, err := a.eng.GetQueue(name)
		if err != nil {
			return nil, err
		}
		depth, err := a.eng.QueueDepth(name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"Attributes": map[string]string{
			"QueueArn":                      q.ARN,
			"ApproximateNumberOfMessages":   strconv.Itoa(depth),
			"VisibilityTimeout":             strconv.Itoa(q.VisibilityTimeout),
			"MessageRetentionPeriod":        strconv.Itoa(q.RetentionPeriod),
			"DelaySeconds":                  strconv.Itoa(q.DelaySeconds),
			"ReceiveMessageWaitTimeSeconds": strconv.Itoa(q.ReceiveWait),
			"CreatedTimestamp":              strconv.FormatInt(q.CreatedAt/1e9, 10),
		}}, nil
	}
	return nil, notImplemented("AmazonSQS", op)
}
