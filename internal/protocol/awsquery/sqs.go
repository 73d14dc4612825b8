package awsquery

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strconv"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

type queueURLResult struct {
	QueueURL string `xml:"QueueUrl"`
}

type listQueuesResult struct {
	QueueURL []string `xml:"QueueUrl"`
}

type sendMessageResult struct {
	MessageID        string `xml:"MessageId"`
	MD5OfMessageBody string `xml:"MD5OfMessageBody"`
}

type receiveMessageResult struct {
	Message []wireMessage `xml:"Message"`
}

type wireMessage struct {
	MessageID     string          `xml:"MessageId"`
	ReceiptHandle string          `xml:"ReceiptHandle"`
	MD5OfBody     string          `xml:"MD5OfBody"`
	Body          string          `xml:"Body"`
	Attribute     []wireAttribute `xml:"Attribute"`
}

type wireAttribute struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

type queueAttributesResult struct {
	Attribute []wireAttribute `xml:"Attribute"`
}

func bodyMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (a *API) sqs(action string, r *http.Request) (any, error) {
	switch action {
	case "CreateQueue":
		name := r.Form.Get("QueueName")
		settings, err := querySettings(indexedAttrs(r))
		if err != nil {
			return nil, err
		}
		q, err := a.eng.CreateQueue(name, settings)
		if err != nil {
			return nil, err
		}
		return queueURLResult{QueueURL: q.URL}, nil

	case "GetQueueUrl":
		q, err := a.eng.GetQueue(r.Form.Get("QueueName"))
		if err != nil {
			return nil, err
		}
		return queueURLResult{QueueURL: q.URL}, nil

	case "ListQueues":
		queues, err := a.eng.ListQueues(r.Form.Get("QueueNamePrefix"))
		if err != nil {
			return nil, err
		}
		var out listQueuesResult
		for _, q := range queues {
			out.QueueURL = append(out.QueueURL, q.URL)
		}
		return out, nil

	case "DeleteQueue":
		return nil, a.eng.DeleteQueue(queueName(r))

	case "PurgeQueue":
		return nil, a.eng.PurgeQueue(queueName(r))

	case "SendMessage":
		body := r.Form.Get("MessageBody")
		msg, err := a.eng.SendMessage(queueName(r), body)
		if err != nil {
			return nil, err
		}
		return sendMessageResult{MessageID: msg.ID, MD5OfMessageBody: bodyMD5(body)}, nil

	case "ReceiveMessage":
		msgs, err := a.eng.ReceiveMessage(queueName(r), formInt(r, "MaxNumberOfMessages", 1))
		if err != nil {
			return nil, err
		}
		var out receiveMessageResult
		for _, m := range msgs {
			out.Message = append(out.Message, wireMessage{
				MessageID:     m.ID,
				ReceiptHandle: m.ReceiptHandle,
				MD5OfBody:     bodyMD5(m.Body),
				Body:          m.Body,
				Attribute: []wireAttribute{
					{Name: "ApproximateReceiveCount", Value: strconv.Itoa(m.ReceiveCount)},
					{Name: "SentTimestamp", Value: strconv.FormatInt(m.SentAt/1e6, 10)},
				},
			})
		}
		return out, nil

	case "DeleteMessage":
		return nil, a.eng.DeleteMessage(queueName(r), r.Form.Get("ReceiptHandle"))

	case "ChangeMessageVisibility":
		timeout, err := strconv.Atoi(r.Form.Get("VisibilityTimeout"))
		if err != nil {
			return nil, apperr.InvalidArgument("VisibilityTimeout must be an integer")
		}
		return nil, a.eng.ChangeMessageVisibility(queueName(r), r.Form.Get("ReceiptHandle"), timeout)

	case "GetQueueAttributes":
		name := queueName(r)
		q, err := a.eng.GetQueue(name)
		if err != nil {
			return nil, err
		}
		depth, err := a.eng.QueueDepth(name)
		if err != nil {
			return nil, err
		}
		return queueAttributesResult{Attribute: []wireAttribute{
			{Name: "QueueArn", Value: q.ARN},
			{Name: "ApproximateNumberOfMessages", Value: strconv.Itoa(depth)},
			{Name: "VisibilityTimeout", Value: strconv.Itoa(q.VisibilityTimeout)},
			{Name: "MessageRetentionPeriod", Value: strconv.Itoa(q.RetentionPeriod)},
			{Name: "DelaySeconds", Value: strconv.Itoa(q.DelaySeconds)},
			{Name: "ReceiveMessageWaitTimeSeconds", Value: strconv.Itoa(q.ReceiveWait)},
		}}, nil
	}
	return nil, apperr.NotImplemented("SQS action " + action)
}

func querySettings(attrs map[string]string) (engine.QueueSettings, error) {
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
			return settings, apperr.InvalidArgument("attribute %s has non-integer value %q", name, raw)
		}
		v := n
		*dst = &v
	}
	return settings, nil
}
