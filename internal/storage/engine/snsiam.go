package engine

import (
	"encoding/json"

	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

// CreateTopic creates (or returns) an SNS topic; CreateTopic is idempotent
// by name on the real service too.
func (e *Engine) CreateTopic(name string) (*Topic, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("topic name must not be empty")
	}
	var existing Topic
	if err := e.meta.Get(&existing, `SELECT * FROM sns_topics WHERE name = ?`, name); err == nil {
		return &existing, nil
	}
	t := &Topic{ARN: arn.Topic(e.region, name), Name: name}
	if _, err := e.meta.Exec(`INSERT INTO sns_topics (arn, name) VALUES (?, ?)`, t.ARN, t.Name); err != nil {
		return nil, dbErr(err, "create topic")
	}
	return t, nil
}

// ListTopics returns all topics.
func (e *Engine) ListTopics() ([]Topic, error) {
	var out []Topic
	if err := e.meta.Select(&out, `SELECT * FROM sns_topics ORDER BY name`); err != nil {
		return nil, dbErr(err, "list topics")
	}
	return out, nil
}

// Subscribe registers a subscription. Supported protocols: sqs (endpoint is
// a queue ARN) and http (logged stub).
func (e *Engine) Subscribe(topicARN, protocol, endpoint string) (*Subscription, error) {
	var t Topic
	if err := e.meta.Get(&t, `SELECT * FROM sns_topics WHERE arn = ?`, topicARN); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("topic", topicARN))
	}
	s := &Subscription{
		ARN:      topicARN + ":" + arn.NewID(),
		TopicARN: topicARN,
		Protocol: protocol,
		Endpoint: endpoint,
	}
	if _, err := e.meta.Exec(
		`INSERT INTO sns_subscriptions (arn, topic_arn, protocol, endpoint) VALUES (?, ?, ?, ?)`,
		s.ARN, s.TopicARN, s.Protocol, s.Endpoint); err != nil {
		return nil, dbErr(err, "subscribe")
	}
	return s, nil
}

// PublishToTopic fans a message out to the topic's subscriptions. SQS
// subscriptions receive the SNS JSON envelope; other protocols are logged.
// Delivery failures never fail the publish.
func (e *Engine) PublishToTopic(topicARN, subject, message string) (string, error) {
	var t Topic
	if err := e.meta.Get(&t, `SELECT * FROM sns_topics WHERE arn = ?`, topicARN); err != nil {
		return "", notFoundOr(err, apperr.NotFound("topic", topicARN))
	}
	messageID := arn.NewID()
	var subs []Subscription
	if err := e.meta.Select(&subs, `SELECT * FROM sns_subscriptions WHERE topic_arn = ?`, topicARN); err != nil {
		return "", dbErr(err, "list subscriptions")
	}
	envelope := snsEnvelope(messageID, topicARN, subject, message, e.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	for _, sub := range subs {
		switch sub.Protocol {
		case "sqs":
			queue := arn.QueueNameFromARN(sub.Endpoint)
			if queue == "" {
				e.logger.Warn("sqs subscription endpoint is not a queue arn", zap.String("endpoint", sub.Endpoint))
				continue
			}
			if _, err := e.SendMessage(queue, envelope); err != nil {
				e.logger.Warn("sns delivery to queue failed", zap.String("queue", queue), zap.Error(err))
			}
		default:
			e.logger.Info("sns delivery stubbed",
				zap.String("protocol", sub.Protocol),
				zap.String("endpoint", sub.Endpoint))
		}
	}
	return messageID, nil
}

func snsEnvelope(messageID, topicARN, subject, message, timestamp string) string {
	raw, _ := json.Marshal(struct {
		Type      string `json:"Type"`
		MessageID string `json:"MessageId"`
		TopicARN  string `json:"TopicArn"`
		Subject   string `json:"Subject,omitempty"`
		Message   string `json:"Message"`
		Timestamp string `json:"Timestamp"`
	}{"Notification", messageID, topicARN, subject, message, timestamp})
	return string(raw)
}

// CreateIAMUser creates a minimal IAM user.
func (e *Engine) CreateIAMUser(name string) (*IAMUser, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("user name must not be empty")
	}
	var existing IAMUser
	if err := e.meta.Get(&existing, `SELECT * FROM iam_users WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("user", name)
	}
	u := &IAMUser{Name: name, ARN: arn.IAMUser(name), CreatedAt: e.nowNS()}
	if _, err := e.meta.Exec(`INSERT INTO iam_users (name, arn, created_at) VALUES (?, ?, ?)`, u.Name, u.ARN, u.CreatedAt); err != nil {
		return nil, dbErr(err, "create iam user")
	}
	return u, nil
}

// GetIAMUser returns an IAM user.
func (e *Engine) GetIAMUser(name string) (*IAMUser, error) {
	var u IAMUser
	if err := e.meta.Get(&u, `SELECT * FROM iam_users WHERE name = ?`, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("user", name))
	}
	return &u, nil
}

// ListIAMUsers returns all IAM users.
func (e *Engine) ListIAMUsers() ([]IAMUser, error) {
	var out []IAMUser
	if err := e.meta.Select(&out, `SELECT * FROM iam_users ORDER BY name`); err != nil {
		return nil, dbErr(err, "list iam users")
	}
	return out, nil
}
