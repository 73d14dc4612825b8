package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

func TestPublishToSQSSubscription(t *testing.T) {
	e, _, _ := newTestEngine(t)
	topic, err := e.CreateTopic("alerts")
	require.NoError(t, err)
	_, err = e.CreateQueue("alert-queue", QueueSettings{})
	require.NoError(t, err)
	_, err = e.Subscribe(topic.ARN, "sqs", arn.Queue(e.Region(), "alert-queue"))
	require.NoError(t, err)

	msgID, err := e.PublishToTopic(topic.ARN, "disk full", `{"host":"web-1"}`)
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	got, err := e.ReceiveMessage("alert-queue", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[0].Body), &env))
	assert.Equal(t, "Notification", env["Type"])
	assert.Equal(t, msgID, env["MessageId"])
	assert.Equal(t, "disk full", env["Subject"])
	assert.Equal(t, `{"host":"web-1"}`, env["Message"])
}

func TestCreateTopicIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	a, err := e.CreateTopic("t")
	require.NoError(t, err)
	b, err := e.CreateTopic("t")
	require.NoError(t, err)
	assert.Equal(t, a.ARN, b.ARN)

	topics, err := e.ListTopics()
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestPublishSurvivesBrokenSubscription(t *testing.T) {
	e, _, _ := newTestEngine(t)
	topic, err := e.CreateTopic("t")
	require.NoError(t, err)
	// Queue ARN points at a queue that does not exist.
	_, err = e.Subscribe(topic.ARN, "sqs", arn.Queue(e.Region(), "nowhere"))
	require.NoError(t, err)

	_, err = e.PublishToTopic(topic.ARN, "", "m")
	require.NoError(t, err)
}

func TestPublishMissingTopic(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.PublishToTopic(arn.Topic(e.Region(), "ghost"), "", "m")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestIAMUsers(t *testing.T) {
	e, _, _ := newTestEngine(t)
	u, err := e.CreateIAMUser("deployer")
	require.NoError(t, err)
	assert.Contains(t, u.ARN, ":iam:")

	_, err = e.CreateIAMUser("deployer")
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	got, err := e.GetIAMUser("deployer")
	require.NoError(t, err)
	assert.Equal(t, u.ARN, got.ARN)

	all, err := e.ListIAMUsers()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
