package awsquery

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/engine"
	"localcloud/internal/storage/meta"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := blob.NewStore(dir)
	require.NoError(t, err)
	eng := engine.New(store, blobs, "us-east-1", "http://localhost:4566", zap.NewNop())
	return New(eng, zap.NewNop())
}

func post(t *testing.T, api *API, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func TestMatches(t *testing.T) {
	form := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Action=ListQueues"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.True(t, Matches(form))

	form.Header.Set("X-Amz-Target", "AmazonSQS.ListQueues")
	assert.False(t, Matches(form))

	jsonReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	jsonReq.Header.Set("Content-Type", "application/x-amz-json-1.1")
	assert.False(t, Matches(jsonReq))

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, Matches(get))
}

func TestLegacyQueueFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := post(t, api, "/", url.Values{"Action": {"CreateQueue"}, "QueueName": {"jobs"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		QueueURL string `xml:"CreateQueueResult>QueueUrl"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "http://localhost:4566/000000000000/jobs", created.QueueURL)

	// The legacy wire posts directly to the queue URL path.
	rec = post(t, api, "/000000000000/jobs", url.Values{"Action": {"SendMessage"}, "MessageBody": {"work"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sent struct {
		MessageID string `xml:"SendMessageResult>MessageId"`
		MD5       string `xml:"SendMessageResult>MD5OfMessageBody"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.MessageID)
	assert.Len(t, sent.MD5, 32)

	rec = post(t, api, "/000000000000/jobs", url.Values{"Action": {"ReceiveMessage"}, "MaxNumberOfMessages": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var received struct {
		Messages []struct {
			Body          string `xml:"Body"`
			ReceiptHandle string `xml:"ReceiptHandle"`
		} `xml:"ReceiveMessageResult>Message"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &received))
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "work", received.Messages[0].Body)

	rec = post(t, api, "/000000000000/jobs", url.Values{
		"Action":        {"DeleteMessage"},
		"ReceiptHandle": {received.Messages[0].ReceiptHandle},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, api, "/000000000000/jobs", url.Values{"Action": {"GetQueueAttributes"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var attrs struct {
		Attribute []struct {
			Name  string `xml:"Name"`
			Value string `xml:"Value"`
		} `xml:"GetQueueAttributesResult>Attribute"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &attrs))
	byName := map[string]string{}
	for _, a := range attrs.Attribute {
		byName[a.Name] = a.Value
	}
	assert.Equal(t, "0", byName["ApproximateNumberOfMessages"])
	assert.Contains(t, byName["QueueArn"], ":sqs:")
}

func TestCreateQueueWithAttributes(t *testing.T) {
	api := newTestAPI(t)
	rec := post(t, api, "/", url.Values{
		"Action":            {"CreateQueue"},
		"QueueName":         {"slow"},
		"Attribute.1.Name":  {"VisibilityTimeout"},
		"Attribute.1.Value": {"120"},
		"Attribute.2.Name":  {"DelaySeconds"},
		"Attribute.2.Value": {"5"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, api, "/000000000000/slow", url.Values{"Action": {"GetQueueAttributes"}})
	body := rec.Body.String()
	assert.Contains(t, body, "<Value>120</Value>")
	assert.Contains(t, body, "<Value>5</Value>")
}

func TestErrorEnvelope(t *testing.T) {
	api := newTestAPI(t)
	rec := post(t, api, "/", url.Values{"Action": {"GetQueueUrl"}, "QueueName": {"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e queryError
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "Sender", e.Type)
	assert.Equal(t, "ResourceNotFoundException", e.Code)
	assert.NotEmpty(t, e.Message)
}

func TestSNSPublishDeliversToQueue(t *testing.T) {
	api := newTestAPI(t)
	post(t, api, "/", url.Values{"Action": {"CreateQueue"}, "QueueName": {"alerts"}})

	rec := post(t, api, "/", url.Values{"Action": {"CreateTopic"}, "Name": {"incidents"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var topic struct {
		TopicArn string `xml:"CreateTopicResult>TopicArn"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &topic))
	assert.Contains(t, topic.TopicArn, ":sns:")

	rec = post(t, api, "/", url.Values{
		"Action":   {"Subscribe"},
		"TopicArn": {topic.TopicArn},
		"Protocol": {"sqs"},
		"Endpoint": {"arn:aws:sqs:us-east-1:000000000000:alerts"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, api, "/", url.Values{
		"Action":   {"Publish"},
		"TopicArn": {topic.TopicArn},
		"Subject":  {"disk full"},
		"Message":  {"volume at 95%"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, api, "/000000000000/alerts", url.Values{"Action": {"ReceiveMessage"}})
	var received struct {
		Messages []struct {
			Body string `xml:"Body"`
		} `xml:"ReceiveMessageResult>Message"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &received))
	require.Len(t, received.Messages, 1)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(received.Messages[0].Body), &envelope))
	assert.Equal(t, "Notification", envelope["Type"])
	assert.Equal(t, "disk full", envelope["Subject"])
	assert.Equal(t, "volume at 95%", envelope["Message"])
}

func TestCallerIdentity(t *testing.T) {
	api := newTestAPI(t)
	rec := post(t, api, "/", url.Values{"Action": {"GetCallerIdentity"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var id struct {
		Account string `xml:"GetCallerIdentityResult>Account"`
		Arn     string `xml:"GetCallerIdentityResult>Arn"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &id))
	assert.Equal(t, "000000000000", id.Account)
	assert.Contains(t, id.Arn, ":iam:")
}

func TestIAMUsers(t *testing.T) {
	api := newTestAPI(t)
	rec := post(t, api, "/", url.Values{"Action": {"CreateUser"}, "UserName": {"deploy-bot"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Arn string `xml:"CreateUserResult>User>Arn"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, created.Arn, ":iam:")

	rec = post(t, api, "/", url.Values{"Action": {"ListUsers"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []struct {
			UserName string `xml:"UserName"`
		} `xml:"ListUsersResult>Users>member"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "deploy-bot", list.Users[0].UserName)
}

func TestUnknownAction(t *testing.T) {
	api := newTestAPI(t)
	rec := post(t, api, "/", url.Values{"Action": {"WarpDrive"}})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
