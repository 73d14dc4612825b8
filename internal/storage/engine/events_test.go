package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

func TestEventFanOutToQueue(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateQueue("order-events", QueueSettings{})
	require.NoError(t, err)

	_, err = e.PutRule("", "on-order", `{"source":["shop.orders"],"detail-type":["OrderPlaced"]}`, "", "ENABLED", "")
	require.NoError(t, err)
	err = e.PutTargets("", "on-order", []Target{{TargetID: "q1", ARN: arn.Queue(e.Region(), "order-events")}})
	require.NoError(t, err)

	id, err := e.RecordEvent("", "shop.orders", "OrderPlaced", `{"orderId":"o-1","total":42}`, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := e.ReceiveMessage("order-events", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[0].Body), &env))
	assert.Equal(t, "shop.orders", env["source"])
	assert.Equal(t, "OrderPlaced", env["detail-type"])
	assert.Equal(t, id, env["id"])
	detail, ok := env["detail"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "o-1", detail["orderId"])
}

func TestEventNonMatchingRuleNotDelivered(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateQueue("order-events", QueueSettings{})
	require.NoError(t, err)
	_, err = e.PutRule("", "on-order", `{"source":["shop.orders"]}`, "", "ENABLED", "")
	require.NoError(t, err)
	err = e.PutTargets("", "on-order", []Target{{TargetID: "q1", ARN: arn.Queue(e.Region(), "order-events")}})
	require.NoError(t, err)

	_, err = e.RecordEvent("", "shop.inventory", "StockLow", `{}`, nil)
	require.NoError(t, err)

	depth, err := e.QueueDepth("order-events")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestEventDisabledRuleSkipped(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateQueue("q", QueueSettings{})
	require.NoError(t, err)
	_, err = e.PutRule("", "r", `{"source":["s"]}`, "", "ENABLED", "")
	require.NoError(t, err)
	err = e.PutTargets("", "r", []Target{{TargetID: "t", ARN: arn.Queue(e.Region(), "q")}})
	require.NoError(t, err)
	require.NoError(t, e.SetRuleState("", "r", "DISABLED"))

	_, err = e.RecordEvent("", "s", "x", `{}`, nil)
	require.NoError(t, err)
	depth, err := e.QueueDepth("q")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestEventMissingQueueDoesNotFailPut(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.PutRule("", "r", `{"source":["s"]}`, "", "ENABLED", "")
	require.NoError(t, err)
	err = e.PutTargets("", "r", []Target{{TargetID: "t", ARN: arn.Queue(e.Region(), "no-such-queue")}})
	require.NoError(t, err)

	_, err = e.RecordEvent("", "s", "x", `{}`, nil)
	require.NoError(t, err)
}

func TestEventDetailMatching(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateQueue("q", QueueSettings{})
	require.NoError(t, err)
	_, err = e.PutRule("", "r", `{"source":["s"],"detail":{"status":["shipped"]}}`, "", "ENABLED", "")
	require.NoError(t, err)
	err = e.PutTargets("", "r", []Target{{TargetID: "t", ARN: arn.Queue(e.Region(), "q")}})
	require.NoError(t, err)

	_, err = e.RecordEvent("", "s", "x", `{"status":"pending"}`, nil)
	require.NoError(t, err)
	_, err = e.RecordEvent("", "s", "x", `{"status":"shipped"}`, nil)
	require.NoError(t, err)

	depth, err := e.QueueDepth("q")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestEventBusLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// The default bus exists without being created.
	b, err := e.GetEventBus("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBus, b.Name)
	err = e.DeleteEventBus(DefaultBus)
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	_, err = e.CreateEventBus("custom")
	require.NoError(t, err)
	_, err = e.CreateEventBus("custom")
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	_, err = e.PutRule("custom", "r", `{"source":["s"]}`, "", "", "")
	require.NoError(t, err)

	require.NoError(t, e.DeleteEventBus("custom"))
	_, err = e.GetRule("custom", "r")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEventHistory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.RecordEvent("", "s", "first", `{}`, []string{"arn:res"})
	require.NoError(t, err)
	_, err = e.RecordEvent("", "s", "second", `{}`, nil)
	require.NoError(t, err)

	hist, err := e.ListEventHistory("", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Contains(t, hist[0].Resources+hist[1].Resources, "arn:res")
}
