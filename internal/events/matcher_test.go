package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	ev := Event{
		Source:     "orders",
		DetailType: "order.created",
		Detail:     `{"state":"NEW","total":42,"customer":{"tier":"gold"}}`,
	}

	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"empty pattern matches all", "", true},
		{"empty object matches all", "{}", true},
		{"source match", `{"source":["orders"]}`, true},
		{"source any-of", `{"source":["billing","orders"]}`, true},
		{"source mismatch", `{"source":["billing"]}`, false},
		{"detail-type match", `{"detail-type":["order.created"]}`, true},
		{"both must match", `{"source":["orders"],"detail-type":["order.deleted"]}`, false},
		{"detail string leaf", `{"detail":{"state":["NEW"]}}`, true},
		{"detail number leaf", `{"detail":{"total":[42]}}`, true},
		{"detail nested object", `{"detail":{"customer":{"tier":["gold"]}}}`, true},
		{"detail leaf mismatch", `{"detail":{"state":["SHIPPED"]}}`, false},
		{"detail missing key", `{"detail":{"missing":["x"]}}`, false},
		{"unsupported operator", `{"detail":{"state":[{"prefix":"N"}]}}`, false},
		{"malformed pattern", `{"source":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, ev))
		})
	}
}

func TestBuildEnvelope(t *testing.T) {
	ev := Event{
		ID:         "evt-1",
		Source:     "s",
		DetailType: "t",
		Detail:     `{"k":"v"}`,
		Region:     "us-east-1",
		Account:    "000000000000",
		Time:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := BuildEnvelope(ev)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, "0", env.Version)
	assert.Equal(t, "s", env.Source)
	assert.Equal(t, "t", env.DetailType)
	assert.Equal(t, "2024-05-01T12:00:00Z", env.Time)
	assert.JSONEq(t, `{"k":"v"}`, string(env.Detail))
	assert.NotNil(t, env.Resources)
}

func TestBuildEnvelopeRejectsBadDetail(t *testing.T) {
	_, err := BuildEnvelope(Event{Detail: `{"k":`})
	assert.Error(t, err)
}
