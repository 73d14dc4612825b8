// Package events evaluates EventBridge-style patterns against published
// events and builds the envelopes delivered to targets. Matching is pure;
// dispatch side effects belong to the storage engine.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a published event entry as the matcher sees it.
type Event struct {
	ID         string
	Source     string
	DetailType string
	Detail     string
	Resources  []string
	Time       time.Time
	Region     string
	Account    string
}

// Match reports whether the event matches the JSON pattern. The pattern is
// an object whose leaves are arrays of permitted literals. Supported fields:
// "source", "detail-type", and exact-match nested keys under "detail".
// An empty pattern matches everything. A malformed pattern matches nothing.
func Match(pattern string, ev Event) bool {
	if pattern == "" {
		return true
	}
	var p map[string]json.RawMessage
	if err := json.Unmarshal([]byte(pattern), &p); err != nil {
		return false
	}
	if len(p) == 0 {
		return true
	}
	if raw, ok := p["source"]; ok && !literalIn(raw, ev.Source) {
		return false
	}
	if raw, ok := p["detail-type"]; ok && !literalIn(raw, ev.DetailType) {
		return false
	}
	if raw, ok := p["detail"]; ok {
		var sub map[string]json.RawMessage
		if err := json.Unmarshal(raw, &sub); err != nil {
			return false
		}
		var detail map[string]any
		if err := json.Unmarshal([]byte(ev.Detail), &detail); err != nil {
			return false
		}
		if !matchDetail(sub, detail) {
			return false
		}
	}
	return true
}

// matchDetail checks nested exact-match constraints: each pattern key must
// exist in the detail object and either match any listed leaf literal or,
// for object values, recurse.
func matchDetail(pattern map[string]json.RawMessage, detail map[string]any) bool {
	for key, raw := range pattern {
		val, ok := detail[key]
		if !ok {
			return false
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			sub, ok := val.(map[string]any)
			if !ok || !matchDetail(nested, sub) {
				return false
			}
			continue
		}
		var leaves []any
		if err := json.Unmarshal(raw, &leaves); err != nil {
			// Richer operators (prefix, numeric ranges, anything-but) are
			// not supported; they never match.
			return false
		}
		if !anyLeafEquals(leaves, val) {
			return false
		}
	}
	return true
}

func literalIn(raw json.RawMessage, value string) bool {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return false
	}
	for _, s := range list {
		if s == value {
			return true
		}
	}
	return false
}

func anyLeafEquals(leaves []any, val any) bool {
	for _, leaf := range leaves {
		if leafEquals(leaf, val) {
			return true
		}
	}
	return false
}

func leafEquals(leaf, val any) bool {
	switch l := leaf.(type) {
	case string:
		v, ok := val.(string)
		return ok && v == l
	case float64:
		v, ok := val.(float64)
		return ok && v == l
	case bool:
		v, ok := val.(bool)
		return ok && v == l
	case nil:
		return val == nil
	default:
		return false
	}
}

// Envelope is the JSON document delivered to SQS targets, shaped like the
// document EventBridge itself delivers.
type Envelope struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Time       string          `json:"time"`
	Region     string          `json:"region"`
	Resources  []string        `json:"resources"`
	Detail     json.RawMessage `json:"detail"`
}

// BuildEnvelope serializes the delivery document for an event.
func BuildEnvelope(ev Event) (string, error) {
	detail := json.RawMessage(ev.Detail)
	if !json.Valid(detail) {
		return "", fmt.Errorf("event detail is not valid JSON")
	}
	resources := ev.Resources
	if resources == nil {
		resources = []string{}
	}
	env := Envelope{
		Version:    "0",
		ID:         ev.ID,
		DetailType: ev.DetailType,
		Source:     ev.Source,
		Account:    ev.Account,
		Time:       ev.Time.UTC().Format(time.RFC3339),
		Region:     ev.Region,
		Resources:  resources,
		Detail:     detail,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
