package awsjson

import (
	"encoding/json"

	"localcloud/internal/storage/engine"
)

// busName defaults the event bus to "default", matching the service.
func busName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

func (a *API) events(op string, body []byte) (any, error) {
	switch op {
	case "CreateEventBus":
		var req struct {
			Name string `json:"Name"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		b, err := a.eng.CreateEventBus(req.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"EventBusArn": b.ARN}, nil

	case "ListEventBuses":
		buses, err := a.eng.ListEventBuses()
		if err != nil {
			return nil, err
		}
		type entry struct {
			Name string `json:"Name"`
			Arn  string `json:"Arn"`
		}
		out := make([]entry, 0, len(buses))
		for _, b := range buses {
			out = append(out, entry{Name: b.Name, Arn: b.ARN})
		}
		return map[string]any{"EventBuses": out}, nil

	case "DeleteEventBus":
		var req struct {
			Name string `json:"Name"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteEventBus(req.Name); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "PutRule":
		var req struct {
			Name               string          `json:"Name"`
			EventBusName       string          `json:"EventBusName"`
			EventPattern       json.RawMessage `json:"EventPattern"`
			ScheduleExpression string          `json:"ScheduleExpression"`
			State              string          `json:"State"`
			Description        string          `json:"Description"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		r, err := a.eng.PutRule(busName(req.EventBusName), req.Name, string(req.EventPattern), req.ScheduleExpression, req.State, req.Description)
		if err != nil {
			return nil, err
		}
		return map[string]any{"RuleArn": r.ARN}, nil

	case "DescribeRule":
		var req struct {
			Name         string `json:"Name"`
			EventBusName string `json:"EventBusName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		r, err := a.eng.GetRule(busName(req.EventBusName), req.Name)
		if err != nil {
			return nil, err
		}
		return ruleEntry(r), nil

	case "ListRules":
		var req struct {
			EventBusName string `json:"EventBusName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		rules, err := a.eng.ListRules(busName(req.EventBusName))
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(rules))
		for i := range rules {
			out = append(out, ruleEntry(&rules[i]))
		}
		return map[string]any{"Rules": out}, nil

	case "DeleteRule":
		var req struct {
			Name         string `json:"Name"`
			EventBusName string `json:"EventBusName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteRule(busName(req.EventBusName), req.Name); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "EnableRule", "DisableRule":
		var req struct {
			Name         string `json:"Name"`
			EventBusName string `json:"EventBusName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		state := "ENABLED"
		if op == "DisableRule" {
			state = "DISABLED"
		}
		if err := a.eng.SetRuleState(busName(req.EventBusName), req.Name, state); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "PutTargets":
		var req struct {
			Rule         string `json:"Rule"`
			EventBusName string `json:"EventBusName"`
			Targets      []struct {
				ID    string `json:"Id"`
				Arn   string `json:"Arn"`
				Input string `json:"Input"`
			} `json:"Targets"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		bus := busName(req.EventBusName)
		targets := make([]engine.Target, 0, len(req.Targets))
		for _, t := range req.Targets {
			targets = append(targets, engine.Target{
				Bus:      bus,
				Rule:     req.Rule,
				TargetID: t.ID,
				ARN:      t.Arn,
				Input:    t.Input,
			})
		}
		if err := a.eng.PutTargets(bus, req.Rule, targets); err != nil {
			return nil, err
		}
		return map[string]any{"FailedEntryCount": 0, "FailedEntries": []any{}}, nil

	case "RemoveTargets":
		var req struct {
			Rule         string   `json:"Rule"`
			EventBusName string   `json:"EventBusName"`
			Ids          []string `json:"Ids"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.RemoveTargets(busName(req.EventBusName), req.Rule, req.Ids); err != nil {
			return nil, err
		}
		return map[string]any{"FailedEntryCount": 0, "FailedEntries": []any{}}, nil

	case "ListTargetsByRule":
		var req struct {
			Rule         string `json:"Rule"`
			EventBusName string `json:"EventBusName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		targets, err := a.eng.ListTargets(busName(req.EventBusName), req.Rule)
		if err != nil {
			return nil, err
		}
		type entry struct {
			ID    string `json:"Id"`
			Arn   string `json:"Arn"`
			Input string `json:"Input,omitempty"`
		}
		out := make([]entry, 0, len(targets))
		for _, t := range targets {
			out = append(out, entry{ID: t.TargetID, Arn: t.ARN, Input: t.Input})
		}
		return map[string]any{"Targets": out}, nil

	case "PutEvents":
		var req struct {
			Entries []struct {
				EventBusName string          `json:"EventBusName"`
				Source       string          `json:"Source"`
				DetailType   string          `json:"DetailType"`
				Detail       json.RawMessage `json:"Detail"`
				Resources    []string        `json:"Resources"`
			} `json:"Entries"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		type result struct {
			EventID      string `json:"EventId,omitempty"`
			ErrorCode    string `json:"ErrorCode,omitempty"`
			ErrorMessage string `json:"ErrorMessage,omitempty"`
		}
		failed := 0
		entries := make([]result, 0, len(req.Entries))
		for _, entry := range req.Entries {
			id, err := a.eng.RecordEvent(busName(entry.EventBusName), entry.Source, entry.DetailType, detailJSON(entry.Detail), entry.Resources)
			if err != nil {
				failed++
				entries = append(entries, result{ErrorCode: "InternalException", ErrorMessage: err.Error()})
				continue
			}
			entries = append(entries, result{EventID: id})
		}
		return map[string]any{"FailedEntryCount": failed, "Entries": entries}, nil
	}
	return nil, notImplemented("AWSEvents", op)
}

// detailJSON normalizes the Detail field: the service defines it as a JSON
// string, but clients commonly send the object inline.
func detailJSON(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func ruleEntry(r *engine.Rule) map[string]any {
	out := map[string]any{
		"Name":         r.Name,
		"Arn":          r.ARN,
		"EventBusName": r.Bus,
		"State":        r.State,
	}
	if r.Pattern != "" {
		out["EventPattern"] = json.RawMessage(r.Pattern)
	}
	if r.Schedule != "" {
		out["ScheduleExpression"] = r.Schedule
	}
	if r.Description != "" {
		out["Description"] = r.Description
	}
	return out
}
