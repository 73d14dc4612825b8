package awsjson

import (
	"localcloud/internal/storage/engine"
	"localcloud/pkg/arn"
)

func (a *API) logs(op string, body []byte) (any, error) {
	switch op {
	case "CreateLogGroup":
		var req struct {
			LogGroupName string `json:"logGroupName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if _, err := a.eng.CreateLogGroup(req.LogGroupName); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "DescribeLogGroups":
		var req struct {
			LogGroupNamePrefix string `json:"logGroupNamePrefix"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		groups, err := a.eng.ListLogGroups(req.LogGroupNamePrefix)
		if err != nil {
			return nil, err
		}
		type entry struct {
			LogGroupName string `json:"logGroupName"`
			Arn          string `json:"arn"`
			CreationTime int64  `json:"creationTime"`
		}
		out := make([]entry, 0, len(groups))
		for _, g := range groups {
			out = append(out, entry{LogGroupName: g.Name, Arn: g.ARN, CreationTime: g.CreatedAt / 1e6})
		}
		return map[string]any{"logGroups": out}, nil

	case "DeleteLogGroup":
		var req struct {
			LogGroupName string `json:"logGroupName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteLogGroup(req.LogGroupName); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "CreateLogStream":
		var req struct {
			LogGroupName  string `json:"logGroupName"`
			LogStreamName string `json:"logStreamName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if _, err := a.eng.CreateLogStream(req.LogGroupName, req.LogStreamName); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "DescribeLogStreams":
		var req struct {
			LogGroupName string `json:"logGroupName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		streams, err := a.eng.ListLogStreams(req.LogGroupName)
		if err != nil {
			return nil, err
		}
		type entry struct {
			LogStreamName string `json:"logStreamName"`
			CreationTime  int64  `json:"creationTime"`
		}
		out := make([]entry, 0, len(streams))
		for _, s := range streams {
			out = append(out, entry{LogStreamName: s.StreamName, CreationTime: s.CreatedAt / 1e6})
		}
		return map[string]any{"logStreams": out}, nil

	case "PutLogEvents":
		var req struct {
			LogGroupName  string `json:"logGroupName"`
			LogStreamName string `json:"logStreamName"`
			LogEvents     []struct {
				Timestamp int64  `json:"timestamp"`
				Message   string `json:"message"`
			} `json:"logEvents"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		events := make([]engine.LogEvent, 0, len(req.LogEvents))
		for _, ev := range req.LogEvents {
			events = append(events, engine.LogEvent{Timestamp: ev.Timestamp, Message: ev.Message})
		}
		if err := a.eng.PutLogEvents(req.LogGroupName, req.LogStreamName, events); err != nil {
			return nil, err
		}
		return map[string]any{"nextSequenceToken": arn.NewID()}, nil

	case "GetLogEvents":
		var req struct {
			LogGroupName  string `json:"logGroupName"`
			LogStreamName string `json:"logStreamName"`
			Limit         int    `json:"limit"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		events, err := a.eng.GetLogEvents(req.LogGroupName, req.LogStreamName, req.Limit)
		if err != nil {
			return nil, err
		}
		type entry struct {
			Timestamp     int64  `json:"timestamp"`
			Message       string `json:"message"`
			IngestionTime int64  `json:"ingestionTime"`
		}
		out := make([]entry, 0, len(events))
		for _, ev := range events {
			out = append(out, entry{Timestamp: ev.Timestamp, Message: ev.Message, IngestionTime: ev.IngestedAt / 1e6})
		}
		return map[string]any{"events": out}, nil

	case "FilterLogEvents":
		var req struct {
			LogGroupName  string `json:"logGroupName"`
			FilterPattern string `json:"filterPattern"`
			Limit         int    `json:"limit"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		events, err := a.eng.FilterLogEvents(req.LogGroupName, req.FilterPattern, req.Limit)
		if err != nil {
			return nil, err
		}
		type entry struct {
			LogStreamName string `json:"logStreamName"`
			Timestamp     int64  `json:"timestamp"`
			Message       string `json:"message"`
		}
		out := make([]entry, 0, len(events))
		for _, ev := range events {
			out = append(out, entry{LogStreamName: ev.StreamName, Timestamp: ev.Timestamp, Message: ev.Message})
		}
		return map[string]any{"events": out}, nil
	}
	return nil, notImplemented("Logs_20140328", op)
}
