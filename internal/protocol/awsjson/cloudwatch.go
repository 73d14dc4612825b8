package awsjson

import (
	"encoding/json"

	"localcloud/internal/storage/engine"
)

type dimension struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

func (a *API) cloudwatch(op string, body []byte) (any, error) {
	switch op {
	case "PutMetricData":
		var req struct {
			Namespace  string `json:"Namespace"`
			MetricData []struct {
				MetricName string      `json:"MetricName"`
				Value      float64     `json:"Value"`
				Unit       string      `json:"Unit"`
				Timestamp  float64     `json:"Timestamp"`
				Dimensions []dimension `json:"Dimensions"`
			} `json:"MetricData"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		rows := make([]engine.MetricRow, 0, len(req.MetricData))
		for _, d := range req.MetricData {
			dims, _ := json.Marshal(d.Dimensions)
			rows = append(rows, engine.MetricRow{
				Name:       d.MetricName,
				Value:      d.Value,
				Unit:       d.Unit,
				Dimensions: string(dims),
				Timestamp:  int64(d.Timestamp * 1e9),
			})
		}
		if err := a.eng.PutMetricData(req.Namespace, rows); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "ListMetrics":
		var req struct {
			Namespace string `json:"Namespace"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		rows, err := a.eng.ListMetrics(req.Namespace)
		if err != nil {
			return nil, err
		}
		type entry struct {
			Namespace  string          `json:"Namespace"`
			MetricName string          `json:"MetricName"`
			Dimensions json.RawMessage `json:"Dimensions,omitempty"`
		}
		out := make([]entry, 0, len(rows))
		for _, row := range rows {
			e := entry{Namespace: row.Namespace, MetricName: row.Name}
			if row.Dimensions != "" && row.Dimensions != "null" {
				e.Dimensions = json.RawMessage(row.Dimensions)
			}
			out = append(out, e)
		}
		return map[string]any{"Metrics": out}, nil

	case "GetMetricStatistics":
		var req struct {
			Namespace  string  `json:"Namespace"`
			MetricName string  `json:"MetricName"`
			StartTime  float64 `json:"StartTime"`
			EndTime    float64 `json:"EndTime"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		stats, err := a.eng.GetMetricStatistics(req.Namespace, req.MetricName, int64(req.StartTime*1e9), int64(req.EndTime*1e9))
		if err != nil {
			return nil, err
		}
		datapoints := []map[string]any{}
		if stats.SampleCount > 0 {
			datapoints = append(datapoints, map[string]any{
				"SampleCount": stats.SampleCount,
				"Sum":         stats.Sum,
				"Minimum":     stats.Minimum,
				"Maximum":     stats.Maximum,
				"Average":     stats.Average,
				"Timestamp":   req.StartTime,
			})
		}
		return map[string]any{
			"Label":      req.MetricName,
			"Datapoints": datapoints,
		}, nil
	}
	return nil, notImplemented("GraniteServiceVersion20100801", op)
}
