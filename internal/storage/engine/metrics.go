package engine

import (
	"math"

	"localcloud/internal/apperr"
)

// PutMetricData appends metric datapoints. Metrics are append-only.
func (e *Engine) PutMetricData(namespace string, data []MetricRow) error {
	if namespace == "" {
		return apperr.InvalidArgument("metric namespace must not be empty")
	}
	for _, d := range data {
		if d.Name == "" {
			return apperr.InvalidArgument("metric name must not be empty")
		}
		ts := d.Timestamp
		if ts == 0 {
			ts = e.nowNS()
		}
		unit := d.Unit
		if unit == "" {
			unit = "None"
		}
		dims := d.Dimensions
		if dims == "" {
			dims = "[]"
		}
		if _, err := e.meta.Exec(
			`INSERT INTO metrics (namespace, name, value, unit, dimensions, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			namespace, d.Name, d.Value, unit, dims, ts); err != nil {
			return dbErr(err, "put metric data")
		}
	}
	return nil
}

// ListMetrics returns the distinct metric names of a namespace, or of all
// namespaces when empty.
func (e *Engine) ListMetrics(namespace string) ([]MetricRow, error) {
	var out []MetricRow
	query := `SELECT MIN(id) AS id, namespace, name, 0 AS value, '' AS unit, '[]' AS dimensions, 0 AS timestamp
	          FROM metrics`
	args := []any{}
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}
	query += ` GROUP BY namespace, name ORDER BY namespace, name`
	if err := e.meta.Select(&out, query, args...); err != nil {
		return nil, dbErr(err, "list metrics")
	}
	return out, nil
}

// MetricStatistics summarizes datapoints of one metric between start and
// end (unix nanoseconds, end exclusive).
type MetricStatistics struct {
	SampleCount float64
	Sum         float64
	Minimum     float64
	Maximum     float64
	Average     float64
}

// GetMetricStatistics computes statistics over the raw datapoints.
func (e *Engine) GetMetricStatistics(namespace, name string, startNS, endNS int64) (*MetricStatistics, error) {
	var rows []MetricRow
	if err := e.meta.Select(&rows,
		`SELECT * FROM metrics WHERE namespace = ? AND name = ? AND timestamp >= ? AND timestamp < ?`,
		namespace, name, startNS, endNS); err != nil {
		return nil, dbErr(err, "get metric statistics")
	}
	stats := &MetricStatistics{Minimum: math.Inf(1), Maximum: math.Inf(-1)}
	for _, r := range rows {
		stats.SampleCount++
		stats.Sum += r.Value
		stats.Minimum = math.Min(stats.Minimum, r.Value)
		stats.Maximum = math.Max(stats.Maximum, r.Value)
	}
	if stats.SampleCount == 0 {
		return &MetricStatistics{}, nil
	}
	stats.Average = stats.Sum / stats.SampleCount
	return stats, nil
}
