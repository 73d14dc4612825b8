package engine

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

// CreateLogGroup creates a log group.
func (e *Engine) CreateLogGroup(name string) (*LogGroup, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("log group name must not be empty")
	}
	var existing LogGroup
	if err := e.meta.Get(&existing, `SELECT * FROM log_groups WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("log group", name)
	}
	g := &LogGroup{Name: name, ARN: arn.LogGroup(e.region, name), CreatedAt: e.nowNS()}
	if _, err := e.meta.Exec(`INSERT INTO log_groups (name, arn, created_at) VALUES (?, ?, ?)`, g.Name, g.ARN, g.CreatedAt); err != nil {
		return nil, dbErr(err, "create log group")
	}
	return g, nil
}

// GetLogGroup returns a group row.
func (e *Engine) GetLogGroup(name string) (*LogGroup, error) {
	var g LogGroup
	if err := e.meta.Get(&g, `SELECT * FROM log_groups WHERE name = ?`, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("log group", name))
	}
	return &g, nil
}

// ListLogGroups returns groups, optionally filtered by name prefix.
func (e *Engine) ListLogGroups(prefix string) ([]LogGroup, error) {
	var out []LogGroup
	query := `SELECT * FROM log_groups`
	args := []any{}
	if prefix != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, likeEscape(prefix)+"%")
	}
	query += ` ORDER BY name`
	if err := e.meta.Select(&out, query, args...); err != nil {
		return nil, dbErr(err, "list log groups")
	}
	return out, nil
}

// DeleteLogGroup removes a group with its streams and events.
func (e *Engine) DeleteLogGroup(name string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM log_groups WHERE name = ?`, name)
		if err != nil {
			return dbErr(err, "delete log group")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("log group", name)
		}
		if _, err := tx.Exec(`DELETE FROM log_streams WHERE group_name = ?`, name); err != nil {
			return dbErr(err, "delete log streams")
		}
		if _, err := tx.Exec(`DELETE FROM log_events WHERE group_name = ?`, name); err != nil {
			return dbErr(err, "delete log events")
		}
		return nil
	})
}

// CreateLogStream creates a stream in a group.
func (e *Engine) CreateLogStream(group, stream string) (*LogStream, error) {
	if _, err := e.GetLogGroup(group); err != nil {
		return nil, err
	}
	var existing LogStream
	if err := e.meta.Get(&existing, `SELECT * FROM log_streams WHERE group_name = ? AND stream_name = ?`, group, stream); err == nil {
		return nil, apperr.AlreadyExists("log stream", stream)
	}
	s := &LogStream{GroupName: group, StreamName: stream, CreatedAt: e.nowNS()}
	if _, err := e.meta.Exec(
		`INSERT INTO log_streams (group_name, stream_name, created_at) VALUES (?, ?, ?)`,
		s.GroupName, s.StreamName, s.CreatedAt); err != nil {
		return nil, dbErr(err, "create log stream")
	}
	return s, nil
}

// ListLogStreams returns the streams of a group.
func (e *Engine) ListLogStreams(group string) ([]LogStream, error) {
	if _, err := e.GetLogGroup(group); err != nil {
		return nil, err
	}
	var out []LogStream
	if err := e.meta.Select(&out, `SELECT * FROM log_streams WHERE group_name = ? ORDER BY stream_name`, group); err != nil {
		return nil, dbErr(err, "list log streams")
	}
	return out, nil
}

// PutLogEvents appends events to a stream. Timestamps are caller-supplied
// unix milliseconds, as on the wire.
func (e *Engine) PutLogEvents(group, stream string, logEvents []LogEvent) error {
	var s LogStream
	if err := e.meta.Get(&s, `SELECT * FROM log_streams WHERE group_name = ? AND stream_name = ?`, group, stream); err != nil {
		return notFoundOr(err, apperr.NotFound("log stream", stream))
	}
	ingested := e.nowNS()
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		for _, ev := range logEvents {
			if _, err := tx.Exec(
				`INSERT INTO log_events (group_name, stream_name, timestamp, message, ingested_at) VALUES (?, ?, ?, ?, ?)`,
				group, stream, ev.Timestamp, ev.Message, ingested); err != nil {
				return dbErr(err, "put log events")
			}
		}
		return nil
	})
}

// GetLogEvents returns a stream's events in timestamp order.
func (e *Engine) GetLogEvents(group, stream string, limit int) ([]LogEvent, error) {
	var s LogStream
	if err := e.meta.Get(&s, `SELECT * FROM log_streams WHERE group_name = ? AND stream_name = ?`, group, stream); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("log stream", stream))
	}
	if limit <= 0 {
		limit = 10000
	}
	var out []LogEvent
	if err := e.meta.Select(&out,
		`SELECT * FROM log_events WHERE group_name = ? AND stream_name = ? ORDER BY timestamp, id LIMIT ?`,
		group, stream, limit); err != nil {
		return nil, dbErr(err, "get log events")
	}
	return out, nil
}

// FilterLogEvents returns a group's events whose message contains the
// filter substring; an empty filter matches all.
func (e *Engine) FilterLogEvents(group, filter string, limit int) ([]LogEvent, error) {
	if _, err := e.GetLogGroup(group); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10000
	}
	var out []LogEvent
	if err := e.meta.Select(&out,
		`SELECT * FROM log_events WHERE group_name = ? ORDER BY timestamp, id LIMIT ?`, group, limit); err != nil {
		return nil, dbErr(err, "filter log events")
	}
	if filter == "" {
		return out, nil
	}
	filtered := out[:0]
	for _, ev := range out {
		if strings.Contains(ev.Message, filter) {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}
