package engine

import (
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/events"
	"localcloud/pkg/arn"
)

// DefaultBus always exists; PutEvents with no bus name lands there.
const DefaultBus = "default"

// CreateEventBus creates a named bus.
func (e *Engine) CreateEventBus(name string) (*Bus, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("event bus name must not be empty")
	}
	var existing Bus
	if err := e.meta.Get(&existing, `SELECT * FROM event_buses WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("event bus", name)
	}
	b := &Bus{Name: name, ARN: arn.EventBus(e.region, name), CreatedAt: e.nowNS()}
	if _, err := e.meta.Exec(`INSERT INTO event_buses (name, arn, created_at) VALUES (?, ?, ?)`, b.Name, b.ARN, b.CreatedAt); err != nil {
		return nil, dbErr(err, "create event bus")
	}
	return b, nil
}

// GetEventBus returns a bus row. The default bus is implicit and always
// resolves.
func (e *Engine) GetEventBus(name string) (*Bus, error) {
	if name == "" {
		name = DefaultBus
	}
	var b Bus
	if err := e.meta.Get(&b, `SELECT * FROM event_buses WHERE name = ?`, name); err != nil {
		if name == DefaultBus {
			return &Bus{Name: DefaultBus, ARN: arn.EventBus(e.region, DefaultBus)}, nil
		}
		return nil, notFoundOr(err, apperr.NotFound("event bus", name))
	}
	return &b, nil
}

// ListEventBuses returns all explicitly created buses.
func (e *Engine) ListEventBuses() ([]Bus, error) {
	var out []Bus
	if err := e.meta.Select(&out, `SELECT * FROM event_buses ORDER BY name`); err != nil {
		return nil, dbErr(err, "list event buses")
	}
	return out, nil
}

// DeleteEventBus removes a bus with its rules and targets.
func (e *Engine) DeleteEventBus(name string) error {
	if name == DefaultBus {
		return apperr.InvalidRequest("the default event bus cannot be deleted")
	}
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM event_buses WHERE name = ?`, name)
		if err != nil {
			return dbErr(err, "delete event bus")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("event bus", name)
		}
		if _, err := tx.Exec(`DELETE FROM event_rules WHERE bus = ?`, name); err != nil {
			return dbErr(err, "delete bus rules")
		}
		if _, err := tx.Exec(`DELETE FROM event_targets WHERE bus = ?`, name); err != nil {
			return dbErr(err, "delete bus targets")
		}
		return nil
	})
}

// PutRule upserts a rule by (bus, name). The pattern, when present, must be
// valid JSON.
func (e *Engine) PutRule(bus, name, pattern, schedule, state, description string) (*Rule, error) {
	if bus == "" {
		bus = DefaultBus
	}
	if name == "" {
		return nil, apperr.InvalidArgument("rule name must not be empty")
	}
	if pattern != "" && !json.Valid([]byte(pattern)) {
		return nil, apperr.InvalidArgument("event pattern is not valid JSON")
	}
	if state == "" {
		state = "ENABLED"
	}
	if state != "ENABLED" && state != "DISABLED" {
		return nil, apperr.InvalidArgument("invalid rule state %q", state)
	}
	if _, err := e.GetEventBus(bus); err != nil {
		return nil, err
	}
	r := &Rule{
		Bus:         bus,
		Name:        name,
		ARN:         arn.Rule(e.region, bus, name),
		Pattern:     pattern,
		Schedule:    schedule,
		State:       state,
		Description: description,
	}
	_, err := e.meta.Exec(
		`INSERT INTO event_rules (bus, name, arn, pattern, schedule, state, description) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (bus, name) DO UPDATE SET pattern = excluded.pattern, schedule = excluded.schedule, state = excluded.state, description = excluded.description`,
		r.Bus, r.Name, r.ARN, r.Pattern, r.Schedule, r.State, r.Description)
	if err != nil {
		return nil, dbErr(err, "put rule")
	}
	return r, nil
}

// GetRule returns one rule.
func (e *Engine) GetRule(bus, name string) (*Rule, error) {
	if bus == "" {
		bus = DefaultBus
	}
	var r Rule
	if err := e.meta.Get(&r, `SELECT * FROM event_rules WHERE bus = ? AND name = ?`, bus, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("rule", name))
	}
	return &r, nil
}

// ListRules returns a bus's rules.
func (e *Engine) ListRules(bus string) ([]Rule, error) {
	if bus == "" {
		bus = DefaultBus
	}
	var out []Rule
	if err := e.meta.Select(&out, `SELECT * FROM event_rules WHERE bus = ? ORDER BY name`, bus); err != nil {
		return nil, dbErr(err, "list rules")
	}
	return out, nil
}

// DeleteRule removes a rule and its targets.
func (e *Engine) DeleteRule(bus, name string) error {
	if bus == "" {
		bus = DefaultBus
	}
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM event_rules WHERE bus = ? AND name = ?`, bus, name)
		if err != nil {
			return dbErr(err, "delete rule")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("rule", name)
		}
		if _, err := tx.Exec(`DELETE FROM event_targets WHERE bus = ? AND rule = ?`, bus, name); err != nil {
			return dbErr(err, "delete rule targets")
		}
		return nil
	})
}

// SetRuleState enables or disables a rule.
func (e *Engine) SetRuleState(bus, name, state string) error {
	if _, err := e.GetRule(bus, name); err != nil {
		return err
	}
	if bus == "" {
		bus = DefaultBus
	}
	if _, err := e.meta.Exec(`UPDATE event_rules SET state = ? WHERE bus = ? AND name = ?`, state, bus, name); err != nil {
		return dbErr(err, "set rule state")
	}
	return nil
}

// PutTargets upserts targets by (bus, rule, target id).
func (e *Engine) PutTargets(bus, rule string, targets []Target) error {
	if bus == "" {
		bus = DefaultBus
	}
	if _, err := e.GetRule(bus, rule); err != nil {
		return err
	}
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		for _, t := range targets {
			if t.TargetID == "" || t.ARN == "" {
				return apperr.InvalidArgument("targets require Id and Arn")
			}
			if _, err := tx.Exec(
				`INSERT INTO event_targets (bus, rule, target_id, arn, input) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (bus, rule, target_id) DO UPDATE SET arn = excluded.arn, input = excluded.input`,
				bus, rule, t.TargetID, t.ARN, t.Input); err != nil {
				return dbErr(err, "put target")
			}
		}
		return nil
	})
}

// RemoveTargets removes targets by id.
func (e *Engine) RemoveTargets(bus, rule string, ids []string) error {
	if bus == "" {
		bus = DefaultBus
	}
	for _, id := range ids {
		if _, err := e.meta.Exec(`DELETE FROM event_targets WHERE bus = ? AND rule = ? AND target_id = ?`, bus, rule, id); err != nil {
			return dbErr(err, "remove target")
		}
	}
	return nil
}

// ListTargets returns the targets of a rule.
func (e *Engine) ListTargets(bus, rule string) ([]Target, error) {
	if bus == "" {
		bus = DefaultBus
	}
	var out []Target
	if err := e.meta.Select(&out, `SELECT * FROM event_targets WHERE bus = ? AND rule = ? ORDER BY target_id`, bus, rule); err != nil {
		return nil, dbErr(err, "list targets")
	}
	return out, nil
}

// RecordEvent appends the event to history, then synchronously evaluates
// every ENABLED rule on the bus and dispatches to matched targets before
// returning. Dispatch failures are logged and never fail the publication.
func (e *Engine) RecordEvent(bus, source, detailType, detail string, resources []string) (string, error) {
	if bus == "" {
		bus = DefaultBus
	}
	if detail == "" {
		detail = "{}"
	}
	if !json.Valid([]byte(detail)) {
		return "", apperr.InvalidArgument("event detail is not valid JSON")
	}
	if _, err := e.GetEventBus(bus); err != nil {
		return "", err
	}

	resJSON := "[]"
	if len(resources) > 0 {
		raw, _ := json.Marshal(resources)
		resJSON = string(raw)
	}
	entry := HistoryEntry{
		ID:         arn.NewID(),
		Bus:        bus,
		Source:     source,
		DetailType: detailType,
		Detail:     detail,
		Resources:  resJSON,
		RecordedAt: e.nowNS(),
	}
	if _, err := e.meta.Exec(
		`INSERT INTO event_history (id, bus, source, detail_type, detail, resources, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Bus, entry.Source, entry.DetailType, entry.Detail, entry.Resources, entry.RecordedAt); err != nil {
		return "", dbErr(err, "record event")
	}

	ev := events.Event{
		ID:         entry.ID,
		Source:     source,
		DetailType: detailType,
		Detail:     detail,
		Resources:  resources,
		Time:       e.now(),
		Region:     e.region,
		Account:    arn.AccountID,
	}

	rules, err := e.ListRules(bus)
	if err != nil {
		e.logger.Warn("rule lookup failed during dispatch", zap.String("bus", bus), zap.Error(err))
		return entry.ID, nil
	}
	for _, r := range rules {
		if r.State != "ENABLED" {
			continue
		}
		if !events.Match(r.Pattern, ev) {
			continue
		}
		targets, err := e.ListTargets(bus, r.Name)
		if err != nil {
			e.logger.Warn("target lookup failed during dispatch", zap.String("rule", r.Name), zap.Error(err))
			continue
		}
		for _, t := range targets {
			e.dispatchTarget(ev, r, t)
		}
	}
	return entry.ID, nil
}

// dispatchTarget synthesizes the target-type-specific delivery.
func (e *Engine) dispatchTarget(ev events.Event, r Rule, t Target) {
	switch {
	case arn.QueueNameFromARN(t.ARN) != "":
		queue := arn.QueueNameFromARN(t.ARN)
		body, err := events.BuildEnvelope(ev)
		if err != nil {
			e.logger.Warn("envelope build failed", zap.String("target", t.TargetID), zap.Error(err))
			return
		}
		if _, err := e.SendMessage(queue, body); err != nil {
			e.logger.Warn("event delivery to queue failed",
				zap.String("rule", r.Name),
				zap.String("queue", queue),
				zap.Error(err))
		}
	case strings.Contains(t.ARN, ":sns:"), strings.Contains(t.ARN, ":lambda:"):
		e.logger.Info("event target delivery stubbed",
			zap.String("rule", r.Name),
			zap.String("target_arn", t.ARN))
	default:
		e.logger.Warn("unknown event target type",
			zap.String("rule", r.Name),
			zap.String("target_arn", t.ARN))
	}
}

// ListEventHistory returns recorded events for a bus, newest first.
func (e *Engine) ListEventHistory(bus string, limit int) ([]HistoryEntry, error) {
	if bus == "" {
		bus = DefaultBus
	}
	if limit <= 0 {
		limit = 100
	}
	var out []HistoryEntry
	if err := e.meta.Select(&out, `SELECT * FROM event_history WHERE bus = ? ORDER BY recorded_at DESC LIMIT ?`, bus, limit); err != nil {
		return nil, dbErr(err, "list event history")
	}
	return out, nil
}
