package engine

import (
	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

// CreateTargetGroup creates a load-balancer target group.
func (e *Engine) CreateTargetGroup(name, protocol string, port int) (*TargetGroup, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("target group name must not be empty")
	}
	if protocol == "" {
		protocol = "HTTP"
	}
	if port <= 0 {
		port = 80
	}
	var existing TargetGroup
	if err := e.meta.Get(&existing, `SELECT * FROM target_groups WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("target group", name)
	}
	tg := &TargetGroup{
		ID:        "tg-" + arn.NewID()[:12],
		Name:      name,
		Protocol:  protocol,
		Port:      port,
		CreatedAt: e.nowNS(),
	}
	if _, err := e.meta.Exec(
		`INSERT INTO target_groups (id, name, protocol, port, created_at) VALUES (?, ?, ?, ?, ?)`,
		tg.ID, tg.Name, tg.Protocol, tg.Port, tg.CreatedAt); err != nil {
		return nil, dbErr(err, "create target group")
	}
	return tg, nil
}

// GetTargetGroup resolves a group by id or name.
func (e *Engine) GetTargetGroup(idOrName string) (*TargetGroup, error) {
	var tg TargetGroup
	if err := e.meta.Get(&tg, `SELECT * FROM target_groups WHERE id = ? OR name = ?`, idOrName, idOrName); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("target group", idOrName))
	}
	return &tg, nil
}

// ListTargetGroups returns all target groups.
func (e *Engine) ListTargetGroups() ([]TargetGroup, error) {
	var out []TargetGroup
	if err := e.meta.Select(&out, `SELECT * FROM target_groups ORDER BY name`); err != nil {
		return nil, dbErr(err, "list target groups")
	}
	return out, nil
}

// DeleteTargetGroup removes a group and its registrations. Groups still
// referenced by a listener cannot be deleted.
func (e *Engine) DeleteTargetGroup(idOrName string) error {
	tg, err := e.GetTargetGroup(idOrName)
	if err != nil {
		return err
	}
	var count int
	if err := e.meta.Get(&count, `SELECT COUNT(*) FROM listeners WHERE target_group_id = ?`, tg.ID); err != nil {
		return dbErr(err, "count listeners")
	}
	if count > 0 {
		return apperr.InvalidRequest("target group is in use by a listener")
	}
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM target_groups WHERE id = ?`, tg.ID); err != nil {
			return dbErr(err, "delete target group")
		}
		if _, err := tx.Exec(`DELETE FROM lb_targets WHERE group_id = ?`, tg.ID); err != nil {
			return dbErr(err, "delete targets")
		}
		return nil
	})
}

// RegisterTarget adds or replaces a backend in a group.
func (e *Engine) RegisterTarget(groupIDOrName, targetID, host string, port, weight int) (*LBTarget, error) {
	tg, err := e.GetTargetGroup(groupIDOrName)
	if err != nil {
		return nil, err
	}
	if host == "" || port <= 0 {
		return nil, apperr.InvalidArgument("target host and port are required")
	}
	if targetID == "" {
		targetID = host
	}
	if weight <= 0 {
		weight = 1
	}
	t := &LBTarget{GroupID: tg.ID, TargetID: targetID, Host: host, Port: port, Weight: weight, Healthy: true}
	if _, err := e.meta.Exec(
		`INSERT INTO lb_targets (group_id, target_id, host, port, weight, healthy) VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT (group_id, target_id) DO UPDATE SET host = excluded.host, port = excluded.port, weight = excluded.weight, healthy = 1`,
		t.GroupID, t.TargetID, t.Host, t.Port, t.Weight); err != nil {
		return nil, dbErr(err, "register target")
	}
	return t, nil
}

// DeregisterTarget removes a backend from a group.
func (e *Engine) DeregisterTarget(groupIDOrName, targetID string) error {
	tg, err := e.GetTargetGroup(groupIDOrName)
	if err != nil {
		return err
	}
	n, err := e.meta.Exec(`DELETE FROM lb_targets WHERE group_id = ? AND target_id = ?`, tg.ID, targetID)
	if err != nil {
		return dbErr(err, "deregister target")
	}
	if n == 0 {
		return apperr.NotFound("target", targetID)
	}
	return nil
}

// SetTargetHealth flips a backend's health flag.
func (e *Engine) SetTargetHealth(groupIDOrName, targetID string, healthy bool) error {
	tg, err := e.GetTargetGroup(groupIDOrName)
	if err != nil {
		return err
	}
	n, err := e.meta.Exec(`UPDATE lb_targets SET healthy = ? WHERE group_id = ? AND target_id = ?`, healthy, tg.ID, targetID)
	if err != nil {
		return dbErr(err, "set target health")
	}
	if n == 0 {
		return apperr.NotFound("target", targetID)
	}
	return nil
}

// ListGroupTargets returns a group's registered backends.
func (e *Engine) ListGroupTargets(groupIDOrName string) ([]LBTarget, error) {
	tg, err := e.GetTargetGroup(groupIDOrName)
	if err != nil {
		return nil, err
	}
	var out []LBTarget
	if err := e.meta.Select(&out, `SELECT * FROM lb_targets WHERE group_id = ? ORDER BY target_id`, tg.ID); err != nil {
		return nil, dbErr(err, "list targets")
	}
	return out, nil
}

// HealthyTargets returns only the healthy backends of a group.
func (e *Engine) HealthyTargets(groupID string) ([]LBTarget, error) {
	var out []LBTarget
	if err := e.meta.Select(&out,
		`SELECT * FROM lb_targets WHERE group_id = ? AND healthy = 1 ORDER BY target_id`, groupID); err != nil {
		return nil, dbErr(err, "healthy targets")
	}
	return out, nil
}

// CreateListener binds a local port to a target group. One listener per
// port.
func (e *Engine) CreateListener(port int, groupIDOrName, protocol string) (*Listener, error) {
	if port <= 0 || port > 65535 {
		return nil, apperr.InvalidArgument("listener port must be 1-65535")
	}
	tg, err := e.GetTargetGroup(groupIDOrName)
	if err != nil {
		return nil, err
	}
	if protocol == "" {
		protocol = "HTTP"
	}
	var existing Listener
	if err := e.meta.Get(&existing, `SELECT * FROM listeners WHERE port = ?`, port); err == nil {
		return nil, apperr.AlreadyExists("listener", existing.ID)
	}
	l := &Listener{
		ID:            "lsn-" + arn.NewID()[:12],
		Port:          port,
		TargetGroupID: tg.ID,
		Protocol:      protocol,
		CreatedAt:     e.nowNS(),
	}
	if _, err := e.meta.Exec(
		`INSERT INTO listeners (id, port, target_group_id, protocol, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Port, l.TargetGroupID, l.Protocol, l.CreatedAt); err != nil {
		return nil, dbErr(err, "create listener")
	}
	return l, nil
}

// GetListener returns a listener by id.
func (e *Engine) GetListener(id string) (*Listener, error) {
	var l Listener
	if err := e.meta.Get(&l, `SELECT * FROM listeners WHERE id = ?`, id); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("listener", id))
	}
	return &l, nil
}

// ListListeners returns all listeners ordered by port.
func (e *Engine) ListListeners() ([]Listener, error) {
	var out []Listener
	if err := e.meta.Select(&out, `SELECT * FROM listeners ORDER BY port`); err != nil {
		return nil, dbErr(err, "list listeners")
	}
	return out, nil
}

// DeleteListener removes a listener.
func (e *Engine) DeleteListener(id string) error {
	n, err := e.meta.Exec(`DELETE FROM listeners WHERE id = ?`, id)
	if err != nil {
		return dbErr(err, "delete listener")
	}
	if n == 0 {
		return apperr.NotFound("listener", id)
	}
	return nil
}
