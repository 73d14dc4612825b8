package engine

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

// CreateUserPool creates a Cognito-style user pool.
func (e *Engine) CreateUserPool(name string) (*UserPool, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("user pool name must not be empty")
	}
	p := &UserPool{
		ID:        fmt.Sprintf("%s_%s", e.region, arn.NewID()[:8]),
		Name:      name,
		CreatedAt: e.nowNS(),
	}
	if _, err := e.meta.Exec(`INSERT INTO user_pools (id, name, created_at) VALUES (?, ?, ?)`, p.ID, p.Name, p.CreatedAt); err != nil {
		return nil, dbErr(err, "create user pool")
	}
	return p, nil
}

// GetUserPool returns a pool by id.
func (e *Engine) GetUserPool(id string) (*UserPool, error) {
	var p UserPool
	if err := e.meta.Get(&p, `SELECT * FROM user_pools WHERE id = ?`, id); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("user pool", id))
	}
	return &p, nil
}

// ListUserPools returns all pools.
func (e *Engine) ListUserPools() ([]UserPool, error) {
	var out []UserPool
	if err := e.meta.Select(&out, `SELECT * FROM user_pools ORDER BY created_at`); err != nil {
		return nil, dbErr(err, "list user pools")
	}
	return out, nil
}

// DeleteUserPool removes a pool with its users, attributes, and groups.
func (e *Engine) DeleteUserPool(id string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM user_pools WHERE id = ?`, id)
		if err != nil {
			return dbErr(err, "delete user pool")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("user pool", id)
		}
		for _, table := range []string{"users", "user_attributes", "user_groups", "user_group_members"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE pool_id = ?`, id); err != nil {
				return dbErr(err, "delete pool children")
			}
		}
		return nil
	})
}

// AdminCreateUser creates a user with its attributes.
func (e *Engine) AdminCreateUser(poolID, username string, attributes map[string]string) (*User, error) {
	if _, err := e.GetUserPool(poolID); err != nil {
		return nil, err
	}
	if username == "" {
		return nil, apperr.InvalidArgument("username must not be empty")
	}
	if _, err := e.AdminGetUser(poolID, username); err == nil {
		return nil, apperr.AlreadyExists("user", username)
	}
	u := &User{
		PoolID:    poolID,
		Username:  username,
		Status:    "FORCE_CHANGE_PASSWORD",
		Enabled:   true,
		CreatedAt: e.nowNS(),
	}
	err := e.meta.Tx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO users (pool_id, username, status, enabled, created_at) VALUES (?, ?, ?, 1, ?)`,
			u.PoolID, u.Username, u.Status, u.CreatedAt); err != nil {
			return err
		}
		for name, value := range attributes {
			if _, err := tx.Exec(
				`INSERT INTO user_attributes (pool_id, username, name, value) VALUES (?, ?, ?, ?)`,
				poolID, username, name, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "create user")
	}
	return u, nil
}

// AdminGetUser returns a user row.
func (e *Engine) AdminGetUser(poolID, username string) (*User, error) {
	var u User
	if err := e.meta.Get(&u, `SELECT * FROM users WHERE pool_id = ? AND username = ?`, poolID, username); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("user", username))
	}
	return &u, nil
}

// UserAttributes returns a user's attributes ordered by name.
func (e *Engine) UserAttributes(poolID, username string) ([]UserAttribute, error) {
	var out []UserAttribute
	if err := e.meta.Select(&out,
		`SELECT * FROM user_attributes WHERE pool_id = ? AND username = ? ORDER BY name`, poolID, username); err != nil {
		return nil, dbErr(err, "list user attributes")
	}
	return out, nil
}

// ListUsers returns a pool's users.
func (e *Engine) ListUsers(poolID string) ([]User, error) {
	if _, err := e.GetUserPool(poolID); err != nil {
		return nil, err
	}
	var out []User
	if err := e.meta.Select(&out, `SELECT * FROM users WHERE pool_id = ? ORDER BY username`, poolID); err != nil {
		return nil, dbErr(err, "list users")
	}
	return out, nil
}

// AdminDeleteUser removes a user with attributes and group memberships.
func (e *Engine) AdminDeleteUser(poolID, username string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM users WHERE pool_id = ? AND username = ?`, poolID, username)
		if err != nil {
			return dbErr(err, "delete user")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("user", username)
		}
		if _, err := tx.Exec(`DELETE FROM user_attributes WHERE pool_id = ? AND username = ?`, poolID, username); err != nil {
			return dbErr(err, "delete user attributes")
		}
		if _, err := tx.Exec(`DELETE FROM user_group_members WHERE pool_id = ? AND username = ?`, poolID, username); err != nil {
			return dbErr(err, "delete user memberships")
		}
		return nil
	})
}

// CreateGroup creates a group in a pool.
func (e *Engine) CreateGroup(poolID, groupName, description string) (*Group, error) {
	if _, err := e.GetUserPool(poolID); err != nil {
		return nil, err
	}
	var existing Group
	if err := e.meta.Get(&existing, `SELECT * FROM user_groups WHERE pool_id = ? AND group_name = ?`, poolID, groupName); err == nil {
		return nil, apperr.AlreadyExists("group", groupName)
	}
	g := &Group{PoolID: poolID, GroupName: groupName, Description: description, CreatedAt: e.nowNS()}
	if _, err := e.meta.Exec(
		`INSERT INTO user_groups (pool_id, group_name, description, created_at) VALUES (?, ?, ?, ?)`,
		g.PoolID, g.GroupName, g.Description, g.CreatedAt); err != nil {
		return nil, dbErr(err, "create group")
	}
	return g, nil
}

// AdminAddUserToGroup records a membership; re-adding is a no-op.
func (e *Engine) AdminAddUserToGroup(poolID, username, groupName string) error {
	if _, err := e.AdminGetUser(poolID, username); err != nil {
		return err
	}
	var g Group
	if err := e.meta.Get(&g, `SELECT * FROM user_groups WHERE pool_id = ? AND group_name = ?`, poolID, groupName); err != nil {
		return notFoundOr(err, apperr.NotFound("group", groupName))
	}
	if _, err := e.meta.Exec(
		`INSERT INTO user_group_members (pool_id, group_name, username) VALUES (?, ?, ?)
		 ON CONFLICT (pool_id, group_name, username) DO NOTHING`,
		poolID, groupName, username); err != nil {
		return dbErr(err, "add user to group")
	}
	return nil
}

// AdminListGroupsForUser returns the groups a user belongs to.
func (e *Engine) AdminListGroupsForUser(poolID, username string) ([]Group, error) {
	if _, err := e.AdminGetUser(poolID, username); err != nil {
		return nil, err
	}
	var out []Group
	if err := e.meta.Select(&out,
		`SELECT g.* FROM user_groups g
		 JOIN user_group_members m ON m.pool_id = g.pool_id AND m.group_name = g.group_name
		 WHERE m.pool_id = ? AND m.username = ? ORDER BY g.group_name`,
		poolID, username); err != nil {
		return nil, dbErr(err, "list groups for user")
	}
	return out, nil
}
