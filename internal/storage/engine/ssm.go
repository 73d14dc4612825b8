package engine

import (
	"localcloud/internal/apperr"
)

// PutParameter upserts an SSM parameter, bumping the version on overwrite.
// overwrite=false on an existing name fails AlreadyExists.
func (e *Engine) PutParameter(name, paramType, value string, overwrite bool) (*SSMParameter, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("parameter name must not be empty")
	}
	if paramType == "" {
		paramType = "String"
	}
	existing, err := e.GetParameter(name)
	if err == nil && !overwrite {
		return nil, apperr.AlreadyExists("parameter", name)
	}
	p := &SSMParameter{Name: name, Type: paramType, Value: value, Version: 1, UpdatedAt: e.nowNS()}
	if existing != nil {
		p.Version = existing.Version + 1
	}
	if _, err := e.meta.Exec(
		`INSERT INTO ssm_parameters (name, type, value, version, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET type = excluded.type, value = excluded.value, version = excluded.version, updated_at = excluded.updated_at`,
		p.Name, p.Type, p.Value, p.Version, p.UpdatedAt); err != nil {
		return nil, dbErr(err, "put parameter")
	}
	return p, nil
}

// GetParameter returns one parameter.
func (e *Engine) GetParameter(name string) (*SSMParameter, error) {
	var p SSMParameter
	if err := e.meta.Get(&p, `SELECT * FROM ssm_parameters WHERE name = ?`, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("parameter", name))
	}
	return &p, nil
}

// GetParameters returns the parameters that exist among names, in order.
func (e *Engine) GetParameters(names []string) ([]SSMParameter, []string, error) {
	var found []SSMParameter
	var missing []string
	for _, name := range names {
		p, err := e.GetParameter(name)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				missing = append(missing, name)
				continue
			}
			return nil, nil, err
		}
		found = append(found, *p)
	}
	return found, missing, nil
}

// DeleteParameter removes a parameter.
func (e *Engine) DeleteParameter(name string) error {
	n, err := e.meta.Exec(`DELETE FROM ssm_parameters WHERE name = ?`, name)
	if err != nil {
		return dbErr(err, "delete parameter")
	}
	if n == 0 {
		return apperr.NotFound("parameter", name)
	}
	return nil
}

// DescribeParameters lists parameters, optionally by name prefix.
func (e *Engine) DescribeParameters(prefix string) ([]SSMParameter, error) {
	var out []SSMParameter
	query := `SELECT * FROM ssm_parameters`
	args := []any{}
	if prefix != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, likeEscape(prefix)+"%")
	}
	query += ` ORDER BY name`
	if err := e.meta.Select(&out, query, args...); err != nil {
		return nil, dbErr(err, "describe parameters")
	}
	return out, nil
}
