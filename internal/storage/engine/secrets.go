package engine

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

const stageCurrent = `["AWSCURRENT"]`

// CreateSecret creates a secret, optionally with an initial value.
func (e *Engine) CreateSecret(name, description string, stringValue *string, binaryValue []byte) (*Secret, string, error) {
	if name == "" {
		return nil, "", apperr.InvalidArgument("secret name must not be empty")
	}
	var existing Secret
	if err := e.meta.Get(&existing, `SELECT * FROM secrets WHERE name = ?`, name); err == nil {
		return nil, "", apperr.AlreadyExists("secret", name)
	}
	s := &Secret{
		ARN:         arn.Secret(e.region, name),
		Name:        name,
		Description: description,
		CreatedAt:   e.nowNS(),
	}
	if _, err := e.meta.Exec(
		`INSERT INTO secrets (arn, name, description, created_at) VALUES (?, ?, ?, ?)`,
		s.ARN, s.Name, s.Description, s.CreatedAt); err != nil {
		return nil, "", dbErr(err, "create secret")
	}
	versionID := ""
	if stringValue != nil || binaryValue != nil {
		_, vid, err := e.PutSecretValue(name, stringValue, binaryValue)
		if err != nil {
			return nil, "", err
		}
		versionID = vid
	}
	return s, versionID, nil
}

// GetSecret resolves a secret by name or ARN.
func (e *Engine) GetSecret(secretID string) (*Secret, error) {
	var s Secret
	var err error
	if strings.HasPrefix(secretID, "arn:") {
		err = e.meta.Get(&s, `SELECT * FROM secrets WHERE arn = ?`, secretID)
	} else {
		err = e.meta.Get(&s, `SELECT * FROM secrets WHERE name = ?`, secretID)
	}
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("secret", secretID))
	}
	return &s, nil
}

// ListSecrets returns all secrets ordered by name.
func (e *Engine) ListSecrets() ([]Secret, error) {
	var out []Secret
	if err := e.meta.Select(&out, `SELECT * FROM secrets ORDER BY name`); err != nil {
		return nil, dbErr(err, "list secrets")
	}
	return out, nil
}

// DeleteSecret removes a secret and its versions.
func (e *Engine) DeleteSecret(secretID string) (*Secret, error) {
	s, err := e.GetSecret(secretID)
	if err != nil {
		return nil, err
	}
	err = e.meta.Tx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM secrets WHERE arn = ?`, s.ARN); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM secret_versions WHERE secret_arn = ?`, s.ARN)
		return err
	})
	if err != nil {
		return nil, dbErr(err, "delete secret")
	}
	return s, nil
}

// UpdateSecret updates the description.
func (e *Engine) UpdateSecret(secretID, description string) (*Secret, error) {
	s, err := e.GetSecret(secretID)
	if err != nil {
		return nil, err
	}
	if _, err := e.meta.Exec(`UPDATE secrets SET description = ? WHERE arn = ?`, description, s.ARN); err != nil {
		return nil, dbErr(err, "update secret")
	}
	s.Description = description
	return s, nil
}

// PutSecretValue stores a new version and makes it AWSCURRENT, downgrading
// every prior version's stages to the empty list.
func (e *Engine) PutSecretValue(secretID string, stringValue *string, binaryValue []byte) (string, string, error) {
	s, err := e.GetSecret(secretID)
	if err != nil {
		return "", "", err
	}
	if stringValue == nil && binaryValue == nil {
		return "", "", apperr.InvalidArgument("either SecretString or SecretBinary is required")
	}
	versionID := arn.NewID()
	err = e.meta.Tx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`UPDATE secret_versions SET version_stages = '[]' WHERE secret_arn = ?`, s.ARN); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO secret_versions (secret_arn, version_id, string_value, binary_value, version_stages, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.ARN, versionID, stringValue, binaryValue, stageCurrent, e.nowNS())
		return err
	})
	if err != nil {
		return "", "", dbErr(err, "put secret value")
	}
	return s.ARN, versionID, nil
}

// GetSecretValue returns a version's value: the AWSCURRENT version when no
// version id is given, the exact version otherwise.
func (e *Engine) GetSecretValue(secretID, versionID string) (*Secret, *SecretVersion, error) {
	s, err := e.GetSecret(secretID)
	if err != nil {
		return nil, nil, err
	}
	var v SecretVersion
	if versionID == "" {
		err = e.meta.Get(&v,
			`SELECT * FROM secret_versions WHERE secret_arn = ? AND version_stages LIKE '%AWSCURRENT%'`, s.ARN)
	} else {
		err = e.meta.Get(&v,
			`SELECT * FROM secret_versions WHERE secret_arn = ? AND version_id = ?`, s.ARN, versionID)
	}
	if err != nil {
		return nil, nil, notFoundOr(err, apperr.NotFound("secret version", secretID))
	}
	return s, &v, nil
}
