package engine

import (
	"encoding/json"
	"regexp"

	"localcloud/internal/apperr"
)

// Lowercase letters, digits, dots and dashes; must start and end with a
// letter or digit. Single-character names are allowed.
var bucketNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]{0,61}[a-z0-9])?$`)

type createBucketInput struct {
	Name string `validate:"required,max=63,bucket_name"`
}

// CreateBucket creates a bucket.
func (e *Engine) CreateBucket(name, region string) (*Bucket, error) {
	if err := e.validate.Struct(createBucketInput{Name: name}); err != nil {
		return nil, apperr.InvalidArgument("invalid bucket name %q", name)
	}
	if region == "" {
		region = e.region
	}
	if _, err := e.GetBucket(name); err == nil {
		return nil, apperr.BucketExists(name)
	}
	b := &Bucket{
		Name:       name,
		Region:     region,
		Versioning: VersioningDisabled,
		CreatedAt:  e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO buckets (name, region, versioning, created_at) VALUES (?, ?, ?, ?)`,
		b.Name, b.Region, b.Versioning, b.CreatedAt)
	if err != nil {
		return nil, dbErr(err, "create bucket")
	}
	return b, nil
}

// GetBucket returns a bucket row.
func (e *Engine) GetBucket(name string) (*Bucket, error) {
	var b Bucket
	err := e.meta.Get(&b, `SELECT * FROM buckets WHERE name = ?`, name)
	if err != nil {
		return nil, notFoundOr(err, apperr.NoSuchBucket(name))
	}
	return &b, nil
}

// ListBuckets returns all buckets ordered by name.
func (e *Engine) ListBuckets() ([]Bucket, error) {
	var out []Bucket
	if err := e.meta.Select(&out, `SELECT * FROM buckets ORDER BY name`); err != nil {
		return nil, dbErr(err, "list buckets")
	}
	return out, nil
}

// DeleteBucket removes an empty bucket. Any object row, including delete
// markers and old versions, blocks deletion.
func (e *Engine) DeleteBucket(name string) error {
	if _, err := e.GetBucket(name); err != nil {
		return err
	}
	var count int
	if err := e.meta.Get(&count, `SELECT COUNT(*) FROM objects WHERE bucket = ?`, name); err != nil {
		return dbErr(err, "count objects")
	}
	if count > 0 {
		return apperr.BucketNotEmpty(name)
	}
	if _, err := e.meta.Exec(`DELETE FROM buckets WHERE name = ?`, name); err != nil {
		return dbErr(err, "delete bucket")
	}
	return nil
}

// PutBucketVersioning sets the versioning state: Enabled or Suspended.
// Disabled exists only as the initial state.
func (e *Engine) PutBucketVersioning(name, state string) error {
	if state != VersioningEnabled && state != VersioningSuspended {
		return apperr.InvalidArgument("invalid versioning state %q", state)
	}
	if _, err := e.GetBucket(name); err != nil {
		return err
	}
	if _, err := e.meta.Exec(`UPDATE buckets SET versioning = ? WHERE name = ?`, state, name); err != nil {
		return dbErr(err, "set versioning")
	}
	return nil
}

// GetBucketVersioning returns the versioning state of a bucket.
func (e *Engine) GetBucketVersioning(name string) (string, error) {
	b, err := e.GetBucket(name)
	if err != nil {
		return "", err
	}
	return b.Versioning, nil
}

// PutBucketPolicy stores a bucket policy document. The document must be
// valid JSON.
func (e *Engine) PutBucketPolicy(name, policy string) error {
	if !json.Valid([]byte(policy)) {
		return apperr.New(apperr.KindMalformedPolicy, "bucket policy is not valid JSON")
	}
	if _, err := e.GetBucket(name); err != nil {
		return err
	}
	if _, err := e.meta.Exec(`UPDATE buckets SET policy = ? WHERE name = ?`, policy, name); err != nil {
		return dbErr(err, "put bucket policy")
	}
	return nil
}

// GetBucketPolicy returns the stored policy, failing NoSuchBucketPolicy when
// none was ever put.
func (e *Engine) GetBucketPolicy(name string) (string, error) {
	b, err := e.GetBucket(name)
	if err != nil {
		return "", err
	}
	if b.Policy == nil {
		return "", apperr.New(apperr.KindNoSuchBucketPolicy, "bucket %q has no policy", name)
	}
	return *b.Policy, nil
}

// DeleteBucketPolicy removes the policy if present.
func (e *Engine) DeleteBucketPolicy(name string) error {
	if _, err := e.GetBucket(name); err != nil {
		return err
	}
	if _, err := e.meta.Exec(`UPDATE buckets SET policy = NULL WHERE name = ?`, name); err != nil {
		return dbErr(err, "delete bucket policy")
	}
	return nil
}
