package engine

import (
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/blob"
	"localcloud/pkg/arn"
)

// nullVersion is the version id unversioned and suspended writes carry,
// mirroring S3's literal "null" version.
const nullVersion = "null"

// PutObject stores bytes under (bucket, key). The blob write happens before
// the metadata transaction; identical content is deduplicated by hash.
func (e *Engine) PutObject(bucket, key string, body []byte, contentType string, metadata map[string]string) (*Object, error) {
	b, err := e.GetBucket(bucket)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperr.InvalidArgument("object key must not be empty")
	}

	hash, err := e.blobs.Put(body)
	if err != nil {
		return nil, apperr.Internal(err, "write blob")
	}

	metaJSON := "{}"
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, apperr.InvalidArgument("unencodable object metadata")
		}
		metaJSON = string(raw)
	}

	obj := &Object{
		Bucket:        bucket,
		Key:           key,
		VersionID:     nullVersion,
		IsLatest:      true,
		ContentHash:   hash,
		ContentLength: int64(len(body)),
		ContentType:   contentType,
		ETag:          blob.ETag(hash),
		Metadata:      metaJSON,
		LastModified:  e.nowNS(),
	}

	err = e.meta.Tx(func(tx *sqlx.Tx) error {
		switch b.Versioning {
		case VersioningEnabled:
			obj.VersionID = arn.NewID()
			if _, err := tx.Exec(`UPDATE objects SET is_latest = 0 WHERE bucket = ? AND key = ? AND is_latest = 1`, bucket, key); err != nil {
				return err
			}
		case VersioningSuspended:
			// Suspended writes replace only the null version; real versions
			// stay addressable by version id.
			if _, err := tx.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ? AND version_id = ?`, bucket, key, nullVersion); err != nil {
				return err
			}
			if _, err := tx.Exec(`UPDATE objects SET is_latest = 0 WHERE bucket = ? AND key = ? AND is_latest = 1`, bucket, key); err != nil {
				return err
			}
		default:
			if _, err := tx.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
				return err
			}
		}
		_, err := tx.Exec(
			`INSERT INTO objects (bucket, key, version_id, is_latest, is_delete_marker, content_hash, content_length, content_type, etag, metadata, last_modified)
			 VALUES (?, ?, ?, 1, 0, ?, ?, ?, ?, ?, ?)`,
			obj.Bucket, obj.Key, obj.VersionID, obj.ContentHash, obj.ContentLength, obj.ContentType, obj.ETag, obj.Metadata, obj.LastModified)
		return err
	})
	if err != nil {
		return nil, dbErr(err, "put object")
	}
	return obj, nil
}

// StatObject returns object metadata without reading the blob. A selected
// delete marker fails NoSuchKey.
func (e *Engine) StatObject(bucket, key, versionID string) (*Object, error) {
	if _, err := e.GetBucket(bucket); err != nil {
		return nil, err
	}
	var obj Object
	var err error
	if versionID == "" {
		err = e.meta.Get(&obj, `SELECT * FROM objects WHERE bucket = ? AND key = ? AND is_latest = 1`, bucket, key)
	} else {
		err = e.meta.Get(&obj, `SELECT * FROM objects WHERE bucket = ? AND key = ? AND version_id = ?`, bucket, key, versionID)
	}
	if err != nil {
		return nil, notFoundOr(err, apperr.NoSuchKey(bucket, key))
	}
	if obj.IsDeleteMarker {
		return nil, apperr.NoSuchKey(bucket, key)
	}
	return &obj, nil
}

// GetObject returns object metadata and content. The metadata lookup runs
// under the store lock; the blob read happens after it is released.
func (e *Engine) GetObject(bucket, key, versionID string) (*Object, []byte, error) {
	obj, err := e.StatObject(bucket, key, versionID)
	if err != nil {
		return nil, nil, err
	}
	body, err := e.blobs.Get(obj.ContentHash)
	if err != nil {
		return nil, nil, apperr.Internal(err, "read blob")
	}
	return obj, body, nil
}

// DeleteResult reports what a DeleteObject call did.
type DeleteResult struct {
	// VersionID of the inserted delete marker, or of the removed version.
	VersionID string
	// DeleteMarker is true when a marker was inserted or removed.
	DeleteMarker bool
}

// DeleteObject deletes an object. With versioning Enabled and no version id
// a delete marker is inserted; with a version id that exact row is removed;
// unversioned deletes remove every row for the key. Deleting a missing key
// without a version id succeeds, as on S3.
func (e *Engine) DeleteObject(bucket, key, versionID string) (*DeleteResult, error) {
	b, err := e.GetBucket(bucket)
	if err != nil {
		return nil, err
	}

	if versionID != "" {
		var obj Object
		if err := e.meta.Get(&obj, `SELECT * FROM objects WHERE bucket = ? AND key = ? AND version_id = ?`, bucket, key, versionID); err != nil {
			return nil, notFoundOr(err, apperr.NoSuchKey(bucket, key))
		}
		err = e.meta.Tx(func(tx *sqlx.Tx) error {
			if _, err := tx.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ? AND version_id = ?`, bucket, key, versionID); err != nil {
				return err
			}
			if obj.IsLatest {
				// Promote the most recent surviving version.
				_, err := tx.Exec(
					`UPDATE objects SET is_latest = 1 WHERE id = (
					   SELECT id FROM objects WHERE bucket = ? AND key = ? ORDER BY last_modified DESC, id DESC LIMIT 1)`,
					bucket, key)
				return err
			}
			return nil
		})
		if err != nil {
			return nil, dbErr(err, "delete object version")
		}
		return &DeleteResult{VersionID: versionID, DeleteMarker: obj.IsDeleteMarker}, nil
	}

	if b.Versioning == VersioningEnabled {
		marker := &Object{
			Bucket:         bucket,
			Key:            key,
			VersionID:      arn.NewID(),
			IsLatest:       true,
			IsDeleteMarker: true,
			LastModified:   e.nowNS(),
		}
		err = e.meta.Tx(func(tx *sqlx.Tx) error {
			if _, err := tx.Exec(`UPDATE objects SET is_latest = 0 WHERE bucket = ? AND key = ? AND is_latest = 1`, bucket, key); err != nil {
				return err
			}
			_, err := tx.Exec(
				`INSERT INTO objects (bucket, key, version_id, is_latest, is_delete_marker, content_hash, content_length, metadata, last_modified)
				 VALUES (?, ?, ?, 1, 1, '', 0, '{}', ?)`,
				marker.Bucket, marker.Key, marker.VersionID, marker.LastModified)
			return err
		})
		if err != nil {
			return nil, dbErr(err, "insert delete marker")
		}
		return &DeleteResult{VersionID: marker.VersionID, DeleteMarker: true}, nil
	}

	if _, err := e.meta.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		return nil, dbErr(err, "delete object")
	}
	return &DeleteResult{}, nil
}

// ListResult is the outcome of a ListObjectsV2-style listing.
type ListResult struct {
	Contents              []Object
	CommonPrefixes        []string
	IsTruncated           bool
	NextContinuationToken string
}

// ListObjects lists latest non-marker keys in lexical order with optional
// prefix, delimiter grouping, and continuation.
func (e *Engine) ListObjects(bucket, prefix, delimiter string, maxKeys int, continuationToken string) (*ListResult, error) {
	if _, err := e.GetBucket(bucket); err != nil {
		return nil, err
	}
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	query := `SELECT * FROM objects WHERE bucket = ? AND is_latest = 1 AND is_delete_marker = 0 AND key > ?`
	args := []any{bucket, continuationToken}
	if prefix != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, likeEscape(prefix)+"%")
	}
	query += ` ORDER BY key LIMIT ?`
	args = append(args, maxKeys+1)

	var rows []Object
	if err := e.meta.Select(&rows, query, args...); err != nil {
		return nil, dbErr(err, "list objects")
	}

	res := &ListResult{}
	if len(rows) > maxKeys {
		res.IsTruncated = true
		rows = rows[:maxKeys]
		res.NextContinuationToken = rows[len(rows)-1].Key
	}

	if delimiter == "" {
		res.Contents = rows
		return res, nil
	}

	seen := map[string]bool{}
	for _, obj := range rows {
		rest := strings.TrimPrefix(obj.Key, prefix)
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			cp := prefix + rest[:idx] + delimiter
			if !seen[cp] {
				seen[cp] = true
				res.CommonPrefixes = append(res.CommonPrefixes, cp)
			}
			continue
		}
		res.Contents = append(res.Contents, obj)
	}
	return res, nil
}

// ListObjectVersions returns every version row, delete markers included,
// ordered by key then newest first.
func (e *Engine) ListObjectVersions(bucket, prefix string) ([]Object, error) {
	if _, err := e.GetBucket(bucket); err != nil {
		return nil, err
	}
	query := `SELECT * FROM objects WHERE bucket = ?`
	args := []any{bucket}
	if prefix != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, likeEscape(prefix)+"%")
	}
	query += ` ORDER BY key, last_modified DESC, id DESC`
	var rows []Object
	if err := e.meta.Select(&rows, query, args...); err != nil {
		return nil, dbErr(err, "list object versions")
	}
	return rows, nil
}

// CopyObject copies a source object (optionally a specific version) to the
// destination key, re-using the source blob.
func (e *Engine) CopyObject(srcBucket, srcKey, srcVersion, dstBucket, dstKey string) (*Object, error) {
	src, body, err := e.GetObject(srcBucket, srcKey, srcVersion)
	if err != nil {
		return nil, err
	}
	var metadata map[string]string
	if src.Metadata != "" && src.Metadata != "{}" {
		_ = json.Unmarshal([]byte(src.Metadata), &metadata)
	}
	return e.PutObject(dstBucket, dstKey, body, src.ContentType, metadata)
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
