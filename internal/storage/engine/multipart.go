package engine

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/blob"
	"localcloud/pkg/arn"
)

// CreateMultipartUpload opens a new upload for (bucket, key).
func (e *Engine) CreateMultipartUpload(bucket, key, contentType string, metadata map[string]string) (*Upload, error) {
	if _, err := e.GetBucket(bucket); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperr.InvalidArgument("object key must not be empty")
	}
	metaJSON := "{}"
	if len(metadata) > 0 {
		raw, _ := json.Marshal(metadata)
		metaJSON = string(raw)
	}
	up := &Upload{
		UploadID:    arn.NewID(),
		Bucket:      bucket,
		Key:         key,
		ContentType: contentType,
		Metadata:    metaJSON,
		InitiatedAt: e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO multipart_uploads (upload_id, bucket, key, content_type, metadata, initiated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		up.UploadID, up.Bucket, up.Key, up.ContentType, up.Metadata, up.InitiatedAt)
	if err != nil {
		return nil, dbErr(err, "create multipart upload")
	}
	return up, nil
}

func (e *Engine) getUpload(uploadID string) (*Upload, error) {
	var up Upload
	if err := e.meta.Get(&up, `SELECT * FROM multipart_uploads WHERE upload_id = ?`, uploadID); err != nil {
		return nil, notFoundOr(err, apperr.NoSuchUpload(uploadID))
	}
	return &up, nil
}

// UploadPart stores one part. Re-uploading a part number overwrites it.
func (e *Engine) UploadPart(uploadID string, partNumber int, body []byte) (*Part, error) {
	if partNumber < 1 || partNumber > 10000 {
		return nil, apperr.InvalidArgument("part number %d out of range", partNumber)
	}
	if _, err := e.getUpload(uploadID); err != nil {
		return nil, err
	}
	hash, err := e.blobs.Put(body)
	if err != nil {
		return nil, apperr.Internal(err, "write part blob")
	}
	p := &Part{
		UploadID:    uploadID,
		PartNumber:  partNumber,
		ContentHash: hash,
		Size:        int64(len(body)),
		ETag:        blob.ETag(hash),
		UploadedAt:  e.nowNS(),
	}
	_, err = e.meta.Exec(
		`INSERT INTO multipart_parts (upload_id, part_number, content_hash, size, etag, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (upload_id, part_number) DO UPDATE SET content_hash = excluded.content_hash, size = excluded.size, etag = excluded.etag, uploaded_at = excluded.uploaded_at`,
		p.UploadID, p.PartNumber, p.ContentHash, p.Size, p.ETag, p.UploadedAt)
	if err != nil {
		return nil, dbErr(err, "upload part")
	}
	return p, nil
}

// ListParts returns the parts of an upload in part-number order.
func (e *Engine) ListParts(uploadID string) (*Upload, []Part, error) {
	up, err := e.getUpload(uploadID)
	if err != nil {
		return nil, nil, err
	}
	var parts []Part
	if err := e.meta.Select(&parts, `SELECT * FROM multipart_parts WHERE upload_id = ? ORDER BY part_number`, uploadID); err != nil {
		return nil, nil, dbErr(err, "list parts")
	}
	return up, parts, nil
}

// CompleteMultipartUpload concatenates the uploaded parts in part-number
// order into one object and removes the upload. Completing twice fails
// NoSuchUpload: the upload row is gone after the first completion.
func (e *Engine) CompleteMultipartUpload(uploadID string) (*Object, error) {
	up, parts, err := e.ListParts(uploadID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, apperr.InvalidRequest("upload %q has no parts", uploadID)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range parts {
		b, err := e.blobs.Get(p.ContentHash)
		if err != nil {
			return nil, apperr.Internal(err, "read part blob")
		}
		buf.Write(b)
	}

	var metadata map[string]string
	_ = json.Unmarshal([]byte(up.Metadata), &metadata)

	obj, err := e.PutObject(up.Bucket, up.Key, buf.Bytes(), up.ContentType, metadata)
	if err != nil {
		return nil, err
	}

	err = e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM multipart_uploads WHERE upload_id = ?`, uploadID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NoSuchUpload(uploadID)
		}
		_, err = tx.Exec(`DELETE FROM multipart_parts WHERE upload_id = ?`, uploadID)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNoSuchUpload) {
			return nil, err
		}
		return nil, dbErr(err, "complete multipart upload")
	}
	return obj, nil
}

// AbortMultipartUpload discards an upload and its parts. Part blobs remain
// in the content-addressed store; no garbage collection is attempted.
func (e *Engine) AbortMultipartUpload(uploadID string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM multipart_uploads WHERE upload_id = ?`, uploadID)
		if err != nil {
			return dbErr(err, "abort multipart upload")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NoSuchUpload(uploadID)
		}
		if _, err := tx.Exec(`DELETE FROM multipart_parts WHERE upload_id = ?`, uploadID); err != nil {
			return dbErr(err, "delete parts")
		}
		return nil
	})
}
