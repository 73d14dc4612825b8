// Package s3api implements the S3 REST/XML surface over the storage engine.
// Both path-style (/bucket/key) and virtual-hosted (bucket.s3.host) requests
// land here; the router strips the addressing difference before dispatch.
package s3api

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/protocol/middleware"
	"localcloud/internal/storage/engine"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

// API serves the S3 protocol.
type API struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// New creates the S3 adapter.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	return &API{eng: eng, logger: logger}
}

// VirtualHostBucket extracts the bucket from a virtual-hosted Host header
// like "photos.s3.localhost:4566". Empty when the host is not bucket-shaped.
func VirtualHostBucket(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if i := strings.Index(host, ".s3."); i > 0 {
		return host[:i]
	}
	return ""
}

// ServeHTTP handles path-style requests: /, /{bucket}, /{bucket}/{key...}.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	a.Serve(w, r, bucket, key)
}

// ServeVirtualHost handles requests whose bucket came from the Host header;
// the full path is the key.
func (a *API) ServeVirtualHost(w http.ResponseWriter, r *http.Request, bucket string) {
	a.Serve(w, r, bucket, strings.TrimPrefix(r.URL.Path, "/"))
}

// Serve dispatches one request given its addressed bucket and key.
func (a *API) Serve(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if bucket == "" {
		if r.Method == http.MethodGet {
			a.listBuckets(w, r)
			return
		}
		a.writeError(w, r, apperr.NotImplemented("S3 "+r.Method+" /"))
		return
	}
	if key == "" {
		a.serveBucket(w, r, bucket)
		return
	}
	a.serveObject(w, r, bucket, key)
}

func (a *API) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodPut:
		switch {
		case q.Has("versioning"):
			a.putBucketVersioning(w, r, bucket)
		case q.Has("policy"):
			a.putBucketPolicy(w, r, bucket)
		default:
			a.createBucket(w, r, bucket)
		}
	case http.MethodGet:
		switch {
		case q.Has("versioning"):
			a.getBucketVersioning(w, r, bucket)
		case q.Has("policy"):
			a.getBucketPolicy(w, r, bucket)
		case q.Has("location"):
			a.getBucketLocation(w, r, bucket)
		case q.Has("versions"):
			a.listObjectVersions(w, r, bucket)
		default:
			a.listObjects(w, r, bucket)
		}
	case http.MethodHead:
		if _, err := a.eng.GetBucket(bucket); err != nil {
			a.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if q.Has("policy") {
			a.deleteBucketPolicy(w, r, bucket)
			return
		}
		if err := a.eng.DeleteBucket(bucket); err != nil {
			a.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		if q.Has("delete") {
			a.deleteObjects(w, r, bucket)
			return
		}
		a.writeError(w, r, apperr.NotImplemented("S3 POST on bucket"))
	default:
		a.writeError(w, r, apperr.NotImplemented("S3 "+r.Method+" on bucket"))
	}
}

func (a *API) serveObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodPut:
		switch {
		case q.Has("partNumber") && q.Has("uploadId"):
			a.uploadPart(w, r, q.Get("uploadId"), q.Get("partNumber"))
		case r.Header.Get("x-amz-copy-source") != "":
			a.copyObject(w, r, bucket, key)
		default:
			a.putObject(w, r, bucket, key)
		}
	case http.MethodGet:
		if q.Has("uploadId") {
			a.listParts(w, r, q.Get("uploadId"))
			return
		}
		a.getObject(w, r, bucket, key, true)
	case http.MethodHead:
		a.getObject(w, r, bucket, key, false)
	case http.MethodDelete:
		if q.Has("uploadId") {
			if err := a.eng.AbortMultipartUpload(q.Get("uploadId")); err != nil {
				a.writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		a.deleteObject(w, r, bucket, key, q.Get("versionId"))
	case http.MethodPost:
		switch {
		case q.Has("uploads"):
			a.createMultipartUpload(w, r, bucket, key)
		case q.Has("uploadId"):
			a.completeMultipartUpload(w, r, bucket, key, q.Get("uploadId"))
		default:
			a.writeError(w, r, apperr.NotImplemented("S3 POST on object"))
		}
	default:
		a.writeError(w, r, apperr.NotImplemented("S3 "+r.Method+" on object"))
	}
}

func (a *API) listBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.eng.ListBuckets()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res := listAllMyBucketsResult{Owner: owner{ID: "localcloud", DisplayName: "localcloud"}}
	for _, b := range buckets {
		res.Buckets.Bucket = append(res.Buckets.Bucket, bucketEntry{
			Name:         b.Name,
			CreationDate: formatNS(b.CreatedAt),
		})
	}
	a.writeXML(w, http.StatusOK, res)
}

func (a *API) createBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	region := ""
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		var cfg struct {
			LocationConstraint string `xml:"LocationConstraint"`
		}
		if err := xml.Unmarshal(body, &cfg); err == nil {
			region = cfg.LocationConstraint
		}
	}
	if _, err := a.eng.CreateBucket(bucket, region); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/"+bucket)
	w.WriteHeader(http.StatusOK)
}

func (a *API) putBucketVersioning(w http.ResponseWriter, r *http.Request, bucket string) {
	var cfg versioningConfiguration
	if err := xml.NewDecoder(r.Body).Decode(&cfg); err != nil {
		a.writeError(w, r, apperr.New(apperr.KindMalformedXML, "invalid versioning configuration"))
		return
	}
	if err := a.eng.PutBucketVersioning(bucket, cfg.Status); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) getBucketVersioning(w http.ResponseWriter, r *http.Request, bucket string) {
	state, err := a.eng.GetBucketVersioning(bucket)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	cfg := versioningConfiguration{}
	if state != engine.VersioningDisabled {
		cfg.Status = state
	}
	a.writeXML(w, http.StatusOK, cfg)
}

func (a *API) putBucketPolicy(w http.ResponseWriter, r *http.Request, bucket string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, r, apperr.Internal(err, "read policy"))
		return
	}
	if err := a.eng.PutBucketPolicy(bucket, string(body)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getBucketPolicy(w http.ResponseWriter, r *http.Request, bucket string) {
	policy, err := a.eng.GetBucketPolicy(bucket)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(policy))
}

func (a *API) deleteBucketPolicy(w http.ResponseWriter, r *http.Request, bucket string) {
	if err := a.eng.DeleteBucketPolicy(bucket); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getBucketLocation(w http.ResponseWriter, r *http.Request, bucket string) {
	b, err := a.eng.GetBucket(bucket)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeXML(w, http.StatusOK, locationConstraint{Value: b.Region})
}

func (a *API) listObjects(w http.ResponseWriter, r *http.Request, bucket string) {
	q := r.URL.Query()
	maxKeys := 1000
	if v := q.Get("max-keys"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxKeys = n
		}
	}
	res, err := a.eng.ListObjects(bucket, q.Get("prefix"), q.Get("delimiter"), maxKeys, q.Get("continuation-token"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := listBucketResult{
		Name:                  bucket,
		Prefix:                q.Get("prefix"),
		Delimiter:             q.Get("delimiter"),
		MaxKeys:               maxKeys,
		KeyCount:              len(res.Contents) + len(res.CommonPrefixes),
		IsTruncated:           res.IsTruncated,
		ContinuationToken:     q.Get("continuation-token"),
		NextContinuationToken: res.NextContinuationToken,
	}
	for _, obj := range res.Contents {
		out.Contents = append(out.Contents, objectEntry{
			Key:          obj.Key,
			LastModified: formatNS(obj.LastModified),
			ETag:         obj.ETag,
			Size:         obj.ContentLength,
			StorageClass: "STANDARD",
		})
	}
	for _, cp := range res.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, commonPrefix{Prefix: cp})
	}
	a.writeXML(w, http.StatusOK, out)
}

func (a *API) listObjectVersions(w http.ResponseWriter, r *http.Request, bucket string) {
	rows, err := a.eng.ListObjectVersions(bucket, r.URL.Query().Get("prefix"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := listVersionsResult{Name: bucket, Prefix: r.URL.Query().Get("prefix")}
	for _, obj := range rows {
		if obj.IsDeleteMarker {
			out.DeleteMarker = append(out.DeleteMarker, markerEntry{
				Key:          obj.Key,
				VersionID:    obj.VersionID,
				IsLatest:     obj.IsLatest,
				LastModified: formatNS(obj.LastModified),
			})
			continue
		}
		out.Version = append(out.Version, versionEntry{
			Key:          obj.Key,
			VersionID:    obj.VersionID,
			IsLatest:     obj.IsLatest,
			LastModified: formatNS(obj.LastModified),
			ETag:         obj.ETag,
			Size:         obj.ContentLength,
		})
	}
	a.writeXML(w, http.StatusOK, out)
}

func (a *API) putObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, r, apperr.Internal(err, "read body"))
		return
	}
	metadata := userMetadata(r.Header)
	obj, err := a.eng.PutObject(bucket, key, body, r.Header.Get("Content-Type"), metadata)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", obj.ETag)
	if obj.VersionID != "null" {
		w.Header().Set("x-amz-version-id", obj.VersionID)
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) getObject(w http.ResponseWriter, r *http.Request, bucket, key string, withBody bool) {
	versionID := r.URL.Query().Get("versionId")
	obj, body, err := a.eng.GetObject(bucket, key, versionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", obj.ETag)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	w.Header().Set("Last-Modified", time.Unix(0, obj.LastModified).UTC().Format(http.TimeFormat))
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.VersionID != "null" {
		w.Header().Set("x-amz-version-id", obj.VersionID)
	}
	writeUserMetadata(w.Header(), obj.Metadata)
	w.WriteHeader(http.StatusOK)
	if withBody {
		w.Write(body)
	}
}

func (a *API) deleteObject(w http.ResponseWriter, r *http.Request, bucket, key, versionID string) {
	res, err := a.eng.DeleteObject(bucket, key, versionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.DeleteMarker {
		w.Header().Set("x-amz-delete-marker", "true")
	}
	if res.VersionID != "" {
		w.Header().Set("x-amz-version-id", res.VersionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteObjects(w http.ResponseWriter, r *http.Request, bucket string) {
	var req deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, apperr.New(apperr.KindMalformedXML, "invalid Delete document"))
		return
	}
	out := deleteResult{}
	for _, obj := range req.Object {
		res, err := a.eng.DeleteObject(bucket, obj.Key, obj.VersionID)
		if err != nil {
			out.Error = append(out.Error, deleteError{
				Key:     obj.Key,
				Code:    s3Code(err),
				Message: apperr.Message(err),
			})
			continue
		}
		if !req.Quiet {
			out.Deleted = append(out.Deleted, deletedEntry{
				Key:          obj.Key,
				VersionID:    res.VersionID,
				DeleteMarker: res.DeleteMarker,
			})
		}
	}
	a.writeXML(w, http.StatusOK, out)
}

func (a *API) copyObject(w http.ResponseWriter, r *http.Request, dstBucket, dstKey string) {
	source := strings.TrimPrefix(r.Header.Get("x-amz-copy-source"), "/")
	srcPath, srcVersion, _ := strings.Cut(source, "?versionId=")
	srcBucket, srcKey, ok := strings.Cut(srcPath, "/")
	if !ok || srcKey == "" {
		a.writeError(w, r, apperr.InvalidArgument("invalid x-amz-copy-source %q", source))
		return
	}
	obj, err := a.eng.CopyObject(srcBucket, srcKey, srcVersion, dstBucket, dstKey)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeXML(w, http.StatusOK, copyObjectResult{
		ETag:         obj.ETag,
		LastModified: formatNS(obj.LastModified),
	})
}

func (a *API) createMultipartUpload(w http.ResponseWriter, r *http.Request, bucket, key string) {
	up, err := a.eng.CreateMultipartUpload(bucket, key, r.Header.Get("Content-Type"), userMetadata(r.Header))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeXML(w, http.StatusOK, initiateMultipartUploadResult{
		Bucket:   bucket,
		Key:      key,
		UploadID: up.UploadID,
	})
}

func (a *API) uploadPart(w http.ResponseWriter, r *http.Request, uploadID, partNumber string) {
	n, err := strconv.Atoi(partNumber)
	if err != nil {
		a.writeError(w, r, apperr.InvalidArgument("invalid partNumber %q", partNumber))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, r, apperr.Internal(err, "read part body"))
		return
	}
	part, err := a.eng.UploadPart(uploadID, n, body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", part.ETag)
	w.WriteHeader(http.StatusOK)
}

func (a *API) listParts(w http.ResponseWriter, r *http.Request, uploadID string) {
	up, parts, err := a.eng.ListParts(uploadID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := listPartsResult{Bucket: up.Bucket, Key: up.Key, UploadID: uploadID}
	for _, p := range parts {
		out.Part = append(out.Part, partEntry{
			PartNumber:   p.PartNumber,
			ETag:         p.ETag,
			Size:         p.Size,
			LastModified: formatNS(p.UploadedAt),
		})
	}
	a.writeXML(w, http.StatusOK, out)
}

func (a *API) completeMultipartUpload(w http.ResponseWriter, r *http.Request, bucket, key, uploadID string) {
	obj, err := a.eng.CompleteMultipartUpload(uploadID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeXML(w, http.StatusOK, completeMultipartUploadResult{
		Bucket: bucket,
		Key:    key,
		ETag:   obj.ETag,
	})
}

func (a *API) writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("xml encode failed", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	a.writeXML(w, status, errorResponse{
		Code:      s3Code(err),
		Message:   apperr.Message(err),
		Resource:  r.URL.Path,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// s3Code maps the error taxonomy to S3's XML error codes; most kinds carry
// the S3 name already.
func s3Code(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "NoSuchResource"
	case apperr.KindAlreadyExists:
		return "ResourceAlreadyExists"
	case apperr.KindInvalidArgument:
		return "InvalidArgument"
	case apperr.KindInvalidRequest:
		return "InvalidRequest"
	case apperr.KindInternal, apperr.KindDatabase:
		return "InternalError"
	default:
		return string(apperr.KindOf(err))
	}
}

// userMetadata collects x-amz-meta-* request headers.
func userMetadata(h http.Header) map[string]string {
	var out map[string]string
	for name, vs := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-meta-") && len(vs) > 0 {
			if out == nil {
				out = map[string]string{}
			}
			out[strings.TrimPrefix(lower, "x-amz-meta-")] = vs[0]
		}
	}
	return out
}

func writeUserMetadata(h http.Header, metaJSON string) {
	if metaJSON == "" || metaJSON == "{}" {
		return
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return
	}
	for k, v := range meta {
		h.Set("x-amz-meta-"+k, v)
	}
}

func formatNS(ns int64) string {
	return time.Unix(0, ns).UTC().Format(timeFormat)
}
