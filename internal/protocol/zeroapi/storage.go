package zeroapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

func isoTime(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}

func (a *API) createBucket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	b, err := a.eng.CreateBucket(req.Name, req.Region)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{
		"name":       b.Name,
		"region":     b.Region,
		"created_at": isoTime(b.CreatedAt),
	})
}

func (a *API) listBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.eng.ListBuckets()
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, map[string]any{
			"name":       b.Name,
			"region":     b.Region,
			"created_at": isoTime(b.CreatedAt),
		})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"buckets": out})
}

func (a *API) deleteBucket(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.DeleteBucket(chi.URLParam(r, "bucket")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) putObject(w http.ResponseWriter, r *http.Request) {
	bucket, key := chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, apperr.Internal(err, "read body"))
		return
	}
	obj, err := a.eng.PutObject(bucket, key, body, r.Header.Get("Content-Type"), nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"key":     obj.Key,
		"etag":    obj.ETag,
		"size":    obj.ContentLength,
		"version": obj.VersionID,
	})
}

func (a *API) getObject(w http.ResponseWriter, r *http.Request) {
	bucket, key := chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
	obj, body, err := a.eng.GetObject(bucket, key, r.URL.Query().Get("version"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("ETag", obj.ETag)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (a *API) listObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	res, err := a.eng.ListObjects(bucket, r.URL.Query().Get("prefix"), "", 1000, "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(res.Contents))
	for _, obj := range res.Contents {
		out = append(out, map[string]any{
			"key":           obj.Key,
			"etag":          obj.ETag,
			"size":          obj.ContentLength,
			"last_modified": isoTime(obj.LastModified),
		})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"objects": out})
}

func (a *API) deleteObject(w http.ResponseWriter, r *http.Request) {
	bucket, key := chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
	if _, err := a.eng.DeleteObject(bucket, key, r.URL.Query().Get("version")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	s, _, err := a.eng.CreateSecret(req.Name, req.Description, &req.Value, nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"name": s.Name, "arn": s.ARN})
}

func (a *API) getSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, v, err := a.eng.GetSecretValue(name, "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	value := ""
	if v.StringValue != nil {
		value = *v.StringValue
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"name":    s.Name,
		"value":   value,
		"version": v.VersionID,
	})
}

func (a *API) listSecrets(w http.ResponseWriter, r *http.Request) {
	list, err := a.eng.ListSecrets()
	if err != nil {
		a.writeError(w, err)
		return
	}
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"secrets": names})
}

func (a *API) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if _, err := a.eng.DeleteSecret(chi.URLParam(r, "name")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const idKeySchema = `[{"AttributeName":"id","KeyType":"HASH"}]`
const idAttrDefs = `[{"AttributeName":"id","AttributeType":"S"}]`

func (a *API) createTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	t, err := a.eng.CreateKVTable(req.Name, idAttrDefs, idKeySchema)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"name": t.Name})
}

func (a *API) listTables(w http.ResponseWriter, r *http.Request) {
	names, err := a.eng.ListKVTables()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"tables": names})
}

func (a *API) deleteTable(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.DeleteKVTable(chi.URLParam(r, "table")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) putItem(w http.ResponseWriter, r *http.Request) {
	table, id := chi.URLParam(r, "table"), chi.URLParam(r, "id")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, apperr.Internal(err, "read body"))
		return
	}
	if !json.Valid(body) {
		a.writeError(w, apperr.InvalidArgument("item must be valid JSON"))
		return
	}
	item, err := a.eng.UpsertDocument(table, id, string(body), r.URL.Query().Get("if_match"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"id": id, "etag": item.ETag})
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request) {
	table, id := chi.URLParam(r, "table"), chi.URLParam(r, "id")
	item, err := a.eng.GetKVItem(table, id, "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("ETag", item.ETag)
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(item.Payload))
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.eng.ScanKVItems(chi.URLParam(r, "table"), 0)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView{ID: it.PartitionKey, ETag: it.ETag, Value: json.RawMessage(it.Payload)})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

type itemView struct {
	ID    string          `json:"id"`
	ETag  string          `json:"etag"`
	Value json.RawMessage `json:"value"`
}

func (a *API) deleteItem(w http.ResponseWriter, r *http.Request) {
	table, id := chi.URLParam(r, "table"), chi.URLParam(r, "id")
	if err := a.eng.DeleteKVItem(table, id, ""); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queueView is the JSON shape shared by queue endpoints.
func queueView(q *engine.Queue, depth int) map[string]any {
	return map[string]any{
		"name":               q.Name,
		"url":                q.URL,
		"arn":                q.ARN,
		"visibility_timeout": q.VisibilityTimeout,
		"delay_seconds":      q.DelaySeconds,
		"depth":              depth,
	}
}
