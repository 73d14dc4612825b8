// Package azureapi implements the Azure-flavored surfaces: the Retail Prices
// page and Cosmos-style document CRUD over the KV table family.
package azureapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

// API serves the Azure protocol shapes.
type API struct {
	eng    *engine.Engine
	logger *zap.Logger
	mux    *chi.Mux
}

// New creates the Azure adapter and mounts its routes.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	a := &API{eng: eng, logger: logger, mux: chi.NewRouter()}

	a.mux.Get("/api/retail/prices", a.retailPrices)

	a.mux.Route("/cosmos/dbs/{db}/colls/{coll}/docs", func(r chi.Router) {
		r.Get("/", a.listDocuments)
		r.Post("/", a.upsertDocument)
		r.Put("/{id}", a.upsertDocument)
		r.Get("/{id}", a.getDocument)
		r.Delete("/{id}", a.deleteDocument)
	})

	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// cosmosError is the Cosmos wire error shape.
type cosmosError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := "BadRequest"
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		code = "NotFound"
	case apperr.KindInvalidRequest:
		code = "PreconditionFailed"
	case apperr.KindNotImplemented:
		code = "NotImplemented"
	case apperr.KindInternal, apperr.KindDatabase:
		code = "InternalServerError"
	}
	status := apperr.HTTPStatus(err)
	if code == "PreconditionFailed" {
		status = http.StatusPreconditionFailed
	}
	a.writeJSON(w, status, cosmosError{Code: code, Message: apperr.Message(err)})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("json encode failed", zap.Error(err))
	}
}

// echoAPIVersion reflects the caller's api-version, as the service does.
func echoAPIVersion(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("api-version"); v != "" {
		w.Header().Set("x-ms-version", v)
	}
}

// collectionTable names the backing KV table for a Cosmos collection.
func collectionTable(db, coll string) string {
	return "cosmos." + db + "." + coll
}

// ensureCollection lazily creates the backing table; collections are
// implicit on this surface.
func (a *API) ensureCollection(db, coll string) (string, error) {
	table := collectionTable(db, coll)
	if _, err := a.eng.GetKVTable(table); err == nil {
		return table, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return "", err
	}
	_, err := a.eng.CreateKVTable(table,
		`[{"AttributeName":"id","AttributeType":"S"}]`,
		`[{"AttributeName":"id","KeyType":"HASH"}]`)
	if err != nil && !apperr.Is(err, apperr.KindAlreadyExists) {
		return "", err
	}
	return table, nil
}

func (a *API) upsertDocument(w http.ResponseWriter, r *http.Request) {
	echoAPIVersion(w, r)
	db, coll := chi.URLParam(r, "db"), chi.URLParam(r, "coll")
	table, err := a.ensureCollection(db, coll)
	if err != nil {
		a.writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, apperr.Internal(err, "read body"))
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		a.writeError(w, apperr.InvalidArgument("document is not valid JSON"))
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		id, _ = doc["id"].(string)
	}
	if id == "" {
		a.writeError(w, apperr.InvalidArgument("document requires an id"))
		return
	}
	doc["id"] = id
	payload, _ := json.Marshal(doc)

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	item, err := a.eng.UpsertDocument(table, id, string(payload), ifMatch)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("ETag", item.ETag)
	a.writeJSON(w, http.StatusOK, documentView(item))
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request) {
	echoAPIVersion(w, r)
	table := collectionTable(chi.URLParam(r, "db"), chi.URLParam(r, "coll"))
	item, err := a.eng.GetKVItem(table, chi.URLParam(r, "id"), "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("ETag", item.ETag)
	a.writeJSON(w, http.StatusOK, documentView(item))
}

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	echoAPIVersion(w, r)
	table := collectionTable(chi.URLParam(r, "db"), chi.URLParam(r, "coll"))
	items, err := a.eng.ScanKVItems(table, 0)
	if err != nil {
		a.writeError(w, err)
		return
	}
	docs := make([]map[string]any, 0, len(items))
	for i := range items {
		docs = append(docs, documentView(&items[i]))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"Documents": docs,
		"_count":    len(docs),
	})
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request) {
	echoAPIVersion(w, r)
	table := collectionTable(chi.URLParam(r, "db"), chi.URLParam(r, "coll"))
	id := chi.URLParam(r, "id")
	if _, err := a.eng.GetKVItem(table, id, ""); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.eng.DeleteKVItem(table, id, ""); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// documentView decorates the stored document with the Cosmos system fields.
func documentView(item *engine.KVItem) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal([]byte(item.Payload), &doc); err != nil {
		doc = map[string]any{"id": item.PartitionKey}
	}
	doc["_etag"] = item.ETag
	doc["_ts"] = item.UpdatedAt / 1e9
	return doc
}
