// Package zeroapi implements the zero provider: a plain JSON REST surface
// over the same storage engine, plus the load-balancer control plane.
package zeroapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

// DataPlane is the slice of the LB manager the control plane drives.
type DataPlane interface {
	Sync(ctx context.Context) error
	Ports() []int
}

// API serves the /v1 REST surface.
type API struct {
	eng    *engine.Engine
	plane  DataPlane
	logger *zap.Logger
	mux    *chi.Mux
}

// New creates the zero-provider adapter. plane may be nil; sync_data_plane
// then reports the control plane state without touching listeners.
func New(eng *engine.Engine, plane DataPlane, logger *zap.Logger) *API {
	a := &API{eng: eng, plane: plane, logger: logger, mux: chi.NewRouter()}

	a.mux.Route("/v1", func(r chi.Router) {
		r.Route("/buckets", func(r chi.Router) {
			r.Post("/", a.createBucket)
			r.Get("/", a.listBuckets)
			r.Delete("/{bucket}", a.deleteBucket)
			r.Get("/{bucket}/objects", a.listObjects)
			r.Put("/{bucket}/objects/*", a.putObject)
			r.Get("/{bucket}/objects/*", a.getObject)
			r.Delete("/{bucket}/objects/*", a.deleteObject)
		})

		r.Route("/queues", func(r chi.Router) {
			r.Post("/", a.createQueue)
			r.Get("/", a.listQueues)
			r.Delete("/{queue}", a.deleteQueue)
			r.Post("/{queue}/messages", a.sendMessage)
			r.Get("/{queue}/messages", a.receiveMessages)
			r.Delete("/{queue}/messages/{handle}", a.deleteMessage)
		})

		r.Route("/secrets", func(r chi.Router) {
			r.Post("/", a.createSecret)
			r.Get("/", a.listSecrets)
			r.Get("/{name}", a.getSecret)
			r.Delete("/{name}", a.deleteSecret)
		})

		r.Route("/kv", func(r chi.Router) {
			r.Post("/", a.createTable)
			r.Get("/", a.listTables)
			r.Delete("/{table}", a.deleteTable)
			r.Get("/{table}/items", a.listItems)
			r.Put("/{table}/items/{id}", a.putItem)
			r.Get("/{table}/items/{id}", a.getItem)
			r.Delete("/{table}/items/{id}", a.deleteItem)
		})

		r.Route("/target_groups", func(r chi.Router) {
			r.Post("/", a.createTargetGroup)
			r.Get("/", a.listTargetGroups)
			r.Delete("/{group}", a.deleteTargetGroup)
			r.Post("/{group}/targets", a.registerTarget)
			r.Get("/{group}/targets", a.listTargets)
			r.Delete("/{group}/targets/{target}", a.deregisterTarget)
			r.Put("/{group}/targets/{target}/health", a.setTargetHealth)
		})

		r.Route("/listeners", func(r chi.Router) {
			r.Post("/", a.createListener)
			r.Get("/", a.listListeners)
			r.Delete("/{listener}", a.deleteListener)
		})

		r.Post("/sync_data_plane", a.syncDataPlane)
	})

	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// restError is the zero provider's error shape.
type restError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	a.writeJSON(w, apperr.HTTPStatus(err), restError{
		Error:   string(apperr.KindOf(err)),
		Message: apperr.Message(err),
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("json encode failed", zap.Error(err))
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidArgument("malformed request body: %v", err)
	}
	return nil
}

func (a *API) syncDataPlane(w http.ResponseWriter, r *http.Request) {
	if a.plane != nil {
		if err := a.plane.Sync(r.Context()); err != nil {
			a.writeError(w, apperr.Internal(err, "sync data plane"))
			return
		}
	}
	ports := []int{}
	if a.plane != nil {
		ports = a.plane.Ports()
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"ports": ports})
}
