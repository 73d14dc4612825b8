// Package gcpapi implements the GCP-flavored surfaces: the Cloud Billing SKU
// page and a Secret Manager shape mapped onto the secrets family.
package gcpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

// API serves the GCP protocol shapes.
type API struct {
	eng    *engine.Engine
	logger *zap.Logger
	mux    *chi.Mux
}

// New creates the GCP adapter and mounts its routes.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	a := &API{eng: eng, logger: logger, mux: chi.NewRouter()}

	a.mux.Get("/v1/services/{service}/skus", a.listSKUs)

	a.mux.Route("/v1/projects/{project}/secrets", func(r chi.Router) {
		r.Post("/", a.createSecret)
		r.Get("/", a.listSecrets)
		r.Get("/{secret}", a.getSecret)
		r.Delete("/{secret}", a.deleteSecret)
		r.Post("/{secret}:addVersion", a.addSecretVersion)
		r.Get("/{secret}/versions/{version}:access", a.accessSecretVersion)
	})

	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// gcpError is the googleapis error envelope.
type gcpError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	var e gcpError
	e.Error.Code = status
	e.Error.Message = apperr.Message(err)
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		e.Error.Status = "NOT_FOUND"
	case apperr.KindAlreadyExists:
		e.Error.Status = "ALREADY_EXISTS"
	case apperr.KindInvalidArgument, apperr.KindInvalidRequest:
		e.Error.Status = "INVALID_ARGUMENT"
	case apperr.KindNotImplemented:
		e.Error.Status = "UNIMPLEMENTED"
	default:
		e.Error.Status = "INTERNAL"
	}
	a.writeJSON(w, status, e)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("json encode failed", zap.Error(err))
	}
}

// secretStoreName maps a GCP secret onto the engine's flat namespace.
func secretStoreName(project, secret string) string {
	return project + "/" + secret
}

func resourceName(project, secret string) string {
	return "projects/" + project + "/secrets/" + secret
}

func rfc3339(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}

func (a *API) createSecret(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	secretID := r.URL.Query().Get("secretId")
	if secretID == "" {
		a.writeError(w, apperr.InvalidArgument("secretId query parameter is required"))
		return
	}
	s, _, err := a.eng.CreateSecret(secretStoreName(project, secretID), "", nil, nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"name":       resourceName(project, secretID),
		"createTime": rfc3339(s.CreatedAt),
	})
}

func (a *API) listSecrets(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	all, err := a.eng.ListSecrets()
	if err != nil {
		a.writeError(w, err)
		return
	}
	prefix := project + "/"
	secrets := []map[string]any{}
	for _, s := range all {
		if len(s.Name) > len(prefix) && s.Name[:len(prefix)] == prefix {
			secrets = append(secrets, map[string]any{
				"name":       "projects/" + project + "/secrets/" + s.Name[len(prefix):],
				"createTime": rfc3339(s.CreatedAt),
			})
		}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"secrets": secrets, "totalSize": len(secrets)})
}

func (a *API) getSecret(w http.ResponseWriter, r *http.Request) {
	project, secret := chi.URLParam(r, "project"), chi.URLParam(r, "secret")
	s, err := a.eng.GetSecret(secretStoreName(project, secret))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"name":       resourceName(project, secret),
		"createTime": rfc3339(s.CreatedAt),
	})
}

func (a *API) deleteSecret(w http.ResponseWriter, r *http.Request) {
	project, secret := chi.URLParam(r, "project"), chi.URLParam(r, "secret")
	if _, err := a.eng.DeleteSecret(secretStoreName(project, secret)); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, struct{}{})
}

func (a *API) addSecretVersion(w http.ResponseWriter, r *http.Request) {
	project, secret := chi.URLParam(r, "project"), chi.URLParam(r, "secret")
	var req struct {
		Payload struct {
			Data []byte `json:"data"`
		} `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, apperr.InvalidArgument("malformed request body"))
		return
	}
	_, versionID, err := a.eng.PutSecretValue(secretStoreName(project, secret), nil, req.Payload.Data)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"name":  resourceName(project, secret) + "/versions/" + versionID,
		"state": "ENABLED",
	})
}

func (a *API) accessSecretVersion(w http.ResponseWriter, r *http.Request) {
	project, secret := chi.URLParam(r, "project"), chi.URLParam(r, "secret")
	version := chi.URLParam(r, "version")
	if version == "latest" {
		version = ""
	}
	_, v, err := a.eng.GetSecretValue(secretStoreName(project, secret), version)
	if err != nil {
		a.writeError(w, err)
		return
	}
	data := v.BinaryValue
	if data == nil && v.StringValue != nil {
		data = []byte(*v.StringValue)
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"name": resourceName(project, secret) + "/versions/" + v.VersionID,
		"payload": map[string]any{
			"data": base64.StdEncoding.EncodeToString(data),
		},
	})
}
