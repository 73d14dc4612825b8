package gcpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/engine"
	"localcloud/internal/storage/meta"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := blob.NewStore(dir)
	require.NoError(t, err)
	eng := engine.New(store, blobs, "us-east-1", "http://localhost:4566", zap.NewNop())
	return New(eng, zap.NewNop())
}

func do(t *testing.T, api *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func TestListSKUs(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api, http.MethodGet, "/v1/services/6F81-5844-456A/skus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Skus []struct {
			Name  string `json:"name"`
			SkuID string `json:"skuId"`
		} `json:"skus"`
		NextPageToken string `json:"nextPageToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.NotEmpty(t, page.Skus)
	assert.Contains(t, page.Skus[0].Name, "services/6F81-5844-456A/skus/")
	assert.Empty(t, page.NextPageToken)
}

func TestSecretLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/v1/projects/demo/secrets?secretId=db-password", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "projects/demo/secrets/db-password", created.Name)

	payload := base64.StdEncoding.EncodeToString([]byte("hunter2"))
	rec = do(t, api, http.MethodPost, "/v1/projects/demo/secrets/db-password:addVersion",
		`{"payload":{"data":"`+payload+`"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, api, http.MethodGet, "/v1/projects/demo/secrets/db-password/versions/latest:access", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var access struct {
		Payload struct {
			Data string `json:"data"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
	decoded, err := base64.StdEncoding.DecodeString(access.Payload.Data)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(decoded))

	rec = do(t, api, http.MethodGet, "/v1/projects/demo/secrets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Secrets   []json.RawMessage `json:"secrets"`
		TotalSize int               `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalSize)

	rec = do(t, api, http.MethodDelete, "/v1/projects/demo/secrets/db-password", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, api, http.MethodGet, "/v1/projects/demo/secrets/db-password", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e gcpError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "NOT_FOUND", e.Error.Status)
	assert.Equal(t, http.StatusNotFound, e.Error.Code)
}

func TestSecretsAreProjectScoped(t *testing.T) {
	api := newTestAPI(t)
	do(t, api, http.MethodPost, "/v1/projects/alpha/secrets?secretId=shared-name", "")
	do(t, api, http.MethodPost, "/v1/projects/beta/secrets?secretId=shared-name", "")

	rec := do(t, api, http.MethodGet, "/v1/projects/alpha/secrets", "")
	var list struct {
		TotalSize int `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalSize)
}
