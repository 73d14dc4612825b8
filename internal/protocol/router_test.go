package protocol

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"localcloud/internal/config"
	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/engine"
	"localcloud/internal/storage/meta"
	"localcloud/pkg/observability"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := blob.NewStore(dir)
	require.NoError(t, err)
	eng := engine.New(store, blobs, "us-east-1", "http://localhost:4566", zap.NewNop())

	cfg := &config.Config{
		ListenAddress:    ":4566",
		Region:           "us-east-1",
		AccountID:        "000000000000",
		ExternalEndpoint: "http://localhost:4566",
		EnableMetrics:    true,
	}
	rt := NewRouter(cfg, eng, observability.NewMetrics(), nil, zap.NewNop())
	return rt.Setup()
}

func TestDispatchHealth(t *testing.T) {
	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "us-east-1", out["region"])
	assert.NotEmpty(t, rec.Header().Get("x-amz-request-id"))
}

func TestDispatchMetrics(t *testing.T) {
	handler := newTestHandler(t)

	// Generate one observed request first so the counters exist.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "localcloud_requests_total")
}

func TestDispatchTargetHeader(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("X-Amz-Target", "DynamoDB_20120810.ListTables")
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out, "TableNames")
}

func TestDispatchVirtualHost(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req.Host = "media.s3.localhost:4566"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The bucket is visible through the path-style surface too.
	req = httptest.NewRequest(http.MethodHead, "/media", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatchZeroAPI(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/buckets", strings.NewReader(`{"name":"assets"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/buckets", nil))
	assert.Contains(t, rec.Body.String(), "assets")
}

func TestDispatchGCP(t *testing.T) {
	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/services/compute/skus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skus")
}

func TestDispatchAzure(t *testing.T) {
	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/retail/prices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Items")
}

func TestDispatchQueryProtocol(t *testing.T) {
	handler := newTestHandler(t)
	form := url.Values{"Action": {"GetCallerIdentity"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "GetCallerIdentityResponse")
	assert.Contains(t, rec.Body.String(), "000000000000")
}

func TestDispatchS3Fallback(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/reports/q1.csv", strings.NewReader("a,b\n1,2\n"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/q1.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())
}

func TestPanicRecovery(t *testing.T) {
	handler := newTestHandler(t)
	// An unparseable continuation token must not crash the server; the worst
	// acceptable outcome is an error status.
	req := httptest.NewRequest(http.MethodGet, "/reports?list-type=2&continuation-token=%zz", nil)
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
}
