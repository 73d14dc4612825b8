package zeroapi

import (
	"context"
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

type fakePlane struct {
	synced int
	ports  []int
}

func (p *fakePlane) Sync(context.Context) error { p.synced++; return nil }
func (p *fakePlane) Ports() []int               { return p.ports }

func newTestAPI(t *testing.T) (*API, *fakePlane) {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := blob.NewStore(dir)
	require.NoError(t, err)
	eng := engine.New(store, blobs, "us-east-1", "http://localhost:4566", zap.NewNop())
	plane := &fakePlane{}
	return New(eng, plane, zap.NewNop()), plane
}

func do(t *testing.T, api *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBucketAndObjectFlow(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/v1/buckets", `{"name":"assets"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, api, http.MethodPut, "/v1/buckets/assets/objects/img/logo.png", "binarydata")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "img/logo.png", out["key"])
	assert.NotEmpty(t, out["etag"])

	rec = do(t, api, http.MethodGet, "/v1/buckets/assets/objects/img/logo.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "binarydata", rec.Body.String())

	rec = do(t, api, http.MethodGet, "/v1/buckets/assets/objects?prefix=img/", "")
	out = decode(t, rec)
	require.Len(t, out["objects"], 1)

	rec = do(t, api, http.MethodDelete, "/v1/buckets/assets/objects/img/logo.png", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, api, http.MethodDelete, "/v1/buckets/assets", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorShape(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(t, api, http.MethodGet, "/v1/buckets/missing/objects/x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "NoSuchBucket", out["error"])
	assert.NotEmpty(t, out["message"])
}

func TestQueueFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(t, api, http.MethodPost, "/v1/queues", `{"name":"jobs","visibility_timeout":60}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, float64(60), out["visibility_timeout"])

	rec = do(t, api, http.MethodPost, "/v1/queues/jobs/messages", `{"body":"task-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, api, http.MethodGet, "/v1/queues/jobs/messages?max=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Messages []struct {
			Body          string `json:"body"`
			ReceiptHandle string `json:"receipt_handle"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "task-1", page.Messages[0].Body)

	rec = do(t, api, http.MethodDelete, "/v1/queues/jobs/messages/"+page.Messages[0].ReceiptHandle, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestKVItemsWithETag(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusCreated, do(t, api, http.MethodPost, "/v1/kv", `{"name":"config"}`).Code)

	rec := do(t, api, http.MethodPut, "/v1/kv/config/items/feature-flags", `{"dark_mode":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag := decode(t, rec)["etag"].(string)

	rec = do(t, api, http.MethodPut, "/v1/kv/config/items/feature-flags?if_match=wrong", `{"dark_mode":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, api, http.MethodPut, "/v1/kv/config/items/feature-flags?if_match="+etag, `{"dark_mode":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, api, http.MethodGet, "/v1/kv/config/items/feature-flags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dark_mode":false}`, rec.Body.String())
}

func TestLBControlPlane(t *testing.T) {
	api, plane := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/v1/target_groups", `{"name":"web"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groupID := decode(t, rec)["id"].(string)

	rec = do(t, api, http.MethodPost, "/v1/target_groups/"+groupID+"/targets",
		`{"id":"i-1","host":"127.0.0.1","port":9001,"weight":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, api, http.MethodGet, "/v1/target_groups/"+groupID+"/targets", "")
	var targets struct {
		Targets []struct {
			ID      string `json:"id"`
			Healthy bool   `json:"healthy"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	require.Len(t, targets.Targets, 1)
	assert.True(t, targets.Targets[0].Healthy)

	rec = do(t, api, http.MethodPut, "/v1/target_groups/"+groupID+"/targets/i-1/health", `{"healthy":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, api, http.MethodPost, "/v1/listeners", `{"port":8085,"target_group":"`+groupID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	listenerID := decode(t, rec)["id"].(string)

	// A target group with a listener cannot be deleted.
	rec = do(t, api, http.MethodDelete, "/v1/target_groups/"+groupID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	plane.ports = []int{8085}
	rec = do(t, api, http.MethodPost, "/v1/sync_data_plane", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, plane.synced)
	assert.Equal(t, []any{float64(8085)}, decode(t, rec)["ports"])

	rec = do(t, api, http.MethodDelete, "/v1/listeners/"+listenerID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, api, http.MethodDelete, "/v1/target_groups/"+groupID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
