package lb

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource struct {
	listeners []Listener
	backends  map[string][]Backend
}

func (s *staticSource) DataPlaneListeners() ([]Listener, error) { return s.listeners, nil }
func (s *staticSource) DataPlaneBackends(groupID string) ([]Backend, error) {
	return s.backends[groupID], nil
}

func backendFromServer(t *testing.T, srv *httptest.Server, id string, weight int) Backend {
	t.Helper()
	host, portStr, ok := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Backend{ID: id, Host: host, Port: port, Weight: weight}
}

func TestForwardToBackend(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("echo:" + string(body) + ":" + r.URL.Path))
	}))
	defer upstream.Close()

	src := &staticSource{backends: map[string][]Backend{
		"tg-1": {backendFromServer(t, upstream, "a", 1)},
	}}
	m := NewManager(src, 1<<20, 5*time.Second, zap.NewNop())

	proxy := httptest.NewServer(m.forwardHandler("tg-1"))
	defer proxy.Close()

	resp, err := http.Post(proxy.URL+"/orders", "text/plain", strings.NewReader("hi"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Upstream"))
	assert.Equal(t, "echo:hi:/orders", string(body))
}

func TestForwardSetsProxyHeaders(t *testing.T) {
	var gotXFF, gotXFH string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotXFH = r.Header.Get("X-Forwarded-Host")
	}))
	defer upstream.Close()

	src := &staticSource{backends: map[string][]Backend{
		"tg-1": {backendFromServer(t, upstream, "a", 1)},
	}}
	m := NewManager(src, 1<<20, 5*time.Second, zap.NewNop())
	proxy := httptest.NewServer(m.forwardHandler("tg-1"))
	defer proxy.Close()

	_, err := http.Get(proxy.URL + "/")
	require.NoError(t, err)
	assert.NotEmpty(t, gotXFF)
	assert.NotEmpty(t, gotXFH)
}

func TestNoHealthyTargets(t *testing.T) {
	src := &staticSource{backends: map[string][]Backend{}}
	m := NewManager(src, 1<<20, time.Second, zap.NewNop())
	proxy := httptest.NewServer(m.forwardHandler("tg-1"))
	defer proxy.Close()

	resp, err := http.Get(proxy.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBodyTooLarge(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	src := &staticSource{backends: map[string][]Backend{
		"tg-1": {backendFromServer(t, upstream, "a", 1)},
	}}
	m := NewManager(src, 8, time.Second, zap.NewNop())
	proxy := httptest.NewServer(m.forwardHandler("tg-1"))
	defer proxy.Close()

	resp, err := http.Post(proxy.URL+"/", "text/plain", strings.NewReader("way more than eight bytes"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUnreachableBackendIsBadGateway(t *testing.T) {
	src := &staticSource{backends: map[string][]Backend{
		// Reserved port with nothing listening.
		"tg-1": {{ID: "dead", Host: "127.0.0.1", Port: 1, Weight: 1}},
	}}
	m := NewManager(src, 1<<20, time.Second, zap.NewNop())
	proxy := httptest.NewServer(m.forwardHandler("tg-1"))
	defer proxy.Close()

	resp, err := http.Get(proxy.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestWeightedPickFavorsHeavierBackend(t *testing.T) {
	m := NewManager(&staticSource{}, 1<<20, time.Second, zap.NewNop())
	backends := []Backend{
		{ID: "light", Weight: 1},
		{ID: "heavy", Weight: 9},
	}
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[m.pick(backends).ID]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
	assert.Greater(t, counts["light"], 0)
}

func TestSyncStartsAndStopsListeners(t *testing.T) {
	src := &staticSource{
		listeners: []Listener{{ID: "l1", Port: 0}},
	}
	// Port 0 is rejected by the control plane, so use a real ephemeral port.
	ln := mustFreePort(t)
	src.listeners[0].Port = ln
	src.listeners[0].TargetGroupID = "tg-1"
	src.backends = map[string][]Backend{"tg-1": {}}

	m := NewManager(src, 1<<20, time.Second, zap.NewNop())
	require.NoError(t, m.Sync(context.Background()))
	assert.Equal(t, []int{ln}, m.Ports())

	// The listener answers (503: no healthy targets).
	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(ln) + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	src.listeners = nil
	require.NoError(t, m.Sync(context.Background()))
	assert.Empty(t, m.Ports())

	m.Shutdown(context.Background())
}

func mustFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
