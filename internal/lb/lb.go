// Package lb runs the zero-provider load-balancer data plane: one HTTP
// listener per configured port, forwarding to the healthy backends of the
// listener's target group. The control plane owns the configuration rows;
// Sync reconciles the running listeners against them.
package lb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Backend is one forwarding candidate.
type Backend struct {
	ID     string
	Host   string
	Port   int
	Weight int
}

// Listener binds a local port to a target group.
type Listener struct {
	ID            string
	Port          int
	TargetGroupID string
}

// TargetSource supplies the desired data-plane configuration. The storage
// engine implements it through an adapter.
type TargetSource interface {
	DataPlaneListeners() ([]Listener, error)
	DataPlaneBackends(targetGroupID string) ([]Backend, error)
}

// Manager owns the running listeners.
type Manager struct {
	source  TargetSource
	logger  *zap.Logger
	maxBody int64
	client  *http.Client

	mu       sync.Mutex
	servers  map[int]*portServer
	breakers map[string]*gobreaker.CircuitBreaker
	rng      *rand.Rand
}

type portServer struct {
	listener Listener
	srv      *http.Server
}

// NewManager creates a manager. maxBody caps forwarded request bodies in
// bytes; forwardTimeout bounds each upstream round trip.
func NewManager(source TargetSource, maxBody int64, forwardTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		source:  source,
		logger:  logger,
		maxBody: maxBody,
		client: &http.Client{
			Timeout: forwardTimeout,
			// Redirects pass through to the caller untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		servers:  make(map[int]*portServer),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sync reconciles running listeners with the source: missing ones start,
// removed ones stop, re-bound ports restart with the new target group.
func (m *Manager) Sync(ctx context.Context) error {
	desired, err := m.source.DataPlaneListeners()
	if err != nil {
		return fmt.Errorf("load listeners: %w", err)
	}
	byPort := make(map[int]Listener, len(desired))
	for _, l := range desired {
		byPort[l.Port] = l
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for port, ps := range m.servers {
		want, ok := byPort[port]
		if ok && want.TargetGroupID == ps.listener.TargetGroupID {
			continue
		}
		m.stopLocked(ctx, port)
	}
	for port, l := range byPort {
		if _, ok := m.servers[port]; ok {
			continue
		}
		if err := m.startLocked(l); err != nil {
			m.logger.Error("listener start failed", zap.Int("port", port), zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops every running listener.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for port := range m.servers {
		m.stopLocked(ctx, port)
	}
}

// Ports returns the ports currently being served, for introspection.
func (m *Manager) Ports() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.servers))
	for port := range m.servers {
		out = append(out, port)
	}
	return out
}

func (m *Manager) startLocked(l Listener) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.Port))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           m.forwardHandler(l.TargetGroupID),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.servers[l.Port] = &portServer{listener: l, srv: srv}
	m.logger.Info("data plane listener started",
		zap.Int("port", l.Port),
		zap.String("target_group", l.TargetGroupID))
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Error("data plane listener failed", zap.Int("port", l.Port), zap.Error(err))
		}
	}()
	return nil
}

func (m *Manager) stopLocked(ctx context.Context, port int) {
	ps, ok := m.servers[port]
	if !ok {
		return
	}
	delete(m.servers, port)
	if err := ps.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("listener shutdown error", zap.Int("port", port), zap.Error(err))
	}
	m.logger.Info("data plane listener stopped", zap.Int("port", port))
}

// forwardHandler proxies each request to one weighted-random healthy
// backend, guarded by a per-backend circuit breaker.
func (m *Manager) forwardHandler(targetGroupID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backends, err := m.source.DataPlaneBackends(targetGroupID)
		if err != nil {
			m.logger.Error("backend lookup failed", zap.String("target_group", targetGroupID), zap.Error(err))
			http.Error(w, "backend lookup failed", http.StatusBadGateway)
			return
		}
		if len(backends) == 0 {
			http.Error(w, "no healthy targets", http.StatusServiceUnavailable)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.maxBody))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		backend := m.pick(backends)
		cb := m.breakerFor(backend)
		resp, err := cb.Execute(func() (any, error) {
			return m.forward(r, backend, body)
		})
		if err != nil {
			switch err {
			case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
				http.Error(w, "target unavailable", http.StatusServiceUnavailable)
			default:
				m.logger.Warn("forward failed",
					zap.String("backend", backend.Host+":"+strconv.Itoa(backend.Port)),
					zap.Error(err))
				http.Error(w, "bad gateway", http.StatusBadGateway)
			}
			return
		}

		res := resp.(*http.Response)
		defer res.Body.Close()
		for k, vs := range res.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(res.StatusCode)
		io.Copy(w, res.Body)
	})
}

func (m *Manager) forward(r *http.Request, b Backend, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("http://%s:%d%s", b.Host, b.Port, r.URL.RequestURI())
	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	req.Header.Set("X-Forwarded-For", clientIP(r))
	req.Header.Set("X-Forwarded-Host", r.Host)
	req.ContentLength = int64(len(body))
	return m.client.Do(req)
}

// pick selects a backend with probability proportional to its weight.
func (m *Manager) pick(backends []Backend) Backend {
	total := 0
	for _, b := range backends {
		if b.Weight < 1 {
			b.Weight = 1
		}
		total += b.Weight
	}
	m.mu.Lock()
	n := m.rng.Intn(total)
	m.mu.Unlock()
	for _, b := range backends {
		w := b.Weight
		if w < 1 {
			w = 1
		}
		if n < w {
			return b
		}
		n -= w
	}
	return backends[len(backends)-1]
}

func (m *Manager) breakerFor(b Backend) *gobreaker.CircuitBreaker {
	key := b.Host + ":" + strconv.Itoa(b.Port)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Warn("backend circuit state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	m.breakers[key] = cb
	return cb
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
