// Package protocol wires the provider adapters behind a single listener.
// Requests are classified by their framing (JSON target header, virtual-host
// bucket, path prefix, form encoding) before any adapter sees them.
package protocol

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"localcloud/internal/config"
	"localcloud/internal/protocol/awsjson"
	"localcloud/internal/protocol/awsquery"
	"localcloud/internal/protocol/azureapi"
	"localcloud/internal/protocol/gcpapi"
	"localcloud/internal/protocol/middleware"
	"localcloud/internal/protocol/s3api"
	"localcloud/internal/protocol/zeroapi"
	"localcloud/internal/storage/engine"
	"localcloud/pkg/observability"
)

// Router creates and configures the HTTP entry point.
type Router struct {
	cfg     *config.Config
	eng     *engine.Engine
	metrics *observability.Metrics
	logger  *zap.Logger

	s3    *s3api.API
	json  *awsjson.API
	query *awsquery.API
	azure *azureapi.API
	gcp   *gcpapi.API
	zero  *zeroapi.API
}

// NewRouter creates a router over one engine. plane may be nil when the data
// plane is disabled.
func NewRouter(cfg *config.Config, eng *engine.Engine, metrics *observability.Metrics, plane zeroapi.DataPlane, logger *zap.Logger) *Router {
	return &Router{
		cfg:     cfg,
		eng:     eng,
		metrics: metrics,
		logger:  logger,
		s3:      s3api.New(eng, logger),
		json:    awsjson.New(eng, logger),
		query:   awsquery.New(eng, logger),
		azure:   azureapi.New(eng, logger),
		gcp:     gcpapi.New(eng, logger),
		zero:    zeroapi.New(eng, plane, logger),
	}
}

// Setup configures middleware and the dispatch chain.
func (rt *Router) Setup() http.Handler {
	var handler http.Handler = http.HandlerFunc(rt.dispatch)

	handler = cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"ETag", "x-amz-request-id", "x-amz-version-id"},
		AllowCredentials: false,
		MaxAge:           300,
	})(handler)

	handler = middleware.Recover(rt.logger)(handler)
	handler = middleware.AccessLog(rt.logger)(handler)
	handler = chimiddleware.RealIP(handler)
	handler = middleware.RequestID(handler)
	return handler
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request) {
	service, handler := rt.classify(r)

	if rt.metrics == nil {
		handler.ServeHTTP(w, r)
		return
	}
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	handler.ServeHTTP(sw, r)
	rt.metrics.ObserveRequest(service, operationOf(r), sw.status, time.Since(start))
}

// classify picks the adapter for a request. Order matters: the JSON target
// header and the virtual-host bucket are stronger signals than the path, and
// the S3 path-style surface is the catch-all.
func (rt *Router) classify(r *http.Request) (string, http.Handler) {
	if awsjson.Target(r) != "" {
		return "awsjson", rt.json
	}
	if bucket := s3api.VirtualHostBucket(r.Host); bucket != "" {
		return "s3", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt.s3.ServeVirtualHost(w, r, bucket)
		})
	}

	path := r.URL.Path
	switch {
	case path == "/health":
		return "system", http.HandlerFunc(rt.health)
	case path == "/metrics":
		return "system", rt.metricsHandler()
	case strings.HasPrefix(path, "/v1/services/") || strings.HasPrefix(path, "/v1/projects/"):
		return "gcp", rt.gcp
	case strings.HasPrefix(path, "/v1/"):
		return "zero", rt.zero
	case strings.HasPrefix(path, "/api/retail/prices") || strings.HasPrefix(path, "/cosmos/"):
		return "azure", rt.azure
	}

	if awsquery.Matches(r) {
		return "awsquery", rt.query
	}
	return "s3", rt.s3
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"region": rt.eng.Region(),
	})
}

func (rt *Router) metricsHandler() http.Handler {
	if rt.cfg.EnableMetrics && rt.metrics != nil {
		return rt.metrics.Handler()
	}
	return http.NotFoundHandler()
}

// operationOf labels a request for metrics without exploding cardinality:
// JSON operations come from the target header, everything else uses the
// method.
func operationOf(r *http.Request) string {
	if target := awsjson.Target(r); target != "" {
		if _, op, ok := strings.Cut(target, "."); ok {
			return op
		}
		return target
	}
	return r.Method
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
