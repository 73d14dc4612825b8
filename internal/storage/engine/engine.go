// Package engine exposes one typed operation per entity kind over the
// metadata and blob stores. It is the only component that mutates rows;
// adapters decode wire requests into calls here and re-encode the results.
package engine

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/meta"
)

// Engine is the storage engine handle threaded through every adapter.
type Engine struct {
	meta     *meta.Store
	blobs    *blob.Store
	logger   *zap.Logger
	validate *validator.Validate

	region   string
	endpoint string

	clock func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithClock replaces the engine's time source. Tests use it to step through
// visibility timeouts without sleeping.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New creates the engine over an opened metadata store and blob store.
// endpoint is the externally visible base URL used in queue URLs.
func New(metaStore *meta.Store, blobs *blob.Store, region, endpoint string, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		meta:     metaStore,
		blobs:    blobs,
		logger:   logger,
		validate: newValidator(),
		region:   region,
		endpoint: endpoint,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newValidator builds the engine's validator with the name grammars
// registered as custom rules.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("bucket_name", func(fl validator.FieldLevel) bool {
		return bucketNameRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("queue_name", func(fl validator.FieldLevel) bool {
		return queueNameRe.MatchString(fl.Field().String())
	})
	return v
}

// Region returns the region the engine stamps into ARNs.
func (e *Engine) Region() string { return e.region }

func (e *Engine) now() time.Time { return e.clock() }

func (e *Engine) nowNS() int64 { return e.clock().UnixNano() }

// notFoundOr converts sql.ErrNoRows into the given domain error and wraps
// anything else as a database failure.
func notFoundOr(err error, domainErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domainErr
	}
	return apperr.Database(err, "query failed")
}

func dbErr(err error, what string) error {
	return apperr.Database(err, "%s", what)
}
