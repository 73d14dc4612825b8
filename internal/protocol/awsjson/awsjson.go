// Package awsjson implements the AWS JSON-1.1 protocol surface: every
// operation arrives as POST / with an X-Amz-Target header naming the service
// and operation, a JSON body, and a JSON (or {"__type":...}) response.
package awsjson

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

const contentType = "application/x-amz-json-1.1"

// API routes JSON-protocol operations to the storage engine.
type API struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// New creates the JSON-protocol adapter.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	return &API{eng: eng, logger: logger}
}

// Target reports whether the request carries an X-Amz-Target header.
func Target(r *http.Request) string {
	return r.Header.Get("X-Amz-Target")
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := Target(r)
	service, op, ok := strings.Cut(target, ".")
	if !ok {
		a.writeError(w, apperr.InvalidArgument("malformed X-Amz-Target %q", target))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, apperr.Internal(err, "read body"))
		return
	}

	var out any
	switch service {
	case "DynamoDB_20120810":
		out, err = a.kv(op, body)
	case "TrentService":
		out, err = a.kms(op, body)
	case "secretsmanager":
		out, err = a.secrets(op, body)
	case "AWSEvents":
		out, err = a.events(op, body)
	case "AWSStepFunctions":
		out, err = a.sfn(op, body)
	case "AWSCognitoIdentityProviderService":
		out, err = a.cognito(op, body)
	case "AmazonSQS":
		out, err = a.sqs(op, body)
	case "AmazonSSM":
		out, err = a.ssm(op, body)
	case "Logs_20140328":
		out, err = a.logs(op, body)
	case "GraniteServiceVersion20100801":
		out, err = a.cloudwatch(op, body)
	default:
		err = apperr.NotImplemented("service " + service)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, out)
}

func (a *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", contentType)
	if v == nil {
		v = struct{}{}
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("json encode failed", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(apperr.HTTPStatus(err))
	json.NewEncoder(w).Encode(map[string]string{
		"__type":  apperr.AWSCode(err),
		"message": apperr.Message(err),
	})
}

// unmarshal decodes a request body, turning malformed JSON into a
// ValidationException instead of a 500.
func unmarshal(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.InvalidArgument("malformed request body: %v", err)
	}
	return nil
}

func notImplemented(service, op string) error {
	return apperr.NotImplemented(service + "." + op)
}

// epoch converts unix nanoseconds to the protocol's float seconds.
func epoch(ns int64) float64 {
	return float64(ns) / 1e9
}

func epochPtr(ns *int64) *float64 {
	if ns == nil {
		return nil
	}
	v := epoch(*ns)
	return &v
}
