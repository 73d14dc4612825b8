// Package awsquery implements the AWS Query protocol: form-encoded POST
// bodies with an Action parameter, answered with XML envelopes. SQS's legacy
// wire (POST to the queue URL), SNS, STS, and IAM all arrive here.
package awsquery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/protocol/middleware"
	"localcloud/internal/storage/engine"
	"localcloud/pkg/arn"
)

// API routes Query-protocol actions to the storage engine.
type API struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// New creates the Query-protocol adapter.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	return &API{eng: eng, logger: logger}
}

// Matches reports whether a request is Query-protocol shaped: a POST with a
// form-encoded body and no JSON target header.
func Matches(r *http.Request) bool {
	if r.Method != http.MethodPost || r.Header.Get("X-Amz-Target") != "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.writeError(w, r, apperr.InvalidArgument("malformed form body: %v", err))
		return
	}
	action := r.PostForm.Get("Action")
	if action == "" {
		action = r.Form.Get("Action")
	}

	var out any
	var err error
	switch action {
	case "CreateQueue", "GetQueueUrl", "ListQueues", "DeleteQueue", "PurgeQueue",
		"SendMessage", "ReceiveMessage", "DeleteMessage", "ChangeMessageVisibility", "GetQueueAttributes":
		out, err = a.sqs(action, r)
	case "CreateTopic", "Subscribe", "Publish", "ListTopics":
		out, err = a.sns(action, r)
	case "GetCallerIdentity":
		out, err = a.sts(action)
	case "CreateUser", "GetUser", "ListUsers":
		out, err = a.iam(action, r)
	case "":
		err = apperr.InvalidArgument("missing Action parameter")
	default:
		err = apperr.NotImplemented("action " + action)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeResult(w, r, action, out)
}

// writeResult wraps the marshaled payload in the protocol's
// <ActionResponse><ActionResult> envelope. The payload's own element name is
// overridden so one result struct can serve several actions.
func (a *API) writeResult(w http.ResponseWriter, r *http.Request, action string, payload any) {
	var inner bytes.Buffer
	resultName := xml.Name{Local: action + "Result"}
	if payload == nil {
		payload = struct{}{}
	}
	enc := xml.NewEncoder(&inner)
	if err := enc.EncodeElement(payload, xml.StartElement{Name: resultName}); err != nil {
		a.logger.Error("xml marshal failed", zap.String("action", action), zap.Error(err))
		a.writeError(w, r, apperr.Internal(err, "encode response"))
		return
	}
	enc.Flush()
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w,
		"%s<%sResponse>%s<ResponseMetadata><RequestId>%s</RequestId></ResponseMetadata></%sResponse>",
		xml.Header, action, inner.String(), middleware.GetRequestID(r.Context()), action)
}

type queryError struct {
	XMLName   xml.Name `xml:"ErrorResponse"`
	Type      string   `xml:"Error>Type"`
	Code      string   `xml:"Error>Code"`
	Message   string   `xml:"Error>Message"`
	RequestID string   `xml:"RequestId"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	kind := "Sender"
	if status >= 500 {
		kind = "Receiver"
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(queryError{
		Type:      kind,
		Code:      apperr.AWSCode(err),
		Message:   apperr.Message(err),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// queueName resolves the addressed queue: the legacy wire posts to the queue
// URL path (/<account>/<name>), newer clients pass QueueUrl as a parameter.
func queueName(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 2 && parts[0] == arn.AccountID {
		return parts[1]
	}
	if u := r.Form.Get("QueueUrl"); u != "" {
		if i := strings.LastIndex(u, "/"); i >= 0 {
			return u[i+1:]
		}
		return u
	}
	return ""
}

func formInt(r *http.Request, name string, fallback int) int {
	if v := r.Form.Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// indexedAttrs collects Attribute.N.Name/Attribute.N.Value pairs.
func indexedAttrs(r *http.Request) map[string]string {
	out := map[string]string{}
	for i := 1; ; i++ {
		name := r.Form.Get(fmt.Sprintf("Attribute.%d.Name", i))
		if name == "" {
			break
		}
		out[name] = r.Form.Get(fmt.Sprintf("Attribute.%d.Value", i))
	}
	return out
}
