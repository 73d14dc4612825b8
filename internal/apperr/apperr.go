// Package apperr defines the error taxonomy shared by the storage engine and
// every protocol adapter. Each kind maps to exactly one HTTP status and one
// AWS-shaped error code; adapters translate, they never recover.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an engine error.
type Kind string

const (
	KindNoSuchBucket       Kind = "NoSuchBucket"
	KindBucketAlreadyOwned Kind = "BucketAlreadyExists"
	KindBucketNotEmpty     Kind = "BucketNotEmpty"
	KindNoSuchKey          Kind = "NoSuchKey"
	KindNoSuchUpload       Kind = "NoSuchUpload"
	KindNotFound           Kind = "NotFound"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindMalformedXML       Kind = "MalformedXML"
	KindMalformedPolicy    Kind = "MalformedPolicy"
	KindNoSuchBucketPolicy Kind = "NoSuchBucketPolicy"
	KindNotImplemented     Kind = "NotImplemented"
	KindInternal           Kind = "Internal"
	KindDatabase           Kind = "Database"
)

// Error is the concrete error type every engine operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NoSuchBucket reports a missing bucket.
func NoSuchBucket(name string) error {
	return New(KindNoSuchBucket, "bucket %q does not exist", name)
}

// BucketExists reports a bucket name collision.
func BucketExists(name string) error {
	return New(KindBucketAlreadyOwned, "bucket %q already exists", name)
}

// BucketNotEmpty reports a delete of a non-empty bucket.
func BucketNotEmpty(name string) error {
	return New(KindBucketNotEmpty, "bucket %q is not empty", name)
}

// NoSuchKey reports a missing object.
func NoSuchKey(bucket, key string) error {
	return New(KindNoSuchKey, "key %q does not exist in bucket %q", key, bucket)
}

// NoSuchUpload reports a missing or already completed multipart upload.
func NoSuchUpload(id string) error {
	return New(KindNoSuchUpload, "upload %q does not exist", id)
}

// NotFound reports a missing resource of any other kind.
func NotFound(kind, id string) error {
	return New(KindNotFound, "%s %q not found", kind, id)
}

// AlreadyExists reports a resource name collision.
func AlreadyExists(kind, id string) error {
	return New(KindAlreadyExists, "%s %q already exists", kind, id)
}

// InvalidArgument reports a caller error in a single field.
func InvalidArgument(format string, args ...any) error {
	return New(KindInvalidArgument, format, args...)
}

// InvalidRequest reports a caller error in the request as a whole.
func InvalidRequest(format string, args ...any) error {
	return New(KindInvalidRequest, format, args...)
}

// NotImplemented marks a route or action the emulator does not cover.
func NotImplemented(what string) error {
	return New(KindNotImplemented, "%s is not implemented", what)
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// Database wraps a metadata-store failure.
func Database(err error, format string, args ...any) error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the message of err without the kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the HTTP status its provider envelope uses.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNoSuchBucket, KindNoSuchKey, KindNoSuchUpload, KindNotFound, KindNoSuchBucketPolicy:
		return http.StatusNotFound
	case KindBucketAlreadyOwned, KindBucketNotEmpty:
		return http.StatusConflict
	case KindAlreadyExists, KindInvalidArgument, KindInvalidRequest, KindMalformedXML, KindMalformedPolicy:
		return http.StatusBadRequest
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// AWSCode maps an error to the code AWS JSON protocols put in __type.
func AWSCode(err error) string {
	switch KindOf(err) {
	case KindNoSuchBucket:
		return "NoSuchBucket"
	case KindBucketAlreadyOwned:
		return "BucketAlreadyExists"
	case KindBucketNotEmpty:
		return "BucketNotEmpty"
	case KindNoSuchKey:
		return "NoSuchKey"
	case KindNoSuchUpload:
		return "NoSuchUpload"
	case KindNotFound:
		return "ResourceNotFoundException"
	case KindAlreadyExists:
		return "ResourceInUseException"
	case KindInvalidArgument:
		return "ValidationException"
	case KindInvalidRequest:
		return "InvalidRequestException"
	case KindMalformedXML:
		return "MalformedXML"
	case KindMalformedPolicy:
		return "MalformedPolicy"
	case KindNoSuchBucketPolicy:
		return "NoSuchBucketPolicy"
	case KindNotImplemented:
		return "NotImplemented"
	default:
		return "InternalFailure"
	}
}
