// Package errorsx defines the core's error classes, matching the treatment
// table in spec.md §7. Error handling deliberately does not map onto any
// particular RPC framework's status codes — the network front-end is an
// external collaborator (spec.md §6) and owns that translation.
package errorsx

import "fmt"

// Code classifies an error the way spec.md §7 classifies them.
type Code int

const (
	CodeUnknown Code = iota

	// Admin side.
	CodeTransport           // poll / metadata-store transport failure
	CodeDeserialization     // envelope or payload could not be decoded
	CodeDIVGap              // execution-id gap detected
	CodeHandlerFailure      // admin handler returned an error
	CodeCycleTimeout        // per-store task did not finish within the cycle
	CodeTopicMismatch       // record arrived on the wrong topic/partition
	CodeSkipRejected        // operator skip did not match failingOffset

	// Read side.
	CodeRequestShape   // malformed request
	CodeEarlyTerminated
	CodeStorageMissing // chunk or record missing from the storage engine
	CodeComputeField   // compute operation referenced an absent/null field
)

func (c Code) String() string {
	switch c {
	case CodeTransport:
		return "transport"
	case CodeDeserialization:
		return "deserialization"
	case CodeDIVGap:
		return "div_gap"
	case CodeHandlerFailure:
		return "handler_failure"
	case CodeCycleTimeout:
		return "cycle_timeout"
	case CodeTopicMismatch:
		return "topic_mismatch"
	case CodeSkipRejected:
		return "skip_rejected"
	case CodeRequestShape:
		return "request_shape"
	case CodeEarlyTerminated:
		return "early_terminated"
	case CodeStorageMissing:
		return "storage_missing"
	case CodeComputeField:
		return "compute_field"
	default:
		return "unknown"
	}
}

// CoreError is a structured error with a declared class and optional
// context, the same shape as the teacher's StorageError.
type CoreError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// New constructs a CoreError.
func New(code Code, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Details: make(map[string]interface{}), Cause: cause}
}

// WithDetail attaches a key/value to the error's Details map and returns it
// for chaining, matching the teacher's WithDetail convention.
func (e *CoreError) WithDetail(key string, value interface{}) *CoreError {
	e.Details[key] = value
	return e
}

// Convenience constructors, one per spec.md §7 row that needs a typed error.

func Transport(message string, cause error) *CoreError {
	return New(CodeTransport, message, cause)
}

func Deserialization(offset int64, cause error) *CoreError {
	return New(CodeDeserialization, "failed to deserialize admin payload", cause).WithDetail("offset", offset)
}

func DIVGap(offset int64, expected, got int64) *CoreError {
	return New(CodeDIVGap, "execution-id gap detected", nil).
		WithDetail("offset", offset).
		WithDetail("expected", expected).
		WithDetail("got", got)
}

func HandlerFailure(storeName string, offset int64, cause error) *CoreError {
	return New(CodeHandlerFailure, "admin handler failed", cause).
		WithDetail("store", storeName).
		WithDetail("offset", offset)
}

func CycleTimeout(storeName string) *CoreError {
	return New(CodeCycleTimeout, "store did not finish within the cycle", nil).WithDetail("store", storeName)
}

func TopicMismatch(got string) *CoreError {
	return New(CodeTopicMismatch, "record arrived on an unexpected topic/partition", nil).WithDetail("topic", got)
}

func SkipRejected(requested, failing int64) *CoreError {
	return New(CodeSkipRejected, "skip offset does not match the current failing offset", nil).
		WithDetail("requested", requested).
		WithDetail("failingOffset", failing)
}

func RequestShape(message string) *CoreError {
	return New(CodeRequestShape, message, nil)
}

func EarlyTerminated() *CoreError {
	return New(CodeEarlyTerminated, "request was terminated before storage work began", nil)
}

func StorageMissing(key string) *CoreError {
	return New(CodeStorageMissing, "storage engine returned no value", nil).WithDetail("key", key)
}

func ComputeField(field string) *CoreError {
	return New(CodeComputeField, "compute operation referenced a missing field", nil).WithDetail("field", field)
}

// IsCode reports whether err is a *CoreError of the given code.
func IsCode(err error, code Code) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Code == code
}
