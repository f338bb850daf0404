package core

// errors.go defines the error taxonomy for ingestion and lifecycle
// operations.
//
// The taxonomy matters because callers react differently per class:
//
//	ValidationError   rejected before any store access; HTTP 400
//	ProvisioningError DDL failed; ingestion aborted, ledger untouched
//	BatchInsertError  some prefix of batches is committed and stays
//	LedgerWriteError  non-fatal; logged as a warning only
//	LifecycleError    soft-delete/restore/purge failure; live data and
//	                  trash entries are preserved so the call is retryable
//
// Store errors are wrapped, never translated: the store's message stays
// visible in the chain. No operation retries automatically.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError marks input rejected before any store access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProvisioningError marks a namespace or table DDL failure.
type ProvisioningError struct {
	Op  string // "ensure namespace", "recreate table", "access policy"
	Err error
}

func (e *ProvisioningError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ProvisioningError) Unwrap() error { return e.Err }

// BatchInsertError marks a mid-sequence batch failure. RowsApplied counts
// rows from batches that committed before the failing one; they are not
// rolled back.
type BatchInsertError struct {
	RowsApplied int
	Batch       int // 1-based index of the failing batch
	Err         error
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("batch %d failed after %d rows applied: %v", e.Batch, e.RowsApplied, e.Err)
}
func (e *BatchInsertError) Unwrap() error { return e.Err }

// LedgerWriteError marks a best-effort ledger append failure.
type LedgerWriteError struct {
	Err error
}

func (e *LedgerWriteError) Error() string { return "ledger write: " + e.Err.Error() }
func (e *LedgerWriteError) Unwrap() error { return e.Err }

// LifecycleError marks a soft-delete, restore or purge failure.
type LifecycleError struct {
	Op  string
	Err error
}

func (e *LifecycleError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *LifecycleError) Unwrap() error { return e.Err }

// ErrNotFound is returned when a trash entry or table does not exist.
var ErrNotFound = errors.New("not found")

// HTTPStatus maps an error to its HTTP-equivalent status.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyUploads):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage provides user-friendly error information with a code for
// support reference.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive, first match
// wins) to messages safe to show a tenant.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid file name",
		msg: UserMessage{
			Message: "The file name could not be parsed",
			Action:  "Name the file {company}{YYMMDD}.csv, e.g. 모찌고251206.csv",
			Code:    "VAL001",
		},
	},
	{
		pattern: "empty csv",
		msg: UserMessage{
			Message: "The uploaded file has no data rows",
			Action:  "Upload a CSV with a header line and at least one data row",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid table reference",
		msg: UserMessage{
			Message: "The table name is not valid",
			Action:  "Use only letters, digits and underscores",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid identifier",
		msg: UserMessage{
			Message: "The identifier is not valid",
			Action:  "Use only letters, digits and underscores",
			Code:    "VAL003",
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "The requested record was not found",
			Action:  "It may already have been removed or restored",
			Code:    "TRS001",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "The system is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "batch",
		msg: UserMessage{
			Message: "The upload stopped partway through loading rows",
			Action:  "Some rows were stored; re-upload the file to replace the table",
			Code:    "UPL002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the data store",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. The
// original error text is logged, never shown.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}
