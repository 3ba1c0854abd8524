package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidTransition     = "INVALID_TRANSITION"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodeInvalidPeriod         = "INVALID_PERIOD"
	ErrCodeInvalidSchedule       = "INVALID_SCHEDULE"
	ErrCodeUnknownCaseType       = "UNKNOWN_CASE_TYPE"
	ErrCodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	ErrCodeDiscrepancy           = "DISCREPANCY"
	ErrCodeReplayNotAllowed      = "REPLAY_NOT_ALLOWED"
	ErrCodeUnknownCorrelationKey = "UNKNOWN_CORRELATION_KEY"
)

var (
	// ErrDiscrepancy is wrapped when verification halts a request before it is persisted or sent.
	ErrDiscrepancy = errors.New("payment schedule does not match decision")
	// ErrPublishFailed is wrapped when the outbound queue did not confirm an order.
	ErrPublishFailed = errors.New("publish to settlement queue failed")
	// ErrDispatchInconsistent is wrapped when an order was published but could not be marked SENT.
	ErrDispatchInconsistent = errors.New("order published but not marked as sent")
	// ErrAcknowledgedBeforeSent is wrapped when a kvittering overtakes the SENT commit of its order.
	// The receipt is retried rather than dead-lettered.
	ErrAcknowledgedBeforeSent = errors.New("kvittering received before order was marked as sent")
	// ErrBatchOverlap is wrapped when a grensesnitt window starts before the previous one ended.
	ErrBatchOverlap = errors.New("reconciliation window overlaps the previous batch")
)

func NewInvalidTransitionError(from, to Status) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewOrderNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("payment order %s not found", ref),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidScheduleError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidSchedule,
		Message: fmt.Sprintf("invalid payment schedule: %s", reason),
	}
}

func NewUnknownCaseTypeError(caseType CaseType) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownCaseType,
		Message: fmt.Sprintf("unknown case type %q", caseType),
	}
}

func NewDiscrepancyError(discrepancies []Discrepancy) *DomainError {
	kinds := make([]string, 0, len(discrepancies))
	for _, d := range discrepancies {
		kinds = append(kinds, string(d.Kind))
	}
	return &DomainError{
		Code:    ErrCodeDiscrepancy,
		Message: fmt.Sprintf("%d discrepancies (%s)", len(discrepancies), strings.Join(kinds, ",")),
		Err:     ErrDiscrepancy,
	}
}

func NewReplayNotAllowedError(decisionID int64, current Status) *DomainError {
	return &DomainError{
		Code:    ErrCodeReplayNotAllowed,
		Message: fmt.Sprintf("decision %d cannot be replayed while latest attempt is %s", decisionID, current),
	}
}

func NewUnknownCorrelationKeyError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownCorrelationKey,
		Message: fmt.Sprintf("no dispatched order matches correlation key %q", key),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// StateError reports a status transition attempted from the wrong source state.
// It always indicates a consistency bug; the store leaves data unchanged.
type StateError struct {
	Op        string
	RequestID string
	Current   Status
	Expected  Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: payment request %s is %s, expected %s", e.Op, e.RequestID, e.Current, e.Expected)
}

func NewStateError(op, requestID string, current, expected Status) *StateError {
	return &StateError{Op: op, RequestID: requestID, Current: current, Expected: expected}
}

func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// ProtocolError reports a payload that is not structurally valid wire data.
type ProtocolError struct {
	Payload []byte
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed settlement payload: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}
