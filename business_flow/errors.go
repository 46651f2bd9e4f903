// Package businessflow contains the core business logic and use cases for campaign orchestration workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Dispatch-related errors
	ErrEmptyMessage      = errors.New("message body is empty")
	ErrNoTargets         = errors.New("no targets selected")
	ErrDispatchInFlight  = errors.New("a dispatch is already in flight for one or more targets")
	ErrDispatchTransport = errors.New("dispatch request could not be delivered to the send backend")
	ErrCampaignNotFound  = errors.New("campaign not found")

	// Target-related errors
	ErrTargetNotFound      = errors.New("target not found")
	ErrTargetAlreadyExists = errors.New("target already exists")
	ErrTargetInputRequired = errors.New("target input is required")

	// Verification-related errors
	ErrVerificationInProgress = errors.New("verification still in progress")
	ErrResolveFailed          = errors.New("target could not be resolved")

	// Report-related errors
	ErrReportEmpty = errors.New("no delivery log rows match the report filter")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsEmptyMessage(err error) bool {
	return errors.Is(err, ErrEmptyMessage)
}

func IsNoTargets(err error) bool {
	return errors.Is(err, ErrNoTargets)
}

func IsDispatchInFlight(err error) bool {
	return errors.Is(err, ErrDispatchInFlight)
}

func IsDispatchTransport(err error) bool {
	return errors.Is(err, ErrDispatchTransport)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsTargetNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound)
}

func IsTargetAlreadyExists(err error) bool {
	return errors.Is(err, ErrTargetAlreadyExists)
}

func IsTargetInputRequired(err error) bool {
	return errors.Is(err, ErrTargetInputRequired)
}

func IsVerificationInProgress(err error) bool {
	return errors.Is(err, ErrVerificationInProgress)
}

func IsResolveFailed(err error) bool {
	return errors.Is(err, ErrResolveFailed)
}

func IsReportEmpty(err error) bool {
	return errors.Is(err, ErrReportEmpty)
}
