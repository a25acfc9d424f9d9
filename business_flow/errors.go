// Package businessflow contains the core business logic and use cases of the estate registry
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Allocation errors
	ErrInvalidTenant            = errors.New("invalid tenant")
	ErrUnknownCounterKind       = errors.New("unknown counter kind")
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
	ErrAllocationUnavailable    = errors.New("sequence allocation temporarily unavailable")

	// Company errors
	ErrCompanyNotFound      = errors.New("company not found")
	ErrCompanyInactive      = errors.New("company is inactive")
	ErrCompanyNameRequired  = errors.New("company name is required")
	ErrCompanyAlreadyExists = errors.New("company already exists")
	ErrPrefixInvalid        = errors.New("prefix must be 2 to 12 letters or digits")
	ErrPrefixTaken          = errors.New("prefix already used by another company")

	// Member errors
	ErrClientNotFound         = errors.New("client not found")
	ErrMarketerNotFound       = errors.New("marketer not found")
	ErrMemberEmailExists      = errors.New("email already registered in this company")
	ErrMemberNameRequired     = errors.New("full name is required")
	ErrMemberEmailRequired    = errors.New("email is required")
	ErrMarketerOfOtherCompany = errors.New("marketer does not belong to this company")
	ErrMemberConflict         = errors.New("member conflicts with an existing row")

	// Auth errors
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminInactive     = errors.New("admin is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrInvalidAPIKey     = errors.New("invalid api key")

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

func NewBusinessErrorf(code, format string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// BusinessCode returns the code of the outermost BusinessError in err's chain
func BusinessCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsInvalidTenant(err error) bool {
	return errors.Is(err, ErrInvalidTenant)
}

func IsUnknownCounterKind(err error) bool {
	return errors.Is(err, ErrUnknownCounterKind)
}

func IsConcurrentUpdateConflict(err error) bool {
	return errors.Is(err, ErrConcurrentUpdateConflict)
}

func IsAllocationUnavailable(err error) bool {
	return errors.Is(err, ErrAllocationUnavailable)
}

func IsCompanyNotFound(err error) bool {
	return errors.Is(err, ErrCompanyNotFound)
}

func IsCompanyInactive(err error) bool {
	return errors.Is(err, ErrCompanyInactive)
}

func IsCompanyNameRequired(err error) bool {
	return errors.Is(err, ErrCompanyNameRequired)
}

func IsCompanyAlreadyExists(err error) bool {
	return errors.Is(err, ErrCompanyAlreadyExists)
}

func IsPrefixInvalid(err error) bool {
	return errors.Is(err, ErrPrefixInvalid)
}

func IsPrefixTaken(err error) bool {
	return errors.Is(err, ErrPrefixTaken)
}

func IsClientNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound)
}

func IsMarketerNotFound(err error) bool {
	return errors.Is(err, ErrMarketerNotFound)
}

func IsMemberEmailExists(err error) bool {
	return errors.Is(err, ErrMemberEmailExists)
}

func IsMemberValidation(err error) bool {
	return errors.Is(err, ErrMemberNameRequired) || errors.Is(err, ErrMemberEmailRequired)
}

func IsMemberConflict(err error) bool {
	return errors.Is(err, ErrMemberConflict)
}

func IsMarketerOfOtherCompany(err error) bool {
	return errors.Is(err, ErrMarketerOfOtherCompany)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsInvalidAPIKey(err error) bool {
	return errors.Is(err, ErrInvalidAPIKey)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
