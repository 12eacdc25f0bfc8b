// Package services provides the business logic layer between handlers and
// the status store: submission recording and the dashboard read views.
package services

// Service error codes, mapped to HTTP statuses by the handlers
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeStorageError    = "STORAGE_ERROR"
	CodeNotFound        = "NOT_FOUND"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// wrapServiceError creates a ServiceError carrying its cause
func wrapServiceError(code, message string, err error) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
