// Package exception provides the error type and error classification used by
// the flow engine. Errors carry a retry flag and can be matched by a
// registered name, which is how transition rules and retry policies refer to them.
package exception

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// Error names understood by transition rules and retry policies.
const (
	// StatesAll matches any error.
	StatesAll = "States.ALL"
	// StatesTimeout is raised when a step exceeds its timeout.
	StatesTimeout = "States.Timeout"
	// StatesTaskFailed is raised when an external job reports a terminal failure.
	StatesTaskFailed = "States.TaskFailed"

	ServiceUnavailable                = "ServiceUnavailable"
	ThrottlingException               = "ThrottlingException"
	TooManyRequestsException          = "TooManyRequestsException"
	ServiceException                  = "ServiceException"
	ClientTransportError              = "ClientTransportError"
	ValidationError                   = "ValidationError"
	ContextKeyExists                  = "ContextKeyExists"
	OptimisticLockingFailureException = "OptimisticLockingFailureException"
)

var (
	// ErrStepTimeout marks a step that ran past its timeout.
	ErrStepTimeout = errors.New(StatesTimeout)
	// ErrTaskFailed marks an external job that finished in a failed state.
	ErrTaskFailed = errors.New(StatesTaskFailed)
	// ErrServiceUnavailable marks a transient service-side failure.
	ErrServiceUnavailable = errors.New(ServiceUnavailable)
	// ErrThrottling marks a throttled request.
	ErrThrottling = errors.New(ThrottlingException)
	// ErrTooManyRequests marks a request rejected for rate reasons.
	ErrTooManyRequests = errors.New(TooManyRequestsException)
	// ErrService marks a generic service exception.
	ErrService = errors.New(ServiceException)
	// ErrClientTransport marks a client-side transport failure.
	ErrClientTransport = errors.New(ClientTransportError)
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New(ValidationError)
	// ErrContextKeyExists is returned when a run context key is written twice.
	ErrContextKeyExists = errors.New(ContextKeyExists)
	// ErrOptimisticLockingFailure indicates a concurrent update of a persisted record.
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)
)

// errorRegistry maps error names used in configuration and transition rules to sentinel errors.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers a sentinel under a name so IsErrorOfType can match it with errors.Is.
// It panics on an empty name or nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// FlowError is the error type raised by steps and adapters.
// It records the module where the error occurred and whether it may be retried.
type FlowError struct {
	// Module indicates where the error occurred (e.g., "normalizer", "glue", "runner").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	isRetryable bool
	// StackTrace is the stack trace at the time of the error.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewFlowError creates a new FlowError.
func NewFlowError(module, message string, originalErr error, isRetryable bool) *FlowError {
	return &FlowError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  captureStack(),
	}
}

// NewFlowErrorf creates a FlowError using a format string.
// Optional trailing arguments are extracted from the end of a, in this order:
// [originalErr error], then [isRetryable bool].
// The remaining arguments are passed to fmt.Sprintf.
//
// Example:
//
//	NewFlowErrorf("glue", "job run %s ended in %s", id, state, exception.ErrTaskFailed)
func NewFlowErrorf(module, format string, a ...interface{}) *FlowError {
	var originalErr error
	isRetryable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}

	return &FlowError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  captureStack(),
	}
}

// NewValidationError creates a non-retryable error wrapping ErrValidation.
func NewValidationError(module, message string, cause error) *FlowError {
	if cause != nil {
		return NewFlowError(module, message, errors.Join(ErrValidation, cause), false)
	}
	return NewFlowError(module, message, ErrValidation, false)
}

// NewOptimisticLockingFailureException creates a fatal error for a lost optimistic lock.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *FlowError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	} else {
		errToWrap = ErrOptimisticLockingFailure
	}
	return NewFlowError(module, message, errToWrap, false)
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *FlowError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *FlowError) IsRetryable() bool {
	return e.isRetryable
}

// IsErrorOfType checks if err matches errorTypeName.
// A registered name matches only through errors.Is against its sentinel, so an
// error whose message merely mentions the name does not match. An unregistered
// name is compared with the Go type names in the chain, such as
// "*smithy.OperationError". "States.ALL" matches every non-nil error.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}
	if errorTypeName == StatesAll {
		return true
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok {
		return errors.Is(err, targetError)
	}

	for currentErr := err; currentErr != nil; currentErr = errors.Unwrap(currentErr) {
		errType := reflect.TypeOf(currentErr)
		if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
			return true
		}
	}
	return false
}

// ErrorName returns the registered name that best describes err, falling back to "States.TaskFailed".
// It is what gets written into a failed run's error record.
func ErrorName(err error) string {
	for _, name := range []string{
		StatesTimeout, ValidationError, ServiceUnavailable, ThrottlingException,
		TooManyRequestsException, ClientTransportError, ServiceException,
		ContextKeyExists, OptimisticLockingFailureException,
	} {
		registryMutex.RLock()
		target := errorRegistry[name]
		registryMutex.RUnlock()
		if target != nil && errors.Is(err, target) {
			return name
		}
	}
	return StatesTaskFailed
}

// IsOptimisticLockingFailure reports whether err indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the Message of a FlowError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if fe, ok := err.(*FlowError); ok {
		return fe.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(StatesTimeout, ErrStepTimeout)
	RegisterErrorType(StatesTaskFailed, ErrTaskFailed)
	RegisterErrorType(ServiceUnavailable, ErrServiceUnavailable)
	RegisterErrorType(ThrottlingException, ErrThrottling)
	RegisterErrorType(TooManyRequestsException, ErrTooManyRequests)
	RegisterErrorType(ServiceException, ErrService)
	RegisterErrorType(ClientTransportError, ErrClientTransport)
	RegisterErrorType(ValidationError, ErrValidation)
	RegisterErrorType(ContextKeyExists, ErrContextKeyExists)
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType(StatesAll, errors.New(StatesAll))
}
