package aws

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// apiErrorKinds maps service error codes to the retryable error kinds.
var apiErrorKinds = map[string]error{
	"ServiceUnavailable":          exception.ErrServiceUnavailable,
	"ServiceUnavailableException": exception.ErrServiceUnavailable,
	"ThrottlingException":         exception.ErrThrottling,
	"Throttling":                  exception.ErrThrottling,
	"RequestLimitExceeded":        exception.ErrThrottling,
	"TooManyRequestsException":    exception.ErrTooManyRequests,
	"ServiceException":            exception.ErrService,
	"InternalFailure":             exception.ErrService,
	"InternalServerError":         exception.ErrService,
	"InternalServiceError":        exception.ErrService,
}

// Classify tags err with the registered error kind it corresponds to, so retry
// policies and catch rules can match it by name. Unrecognized errors are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := apiErrorKinds[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %w", kind, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", exception.ErrClientTransport, err)
	}
	return err
}

// IsValidationMessage reports whether err is a ValidationException whose message contains text.
func IsValidationMessage(err error, text string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationException" && strings.Contains(apiErr.ErrorMessage(), text)
}
