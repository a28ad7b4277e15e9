package publisher

import (
	"context"
	"errors"

	smithy "github.com/aws/smithy-go"

	"github.com/jonwraymond/resilientfanout/outcome"
	"github.com/jonwraymond/resilientfanout/resilience"
)

// Categorize maps a raw transport or resilience error into the pipeline's
// ErrorKind taxonomy plus a human-readable reason. Callers only invoke it
// once a publish attempt has already failed; it does not accept nil.
func Categorize(err error) (outcome.ErrorKind, string) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return outcome.ServiceUnavailable, "circuit breaker open"
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return outcome.ServiceUnavailable, "request timed out"
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidParameter", "InvalidParameterValue", "InvalidParameterValueException":
			return outcome.InvalidInput, "invalid message format or attributes"
		case "AuthorizationError", "AuthorizationErrorException":
			return outcome.AuthorizationFailure, "authorization failure"
		case "NotFound", "NotFoundException":
			return outcome.ResourceNotFound, "resource not found"
		case "Throttled", "ThrottledException", "KMSThrottling", "KMSThrottlingException":
			return outcome.Throttling, "request throttled"
		case "InternalError", "InternalErrorException":
			return outcome.ServiceUnavailable, "aws internal error"
		case "KMSOptInRequired", "KMSDisabled", "KMSAccessDenied", "KMSNotFound", "KMSInvalidState":
			return outcome.ServiceUnavailable, "kms configuration error"
		}
	}

	return outcome.Unknown, "unexpected error"
}
