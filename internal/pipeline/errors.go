package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCode is the stable classification assigned to an upstream failure.
type ErrorCode string

const (
	ErrCodeAPIKeyMissing      ErrorCode = "API_KEY_MISSING"
	ErrCodeAPIRateLimit       ErrorCode = "API_RATE_LIMIT"
	ErrCodeAPIQuotaExceeded   ErrorCode = "API_QUOTA_EXCEEDED"
	ErrCodeAPIInvalidResponse ErrorCode = "API_INVALID_RESPONSE"
	ErrCodeAPIServiceDown     ErrorCode = "API_SERVICE_DOWN"

	ErrCodeResearchFailed  ErrorCode = "RESEARCH_FAILED"
	ErrCodeScriptFailed    ErrorCode = "SCRIPT_GENERATION_FAILED"
	ErrCodeCharacterFailed ErrorCode = "CHARACTER_GENERATION_FAILED"
	ErrCodeAudioFailed     ErrorCode = "AUDIO_GENERATION_FAILED"
	ErrCodeVideoFailed     ErrorCode = "VIDEO_PROCESSING_FAILED"

	ErrCodeInvalidProjectData   ErrorCode = "INVALID_PROJECT_DATA"
	ErrCodeMissingDependencies  ErrorCode = "MISSING_DEPENDENCIES"
	ErrCodeDataCorruption       ErrorCode = "DATA_CORRUPTION"
	ErrCodeStorageUploadFailed  ErrorCode = "STORAGE_UPLOAD_FAILED"
	ErrCodeStorageQuotaExceeded ErrorCode = "STORAGE_QUOTA_EXCEEDED"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeSubscriptionRequired ErrorCode = "SUBSCRIPTION_REQUIRED"
	ErrCodeUsageLimitExceeded   ErrorCode = "USAGE_LIMIT_EXCEEDED"
	ErrCodeStageAlreadyRunning  ErrorCode = "STAGE_ALREADY_RUNNING"

	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
)

// ServiceError is a classified upstream failure. Retryable marks failures
// judged transient and safe to retry unchanged.
type ServiceError struct {
	Code            ErrorCode
	Message         string
	UserMessage     string
	Retryable       bool
	SuggestedAction string
	Detail          map[string]interface{}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsServiceError unwraps err to a *ServiceError if one is in its chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// HTTPStatusError is implemented by provider errors that carry an upstream
// HTTP status code.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// Classify maps a raw failure from the named service into a ServiceError.
// Already-classified errors pass through unchanged. Pure function of its
// inputs.
func Classify(err error, serviceName string) *ServiceError {
	if err == nil {
		return nil
	}
	if svcErr, ok := AsServiceError(err); ok {
		return svcErr
	}

	if svcErr := classifyMarker(err, serviceName); svcErr != nil {
		return svcErr
	}

	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		return classifyHTTPStatus(statusErr, serviceName)
	}

	if svcErr := classifyNetwork(err, serviceName); svcErr != nil {
		return svcErr
	}

	// Optimistic default: an unrecognized failure is assumed transient.
	return &ServiceError{
		Code:        ErrCodeUnknown,
		Message:     fmt.Sprintf("%s failed: %v", serviceName, err),
		UserMessage: fmt.Sprintf("Something went wrong during %s. Please try again.", strings.ToLower(serviceName)),
		Retryable:   true,
	}
}

func classifyHTTPStatus(statusErr HTTPStatusError, serviceName string) *ServiceError {
	status := statusErr.HTTPStatus()
	detail := map[string]interface{}{"status": status, "service": serviceName}

	switch {
	case status == 401 || status == 403:
		return &ServiceError{
			Code:            ErrCodeAPIKeyMissing,
			Message:         fmt.Sprintf("%s rejected the API key: %v", serviceName, statusErr),
			UserMessage:     "The service is not configured correctly. Please contact support.",
			Retryable:       false,
			SuggestedAction: fmt.Sprintf("Check the API key configured for %s.", serviceName),
			Detail:          detail,
		}
	case status == 429:
		return &ServiceError{
			Code:            ErrCodeAPIRateLimit,
			Message:         fmt.Sprintf("%s rate limit hit: %v", serviceName, statusErr),
			UserMessage:     "The service is receiving too many requests. Please wait a moment and try again.",
			Retryable:       true,
			SuggestedAction: "Wait about 60 seconds before retrying.",
			Detail:          detail,
		}
	case status == 402:
		return &ServiceError{
			Code:            ErrCodeAPIQuotaExceeded,
			Message:         fmt.Sprintf("%s quota exhausted: %v", serviceName, statusErr),
			UserMessage:     "The service quota has been used up for this billing period.",
			Retryable:       false,
			SuggestedAction: "Upgrade the plan or wait for the quota window to reset.",
			Detail:          detail,
		}
	case status == 408:
		return &ServiceError{
			Code:        ErrCodeTimeout,
			Message:     fmt.Sprintf("%s request timed out: %v", serviceName, statusErr),
			UserMessage: "The service took too long to respond. Please try again.",
			Retryable:   true,
			Detail:      detail,
		}
	case status >= 500:
		return &ServiceError{
			Code:            ErrCodeAPIServiceDown,
			Message:         fmt.Sprintf("%s is unavailable (HTTP %d): %v", serviceName, status, statusErr),
			UserMessage:     "The service is temporarily unavailable. Your request will be retried.",
			Retryable:       true,
			SuggestedAction: "Retry in about 5 minutes.",
			Detail:          detail,
		}
	default:
		return &ServiceError{
			Code:        ErrCodeAPIInvalidResponse,
			Message:     fmt.Sprintf("%s returned HTTP %d: %v", serviceName, status, statusErr),
			UserMessage: fmt.Sprintf("Something went wrong during %s. Please try again.", strings.ToLower(serviceName)),
			Retryable:   false,
			Detail:      detail,
		}
	}
}

// classifyMarker matches provider-specific message fragments. Content-policy
// rejections are terminal: retrying the identical request cannot succeed
// without changing the input. Voice and render failures are transient on the
// provider side.
func classifyMarker(err error, serviceName string) *ServiceError {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "content filter"):
		return &ServiceError{
			Code:            ErrCodeScriptFailed,
			Message:         fmt.Sprintf("%s blocked by content filter: %v", serviceName, err),
			UserMessage:     "The topic may contain sensitive content. Please choose a different topic.",
			Retryable:       false,
			SuggestedAction: "Rephrase the topic and create a new project.",
		}
	case strings.Contains(msg, "safety system"):
		return &ServiceError{
			Code:            ErrCodeCharacterFailed,
			Message:         fmt.Sprintf("%s rejected by safety system: %v", serviceName, err),
			UserMessage:     "An image request was rejected by the provider's safety system. Try a different description.",
			Retryable:       false,
			SuggestedAction: "Adjust the character or scene descriptions and re-run the stage.",
		}
	case strings.Contains(msg, "voice_not_found"):
		return &ServiceError{
			Code:        ErrCodeAudioFailed,
			Message:     fmt.Sprintf("%s voice unavailable: %v", serviceName, err),
			UserMessage: "The narration voice is temporarily unavailable. Your request will be retried.",
			Retryable:   true,
		}
	case strings.Contains(msg, "ffmpeg"):
		return &ServiceError{
			Code:        ErrCodeVideoFailed,
			Message:     fmt.Sprintf("%s processing error: %v", serviceName, err),
			UserMessage: "Video assembly hit a processing error. Your request will be retried.",
			Retryable:   true,
		}
	default:
		return nil
	}
}

func classifyNetwork(err error, serviceName string) *ServiceError {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout")
	if timedOut {
		return &ServiceError{
			Code:        ErrCodeTimeout,
			Message:     fmt.Sprintf("%s timed out: %v", serviceName, err),
			UserMessage: "The service took too long to respond. Please try again.",
			Retryable:   true,
		}
	}

	msg := strings.ToLower(err.Error())
	var opErr *net.OpError
	connFailed := errors.As(err, &opErr) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "broken pipe")
	if connFailed {
		return &ServiceError{
			Code:        ErrCodeNetwork,
			Message:     fmt.Sprintf("%s connection failed: %v", serviceName, err),
			UserMessage: "Could not reach the service. Please check again in a moment.",
			Retryable:   true,
		}
	}
	return nil
}
