package errors

import "net/http"

// StatusCode maps an error to its HTTP status. Insufficient slots is a
// well-formed request the engine understood but cannot render, hence 422
// rather than 400.
func StatusCode(err error) int {
	enhanced, ok := err.(*EnhancedError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch enhanced.Code {
	case ErrCodeInvalidInput, ErrCodeMissingRequired, ErrCodeInvalidDate, ErrCodeUnknownAreaType:
		return http.StatusBadRequest
	case ErrCodeInsufficientSlots:
		return http.StatusUnprocessableEntity
	case ErrCodeEntityNotFound, ErrCodeUnknownCategory:
		return http.StatusNotFound
	case ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeUpstreamExecution, ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Payload shapes an error into the API error envelope
func Payload(err error) map[string]interface{} {
	enhanced, ok := err.(*EnhancedError)
	if !ok {
		return map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		}
	}

	inner := map[string]interface{}{
		"code":    enhanced.Code,
		"message": enhanced.Message,
	}
	if enhanced.Details != "" {
		inner["details"] = enhanced.Details
	}
	if enhanced.Suggestion != "" {
		inner["suggestion"] = enhanced.Suggestion
	}
	if enhanced.Documentation != "" {
		inner["documentation"] = enhanced.Documentation
	}
	if len(enhanced.Metadata) > 0 {
		inner["metadata"] = enhanced.Metadata
	}
	return map[string]interface{}{"error": inner}
}
