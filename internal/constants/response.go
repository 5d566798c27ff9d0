package constants

// Standard Response Field Keys
const (
	ResponseFieldError   = "error"
	ResponseFieldCode    = "code"
	ResponseFieldMessage = "message"
	ResponseFieldDetails = "details"
)

// BuildErrorResponse produces the error envelope `{"error":{"code","message"}}`.
// Extra entries (rateLimited, timeLeft, requiresVerification, expired, ...)
// are merged into the error object.
func BuildErrorResponse(code, message string, extras ...map[string]any) map[string]any {
	errObj := map[string]any{
		ResponseFieldCode:    code,
		ResponseFieldMessage: message,
	}

	for _, extra := range extras {
		for k, v := range extra {
			errObj[k] = v
		}
	}

	return map[string]any{
		ResponseFieldError: errObj,
	}
}

// BuildErrorResponseWithDetails attaches internal detail to the envelope.
// Only used when the app runs in debug mode.
func BuildErrorResponseWithDetails(code, message string, details any) map[string]any {
	response := BuildErrorResponse(code, message)
	response[ResponseFieldError].(map[string]any)[ResponseFieldDetails] = details
	return response
}

func BuildSuccessResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldMessage: message,
	}
}
