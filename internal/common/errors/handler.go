package errors

// ErrorHandler normalizes errors raised while serving a request and logs them.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Resolve converts err to a StandardError and returns the HTTP status to
// answer with. Client errors are logged at warn, everything else at error.
func (h *ErrorHandler) Resolve(operation string, err error) (int, *StandardError) {
	stdErr := h.normalizeError(operation, err)
	status := stdErr.HTTPStatus()
	h.logError(operation, status, stdErr)
	return status, stdErr
}

func (h *ErrorHandler) normalizeError(operation string, err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(operation, err)
}

func (h *ErrorHandler) logError(operation string, status int, stdErr *StandardError) {
	if h.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"operation": operation,
		"status":    status,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
	}
	if stdErr.Details != "" {
		fields["details"] = stdErr.Details
	}

	if status < 500 {
		h.logger.Warn("request rejected", fields)
		return
	}
	h.logger.Error("request failed", fields)
}
