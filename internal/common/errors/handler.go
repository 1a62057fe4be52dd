// internal/common/errors/handler.go
package errors

// ErrorHandler turns pipeline failures into logged, structured responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorResponse is the failure body of the web surface.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// Handle logs err and returns the HTTP status and body to send.
func (h *ErrorHandler) Handle(operation string, err error) (int, ErrorResponse) {
	stdErr := Normalize(err)
	h.logError(operation, stdErr)
	return HTTPStatus(stdErr.Code), ErrorResponse{
		Error: UserMessage(stdErr),
		Code:  stdErr.Code,
	}
}

func (h *ErrorHandler) logError(operation string, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	h.logger.Error("request failed", fields)
}
