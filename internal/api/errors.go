package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation   = "validation_error"
	ErrTypeInvalidJSON  = "invalid_json"
	ErrTypeUnauthorized = "unauthorized"
	ErrTypeRunNotFound  = "run_not_found"
	ErrTypeNotFinished  = "run_not_finished"
	ErrTypeScript       = "script_error"
	ErrTypeTimeout      = "timeout"
	ErrTypeStorage      = "storage_error"
	ErrTypeInternal     = "internal_error"
)

// ErrorCategory groups error types for logging
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryRun        ErrorCategory = "run"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidJSON, ErrTypeUnauthorized, ErrTypeScript:
		return CategoryValidation
	case ErrTypeRunNotFound, ErrTypeNotFinished:
		return CategoryRun
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler logs and writes structured errors
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Write sends err with the given status. Plain errors become internal errors.
func (eh *ErrorHandler) Write(w http.ResponseWriter, r *http.Request, status int, err error) {
	engineErr, ok := err.(EngineError)
	if !ok {
		engineErr = NewError(ErrTypeInternal, err.Error()).Build()
	}
	if engineErr.RequestID == "" {
		engineErr.RequestID = middleware.GetReqID(r.Context())
	}
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// Validation writes a 400 for a bad field
func (eh *ErrorHandler) Validation(w http.ResponseWriter, r *http.Request, field, message string) {
	eh.Write(w, r, http.StatusBadRequest, NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithContext("field", field).
		Build())
}

func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)
	keyvals := []any{
		"type", engineErr.Type,
		"category", category,
		"status", status,
		"request_id", engineErr.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
	}
	for key, value := range engineErr.Context {
		// Never log raw seeds or scripts
		if key == "seed" || key == "script" {
			continue
		}
		keyvals = append(keyvals, key, value)
	}

	if category == CategoryValidation || category == CategoryRun || status < 500 {
		eh.logger.Warn(engineErr.Message, keyvals...)
		return
	}
	eh.logger.Error(engineErr.Message, keyvals...)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("write error response", "err", err)
	}
}

// RecoveryHandler turns panics into structured 500 responses
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic recovered", "request_id", requestID, "path", r.URL.Path, "method", r.Method, "panic", rvr)

				eh.writeErrorResponse(w, http.StatusInternalServerError, NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
