package logging

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory classifies a failure by the subsystem it came from
type ErrorCategory string

const (
	// Configuration document load or validation
	ErrorCategoryConfig ErrorCategory = "config"
	// Persisted settings store reads and writes
	ErrorCategorySettings ErrorCategory = "settings"
	// Service lifecycle (install, uninstall, run)
	ErrorCategoryService ErrorCategory = "service"
	// Bridge server setup and listening
	ErrorCategoryBridge ErrorCategory = "bridge"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	// The process cannot continue
	ErrorSeverityCritical ErrorSeverity = "critical"
	// The requested action failed
	ErrorSeverityHigh ErrorSeverity = "high"
	// A fallback was taken
	ErrorSeverityLow ErrorSeverity = "low"
)

// ErrorContext provides additional context for error logging
type ErrorContext struct {
	Category  ErrorCategory          `json:"category"`
	Severity  ErrorSeverity          `json:"severity"`
	Operation string                 `json:"operation"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StructuredError represents a structured error with context
type StructuredError struct {
	Err       error        `json:"error"`
	Context   ErrorContext `json:"context"`
	Timestamp time.Time    `json:"timestamp"`
	Stack     string       `json:"stack,omitempty"`
}

// Error implements the error interface
func (se *StructuredError) Error() string {
	if se.Err != nil {
		return se.Err.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error
func (se *StructuredError) Unwrap() error {
	return se.Err
}

// NewStructuredError creates a new structured error with context
func NewStructuredError(err error, context ErrorContext) *StructuredError {
	structuredErr := &StructuredError{
		Err:       err,
		Context:   context,
		Timestamp: time.Now(),
	}

	if context.Severity == ErrorSeverityCritical {
		structuredErr.Stack = captureStackTrace()
	}

	return structuredErr
}

// LogError records err with its context at a level matching the severity and
// returns the structured error so callers can propagate it.
func (c *Context) LogError(err error, context ErrorContext) *StructuredError {
	if err == nil {
		return nil
	}

	structuredErr := NewStructuredError(err, context)

	entry := c.logger.WithFields(logrus.Fields{
		"error_category": context.Category,
		"error_severity": context.Severity,
		"operation":      context.Operation,
	})
	for key, value := range context.Metadata {
		entry = entry.WithField(key, value)
	}
	if structuredErr.Stack != "" {
		entry = entry.WithField("stack_trace", structuredErr.Stack)
	}

	switch context.Severity {
	case ErrorSeverityLow:
		entry.Warn(structuredErr.Error())
	default:
		entry.Error(structuredErr.Error())
	}

	return structuredErr
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
