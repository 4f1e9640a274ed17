package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an ocrdesk error code.
type ErrorCode string

const (
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"           // 400
	ErrNotFound                 ErrorCode = "NOT_FOUND"                 // 404
	ErrFileNotFound             ErrorCode = "FILE_NOT_FOUND"            // 404
	ErrDuplicate                ErrorCode = "DUPLICATE"                 // 409, reported to users as "skipped"
	ErrExtractionFailed         ErrorCode = "EXTRACTION_FAILED"         // 422
	ErrSummarizationFailed      ErrorCode = "SUMMARIZATION_FAILED"      // 502
	ErrSummarizationUnavailable ErrorCode = "SUMMARIZATION_UNAVAILABLE" // 503
	ErrInternal                 ErrorCode = "INTERNAL"                  // 500
)

// DeskError represents a structured error with code, status, and details.
type DeskError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DeskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DeskError {
	return &DeskError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a record id that does not exist.
func NewNotFound(id int64) *DeskError {
	return &DeskError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *DeskError {
	return &DeskError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewDuplicate creates a 409 error when a content hash is already stored.
func NewDuplicate(hash string) *DeskError {
	return &DeskError{
		Code:    ErrDuplicate,
		Status:  409,
		Message: fmt.Sprintf("document already processed: %s", hash),
		Details: map[string]any{"content_hash": hash},
	}
}

// NewExtractionFailed creates a 422 error for OCR or rasterization failures.
func NewExtractionFailed(path string, err error) *DeskError {
	msg := "text extraction failed"
	if err != nil {
		msg = fmt.Sprintf("text extraction failed: %v", err)
	}
	return &DeskError{
		Code:    ErrExtractionFailed,
		Status:  422,
		Message: msg,
		Details: map[string]any{"path": path},
	}
}

// NewMissingTool creates a 422 error when a required external program is not installed.
func NewMissingTool(tool string) *DeskError {
	return &DeskError{
		Code:    ErrExtractionFailed,
		Status:  422,
		Message: fmt.Sprintf("required tool not found on PATH: %s", tool),
		Details: map[string]any{"missing_tool": tool},
	}
}

// NewSummarizationUnavailable creates a 503 error when no LLM credential is configured.
func NewSummarizationUnavailable() *DeskError {
	return &DeskError{
		Code:    ErrSummarizationUnavailable,
		Status:  503,
		Message: "summarization is not configured: set OPENAI_API_KEY or llm_api_key",
	}
}

// NewSummarizationFailed creates a 502 error after the LLM endpoint kept failing.
func NewSummarizationFailed(err error) *DeskError {
	msg := "summarization failed"
	if err != nil {
		msg = fmt.Sprintf("summarization failed: %v", err)
	}
	return &DeskError{
		Code:    ErrSummarizationFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DeskError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DeskError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is, or wraps, a DeskError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DeskError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// As returns the DeskError in err's chain, if any.
func As(err error) (*DeskError, bool) {
	var dErr *DeskError
	if stderrors.As(err, &dErr) {
		return dErr, true
	}
	return nil, false
}
