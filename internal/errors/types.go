package errors

import "errors"

var (
	ErrManifestNotFound    = errors.New("manifest file not found")
	ErrManifestParseFailed = errors.New("manifest parsing failed")
	ErrExecutionFailed     = errors.New("command execution failed")
	ErrEngineFailed        = errors.New("container engine operation failed")
	ErrExtractFailed       = errors.New("image extraction failed")
	ErrSourceFailed        = errors.New("build source fetch failed")
	ErrConfigInvalid       = errors.New("configuration invalid")
	ErrFileSystemFailed    = errors.New("filesystem operation failed")
)

// LensError carries the user-facing context, cause, and suggestion for a
// failure alongside the original error and its broad type.
type LensError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *LensError) Error() string {
	return e.OriginalErr.Error()
}

func (e *LensError) Unwrap() error {
	return e.OriginalErr
}

func NewLensError(errorType error, context, cause, suggestion string, originalErr error) *LensError {
	return &LensError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewManifestError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrManifestNotFound, context, cause, suggestion, originalErr)
}

func NewParseError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrManifestParseFailed, context, cause, suggestion, originalErr)
}

func NewExecutionError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrExecutionFailed, context, cause, suggestion, originalErr)
}

func NewEngineError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrEngineFailed, context, cause, suggestion, originalErr)
}

func NewExtractError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrExtractFailed, context, cause, suggestion, originalErr)
}

func NewSourceError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrSourceFailed, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewFileSystemError(context, cause, suggestion string, originalErr error) *LensError {
	return NewLensError(ErrFileSystemFailed, context, cause, suggestion, originalErr)
}
