package pump

import (
	stderrors "errors"

	"github.com/infigaming-com/go-sqs-transport/errors"
)

var (
	ErrNotInitialized     = stderrors.New("pump: not initialized")
	ErrAlreadyRunning     = stderrors.New("pump: already running")
	ErrStopping           = stderrors.New("pump: previous run is still draining")
	ErrInvalidConcurrency = stderrors.New("pump: concurrency must be positive")
	ErrNilHandler         = stderrors.New("pump: handler is required")
)

const (
	ErrCodeHandlerFailed = 30000 + iota
	ErrCodeHandlerPanic
)

// HandlerError is the outcome error of a failed handler invocation.
type HandlerError struct {
	baseErr *errors.Error
}

func NewHandlerError(code int64, message string, cause error) *HandlerError {
	return &HandlerError{
		baseErr: errors.NewError(code, message, cause),
	}
}

func (e *HandlerError) Error() string {
	return e.baseErr.Error()
}

func (e *HandlerError) GetCode() int64 {
	return e.baseErr.GetCode()
}

func (e *HandlerError) GetMessage() string {
	return e.baseErr.GetMessage()
}

func (e *HandlerError) Unwrap() error {
	return e.baseErr.Unwrap()
}
