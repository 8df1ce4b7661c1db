package util

import "github.com/infigaming-com/go-sqs-transport/errors"

// Codes 10000+ belong to util; envelope uses 20000+ and pump 30000+.
const (
	ErrCodeValueNotFoundInContext = 10000 + iota
	ErrCodeInvalidValueInContext
)

// ContextError reports a message-scoped value that is missing from a context
// or stored with an unexpected type.
type ContextError struct {
	baseErr *errors.Error
	key     CtxKey
}

func newContextError(code int64, key CtxKey, message string) *ContextError {
	return &ContextError{
		baseErr: errors.NewError(code, message, nil).WithDetails(map[string]string{"key": string(key)}),
		key:     key,
	}
}

func (e *ContextError) Error() string {
	return e.baseErr.Error()
}

func (e *ContextError) GetCode() int64 {
	return e.baseErr.GetCode()
}

// Key is the context key that was looked up.
func (e *ContextError) Key() CtxKey {
	return e.key
}

func (e *ContextError) Unwrap() error {
	return e.baseErr.Unwrap()
}
