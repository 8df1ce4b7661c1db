package envelope

import (
	stderrors "errors"

	"github.com/infigaming-com/go-sqs-transport/errors"
)

var ErrBodyTooLarge = stderrors.New("envelope: body too large to send inline")

const (
	ErrCodeMalformedEnvelope = 20000 + iota
	ErrCodeMissingMessageID
	ErrCodeInvalidTimeToBeReceived
	ErrCodeBodyUnavailable
)

// DecodeError marks a queue message that can never be turned into a
// transport message.
type DecodeError struct {
	baseErr *errors.Error
}

func NewDecodeError(code int64, message string, cause error) *DecodeError {
	return &DecodeError{
		baseErr: errors.NewError(code, message, cause),
	}
}

func (e *DecodeError) Error() string {
	return e.baseErr.Error()
}

func (e *DecodeError) GetCode() int64 {
	return e.baseErr.GetCode()
}

func (e *DecodeError) GetMessage() string {
	return e.baseErr.GetMessage()
}

func (e *DecodeError) Unwrap() error {
	return e.baseErr.Unwrap()
}
