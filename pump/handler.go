package pump

import (
	"context"

	"github.com/infigaming-com/go-sqs-transport/envelope"
)

// Outcome is the result of processing one received message. It decides
// whether the message is deleted or made visible again.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeExpired
	OutcomePoison
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeExpired:
		return "expired"
	case OutcomePoison:
		return "poison"
	default:
		return "unknown"
	}
}

// Handler processes transport messages. It is called concurrently from all
// workers and its context is not cancelled when the pump stops.
type Handler interface {
	Handle(ctx context.Context, msg *envelope.TransportMessage) error
}

type HandlerFunc func(ctx context.Context, msg *envelope.TransportMessage) error

func (f HandlerFunc) Handle(ctx context.Context, msg *envelope.TransportMessage) error {
	return f(ctx, msg)
}

type ErrorHandleResult int

const (
	ErrorHandled ErrorHandleResult = iota
	ErrorRetryRequired
)

// ErrorContext describes a failed handler invocation.
type ErrorContext struct {
	Message  *envelope.TransportMessage
	Err      error
	Attempts int
}

// ErrorHandler is recorded by Init for the hosting framework, which decides
// what happens downstream of a failure (for example dead-lettering). The
// pump itself never calls it.
type ErrorHandler func(ctx context.Context, ec ErrorContext) ErrorHandleResult

// CompletionFunc is invoked exactly once per received queue message. msg is
// nil for poison and expired messages.
type CompletionFunc func(msg *envelope.TransportMessage, err error)

// Settings are supplied to Init.
type Settings struct {
	InputQueue     string
	PurgeOnStartup bool
	// Transactional defaults to true when nil.
	Transactional *bool
}
