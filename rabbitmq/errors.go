package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/wait"
)

// Error represents an AMQP error
type Error struct {
	Code     int
	Reason   string
	Server   bool // true if error originated from server
	Recover  bool // true if the connection survives the error
	ClassID  uint16
	MethodID uint16
}

// Error implements the error interface
func (e *Error) Error() string {
	origin := "client"
	if e.Server {
		origin = "server"
	}
	if e.ClassID != 0 {
		return fmt.Sprintf("AMQP error %d (%s): %s (method %d.%d)", e.Code, origin, e.Reason, e.ClassID, e.MethodID)
	}
	return fmt.Sprintf("AMQP error %d (%s): %s", e.Code, origin, e.Reason)
}

// Is matches another *Error with the same reply code, so a broker's
// 404 satisfies errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Predefined errors matching AMQP reply codes
var (
	ErrClosed = &Error{
		Code:   protocol.ReplyConnectionForced,
		Reason: "connection closed",
	}

	ErrChannelClosed = &Error{
		Code:   protocol.ReplyChannelError,
		Reason: "channel closed",
	}

	ErrNotFound = &Error{
		Code:    protocol.ReplyNotFound,
		Reason:  "resource not found",
		Server:  true,
		Recover: true,
	}

	ErrAccessRefused = &Error{
		Code:    protocol.ReplyAccessRefused,
		Reason:  "access refused",
		Server:  true,
		Recover: true,
	}

	ErrPreconditionFailed = &Error{
		Code:    protocol.ReplyPreconditionFailed,
		Reason:  "precondition failed",
		Server:  true,
		Recover: true,
	}

	ErrResourceLocked = &Error{
		Code:    protocol.ReplyResourceLocked,
		Reason:  "resource locked",
		Server:  true,
		Recover: true,
	}

	ErrNoRoute = &Error{
		Code:    protocol.ReplyNoRoute,
		Reason:  "no route",
		Server:  true,
		Recover: true,
	}

	ErrCommandInvalid = &Error{
		Code:   protocol.ReplyCommandInvalid,
		Reason: "command invalid",
		Server: true,
	}

	ErrUnexpectedFrame = &Error{
		Code:   protocol.ReplyUnexpectedFrame,
		Reason: "unexpected frame",
		Server: true,
	}

	ErrNotAllowed = &Error{
		Code:   protocol.ReplyNotAllowed,
		Reason: "not allowed",
		Server: true,
	}
)

// NewError creates a new Error from reply code and text
func NewError(code int, reason string, server bool) *Error {
	return &Error{
		Code:    code,
		Reason:  reason,
		Server:  server,
		Recover: protocol.IsSoftError(code),
	}
}

func newServerError(code uint16, text string, classID, methodID uint16) *Error {
	e := NewError(int(code), text, true)
	e.ClassID = classID
	e.MethodID = methodID
	return e
}

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("amqp: timeout")

	// ErrConnectionLost matches every *ConnectionLostError.
	ErrConnectionLost = errors.New("amqp: connection lost")

	// ErrFlowBlocked is returned by Publish while the broker has paused the
	// channel with channel.flow.
	ErrFlowBlocked = errors.New("amqp: publishing paused by channel.flow")

	// ErrMissedHeartbeats is the cause recorded when the peer goes silent.
	ErrMissedHeartbeats = errors.New("amqp: missed heartbeats from peer")

	ErrFraming           = frame.ErrFraming
	ErrPayloadTooLarge   = frame.ErrPayloadTooLarge
	ErrProtocolViolation = frame.ErrProtocolViolation
	ErrProtocolMismatch  = protocol.ErrMismatch
	ErrInterrupted       = wait.ErrInterrupted
)

// TimeoutError reports a deadline that expired before an operation finished.
//
// The outcome is ambiguous. A method that was fully written may still take
// effect on the broker, and its late reply is discarded. Callers decide
// whether to retry, the library never does. Partial is set when the deadline
// cut a frame in half; the connection is torn down in that case.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Partial bool
	Err     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("amqp: %s timed out after %v", e.Op, e.Timeout)
	if e.Partial {
		msg += " (frame partially written, connection closed)"
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ConnectionLostError is delivered to every outstanding wait when the
// connection fails.
type ConnectionLostError struct {
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause == nil {
		return ErrConnectionLost.Error()
	}
	return fmt.Sprintf("%v: %v", ErrConnectionLost, e.Cause)
}

func (e *ConnectionLostError) Unwrap() error { return e.Cause }

// Is matches ErrConnectionLost.
func (e *ConnectionLostError) Is(target error) bool { return target == ErrConnectionLost }

// Outcome classifies the result of an operation.
type Outcome int

const (
	// OutcomeOK means the operation completed.
	OutcomeOK Outcome = iota
	// OutcomeAmbiguous means the operation may or may not have taken effect.
	OutcomeAmbiguous
	// OutcomeRecoverable means the operation failed but the connection is usable.
	OutcomeRecoverable
	// OutcomeFatal means the connection is gone.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// OutcomeOf classifies err.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		if te.Partial {
			return OutcomeFatal
		}
		return OutcomeAmbiguous
	}

	switch {
	case errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrFraming),
		errors.Is(err, ErrProtocolViolation),
		errors.Is(err, ErrProtocolMismatch):
		return OutcomeFatal
	case errors.Is(err, ErrFlowBlocked),
		errors.Is(err, ErrInterrupted),
		errors.Is(err, ErrPayloadTooLarge),
		errors.Is(err, ErrAutoAcked),
		errors.Is(err, context.Canceled):
		return OutcomeRecoverable
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeAmbiguous
	}

	var amqpErr *Error
	if errors.As(err, &amqpErr) {
		if amqpErr == ErrClosed {
			return OutcomeFatal
		}
		if amqpErr.Recover || amqpErr == ErrChannelClosed {
			return OutcomeRecoverable
		}
	}
	return OutcomeFatal
}

// ErrorHandler handles connection and channel errors
type ErrorHandler interface {
	HandleConnectionError(conn *Connection, err error)
	HandleChannelError(ch *Channel, err error)
	HandleConsumerError(ch *Channel, consumerTag string, err error)
	HandleReturnListenerError(ch *Channel, err error)
	HandleConfirmListenerError(ch *Channel, err error)
}

// DefaultErrorHandler logs errors through zap
type DefaultErrorHandler struct {
	Logger *zap.Logger
}

func (deh *DefaultErrorHandler) logger() *zap.Logger {
	if deh.Logger == nil {
		return zap.NewNop()
	}
	return deh.Logger
}

// HandleConnectionError logs connection errors
func (deh *DefaultErrorHandler) HandleConnectionError(conn *Connection, err error) {
	deh.logger().Error("connection error", zap.Error(err))
}

// HandleChannelError logs channel errors
func (deh *DefaultErrorHandler) HandleChannelError(ch *Channel, err error) {
	deh.logger().Warn("channel error", zap.Uint16("channel", ch.id), zap.Error(err))
}

// HandleConsumerError logs consumer errors
func (deh *DefaultErrorHandler) HandleConsumerError(ch *Channel, consumerTag string, err error) {
	deh.logger().Warn("consumer error",
		zap.Uint16("channel", ch.id),
		zap.String("consumer_tag", consumerTag),
		zap.Error(err))
}

// HandleReturnListenerError logs return listener errors
func (deh *DefaultErrorHandler) HandleReturnListenerError(ch *Channel, err error) {
	deh.logger().Warn("return listener error", zap.Uint16("channel", ch.id), zap.Error(err))
}

// HandleConfirmListenerError logs confirm listener errors
func (deh *DefaultErrorHandler) HandleConfirmListenerError(ch *Channel, err error) {
	deh.logger().Warn("confirm listener error", zap.Uint16("channel", ch.id), zap.Error(err))
}

// panicError converts a recovered listener panic to an error
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("listener panic: %w", err)
	}
	return fmt.Errorf("listener panic: %v", r)
}
