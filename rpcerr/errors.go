// Package rpcerr defines the exception taxonomy exchanged over the wire
// between an RPC/event caller and the service handling its request:
// typed client-error conditions (BadRequest and its specializations),
// RemoteError as the generic fallback for anything not registered
// locally, and the serialize/deserialize pair that converts between a Go
// error and the {exc_type, exc_path, exc_args, value} payload a remote
// process can decode without importing this package's concrete types.
package rpcerr

import "fmt"

// BadRequest is the base of every client-error condition an entrypoint
// can raise about a malformed incoming call, matching BadRequest.
type BadRequest struct{ msg string }

func NewBadRequest(msg string) *BadRequest { return &BadRequest{msg: msg} }
func (e *BadRequest) Error() string        { return e.msg }
func (e *BadRequest) ExcArgs() []any        { return []any{e.msg} }

// MalformedRequest is raised when a message body can't be decoded at
// all (e.g. the serializer rejects it), matching MalformedRequest.
type MalformedRequest struct{ *BadRequest }

func NewMalformedRequest(msg string) *MalformedRequest {
	return &MalformedRequest{NewBadRequest(msg)}
}

// MethodNotFound is raised when an RPC call names a method the target
// service doesn't expose, matching MethodNotFound.
type MethodNotFound struct {
	*BadRequest
	Method string
}

func NewMethodNotFound(method string) *MethodNotFound {
	return &MethodNotFound{
		BadRequest: NewBadRequest(fmt.Sprintf("method not found: %s", method)),
		Method:     method,
	}
}

func (e *MethodNotFound) ExcArgs() []any { return []any{e.Method} }

// IncorrectSignature is raised when an RPC call's arguments don't bind
// against the target method's signature, matching IncorrectSignature.
type IncorrectSignature struct{ *BadRequest }

func NewIncorrectSignature(msg string) *IncorrectSignature {
	return &IncorrectSignature{NewBadRequest(msg)}
}

// UnknownService is raised by a MethodProxy when a mandatory RPC request
// is returned undeliverable by the broker - no consumer is bound to the
// target service's routing key - matching UnknownService.
type UnknownService struct{ ServiceName string }

func (e *UnknownService) Error() string {
	return fmt.Sprintf("unknown service %q", e.ServiceName)
}
func (e *UnknownService) ExcArgs() []any { return []any{e.ServiceName} }

// UnserializableValueError is raised by a Responder when a worker's
// result can't be encoded for the wire, matching UnserializableValueError.
type UnserializableValueError struct{ Value any }

func (e *UnserializableValueError) Error() string {
	return fmt.Sprintf("value of type %T is not serializable", e.Value)
}

// RemoteError wraps an exception raised by a remote service whose exc_path
// isn't registered locally via MustRegister, matching the generic branch
// of deserialize(). ExcType is kept for display even though the concrete
// remote type is unknown here.
type RemoteError struct {
	ExcType string
	Value   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%s): %s", e.ExcType, e.Value)
}

// argString returns args[0] as a string, or "" if args is empty or its
// first element isn't a string - tolerant decoding for a payload that
// crossed the wire as loosely-typed JSON.
func argString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	s, _ := args[0].(string)
	return s
}

func init() {
	MustRegister(ExcPath(&MalformedRequest{}), func(p Payload) error {
		return NewMalformedRequest(argString(p.ExcArgs))
	})
	MustRegister(ExcPath(&MethodNotFound{}), func(p Payload) error {
		return NewMethodNotFound(argString(p.ExcArgs))
	})
	MustRegister(ExcPath(&IncorrectSignature{}), func(p Payload) error {
		return NewIncorrectSignature(argString(p.ExcArgs))
	})
	MustRegister(ExcPath(&UnknownService{}), func(p Payload) error {
		return &UnknownService{ServiceName: argString(p.ExcArgs)}
	})
	MustRegister(ExcPath(&UnserializableValueError{}), func(p Payload) error {
		return &UnserializableValueError{Value: argString(p.ExcArgs)}
	})
}
