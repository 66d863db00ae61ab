package extension

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrIncorrectSignature is returned by CheckSignature when the supplied
// args/kwargs cannot be bound against the target method, mirroring
// IncorrectSignature.
var ErrIncorrectSignature = errors.New("incorrect signature")

// ExceptionMatcher reports whether err is one of the "expected" exceptions
// an entrypoint declares - errors a caller may legitimately trigger (bad
// arguments, a missing record) as opposed to a bug in the service. Kept as
// a predicate rather than a type list since Go errors are frequently
// wrapped.
type ExceptionMatcher func(err error) bool

// Entrypoint is anything that spawns workers in reaction to an external
// event: an AMQP message, a timer tick, an HTTP request. method_name on
// the original becomes MethodName here, bound once at construction time
// instead of via a later bind(container, method_name) call.
type Entrypoint interface {
	Extension
	MethodName() string
	// IsExpected reports whether err is declared as an expected exception
	// for this entrypoint, see ExceptionMatcher.
	IsExpected(err error) bool
	// SensitiveArguments lists argument names (or dotted paths into a
	// struct/map argument) that must be redacted before being logged,
	// matching get_redacted_args' targets.
	SensitiveArguments() []string
}

// BaseEntrypoint implements the bookkeeping shared by every entrypoint:
// the bound method name, expected-exception matchers and sensitive
// argument paths. Embed it and add Start/Stop to get a concrete
// entrypoint.
type BaseEntrypoint struct {
	Base

	Method    string
	Expected  []ExceptionMatcher
	Sensitive []string
}

func (e *BaseEntrypoint) MethodName() string { return e.Method }

func (e *BaseEntrypoint) IsExpected(err error) bool {
	if err == nil {
		return false
	}
	for _, match := range e.Expected {
		if match != nil && match(err) {
			return true
		}
	}
	return false
}

func (e *BaseEntrypoint) SensitiveArguments() []string { return e.Sensitive }

// CheckSignature verifies that args can be bound against handler's
// parameter list without invoking it, the Go analogue of check_signature's
// inspect.getcallargs probe (which also only binds, never calls).
func CheckSignature(handler reflect.Value, args []any) error {
	t := handler.Type()
	if t.Kind() != reflect.Func {
		return fmt.Errorf("%w: handler is not a function", ErrIncorrectSignature)
	}
	if !t.IsVariadic() && len(args) != t.NumIn() {
		return fmt.Errorf("%w: expected %d arguments, got %d", ErrIncorrectSignature, t.NumIn(), len(args))
	}
	if t.IsVariadic() && len(args) < t.NumIn()-1 {
		return fmt.Errorf("%w: expected at least %d arguments, got %d", ErrIncorrectSignature, t.NumIn()-1, len(args))
	}
	for i, a := range args {
		want := t.In(i)
		if t.IsVariadic() && i >= t.NumIn()-1 {
			want = t.In(t.NumIn() - 1).Elem()
		}
		if a == nil {
			continue
		}
		got := reflect.TypeOf(a)
		if !got.AssignableTo(want) {
			return fmt.Errorf("%w: argument %d is %s, want %s", ErrIncorrectSignature, i, got, want)
		}
	}
	return nil
}
