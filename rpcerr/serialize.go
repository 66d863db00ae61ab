package rpcerr

import (
	"fmt"
	"reflect"
	"sync"
)

// Payload is the wire format exchanged for a failed RPC/event call,
// matching serialize/deserialize's {exc_type, exc_path, exc_args, value}
// shape.
type Payload struct {
	ExcType string `json:"exc_type"`
	ExcPath string `json:"exc_path"`
	ExcArgs []any  `json:"exc_args,omitempty"`
	Value   string `json:"value"`
}

// Factory reconstructs a typed error from a decoded payload, the Go
// analogue of calling registry[exc_path](*exc_args).
type Factory func(p Payload) error

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// MustRegister associates path (an exc_path string produced by ExcPath)
// with factory, so Deserialize reconstructs a typed instance instead of
// falling back to RemoteError. Panics if path is already registered,
// matching deserialize_to_instance's guard against double registration.
func MustRegister(path string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[path]; exists {
		panic(fmt.Sprintf("rpcerr: %s is already registered", path))
	}
	registry[path] = factory
}

// ExcPath returns the registry key an error serializes under: its
// package path plus type name, the Go analogue of
// get_module_path(type(exc)).
func ExcPath(err error) string {
	t := underlyingType(err)
	return t.PkgPath() + "." + t.Name()
}

func underlyingType(err error) reflect.Type {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Serialize converts err into its wire payload, matching serialize(exc).
// Errors implementing an ExcArgs() []any method contribute their
// reconstruction arguments; everything else serializes with ExcArgs nil.
// Deserialize chooses a Factory by exc_path alone, so a registered type
// without ExcArgs is rebuilt from empty arguments.
func Serialize(err error) Payload {
	p := Payload{
		ExcType: underlyingType(err).Name(),
		ExcPath: ExcPath(err),
		Value:   SafeForSerialization(err.Error()).(string),
	}
	if a, ok := err.(interface{ ExcArgs() []any }); ok {
		p.ExcArgs = a.ExcArgs()
	}
	return p
}

// Deserialize reconstructs an error from a wire payload: a registered
// exc_path yields a typed instance via its Factory; anything else falls
// back to RemoteError, matching deserialize's generic branch.
func Deserialize(p Payload) error {
	mu.RLock()
	factory, ok := registry[p.ExcPath]
	mu.RUnlock()
	if ok {
		return factory(p)
	}
	return &RemoteError{ExcType: p.ExcType, Value: p.Value}
}

// SafeForSerialization recursively converts value into JSON-safe types,
// stringifying anything that doesn't already round-trip through
// encoding/json, matching safe_for_serialization.
func SafeForSerialization(value any) any {
	switch v := value.(type) {
	case nil, bool, string,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = SafeForSerialization(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = SafeForSerialization(e)
		}
		return out
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
