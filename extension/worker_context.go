package extension

import (
	"fmt"

	"github.com/google/uuid"
	"go.nameko.dev/nameko/metadata"
)

// CallIDStackContextKey is the context-data key under which the call-id
// stack is exposed to dependency providers and RPC/event wire headers,
// matching the original's CALL_ID_STACK_CONTEXT_KEY.
const CallIDStackContextKey = "call_id_stack"

// WorkerContext carries everything a single worker invocation needs: the
// service instance it runs against, the entrypoint that spawned it, and
// the request-scoped data (context_data) threaded through dependency
// providers and onward to any RPC/event call the worker itself makes.
type WorkerContext struct {
	Container Container
	Service   any
	Entry     Entrypoint
	Args      []any
	Kwargs    map[string]any

	// Data is the request-scoped context (headers received over AMQP, or
	// seeded fresh for locally-triggered workers such as a Timer tick).
	Data metadata.MD

	callIDStack []string
	maxStack    int
}

// NewWorkerContext builds a context for a single worker invocation. data
// may be nil; parentCallsTracked bounds how many ancestor call-ids are
// kept in the stack (parent_calls_tracked in the original), 0 meaning
// "current call only".
func NewWorkerContext(
	container Container,
	service any,
	entry Entrypoint,
	args []any,
	kwargs map[string]any,
	data map[string]any,
	parentCallsTracked int,
) *WorkerContext {
	wc := &WorkerContext{
		Container: container,
		Service:   service,
		Entry:     entry,
		Args:      args,
		Kwargs:    kwargs,
		Data:      metadata.FromMap(data),
		maxStack:  parentCallsTracked + 1,
	}

	var inherited []string
	if raw := wc.Data.Get(CallIDStackContextKey); raw != nil {
		if stack, ok := raw.([]string); ok {
			inherited = stack
		}
	}
	callID := fmt.Sprintf("%s.%s.%s", container.ServiceName(), entry.MethodName(), uuid.New().String())
	wc.callIDStack = appendBounded(inherited, callID, wc.maxStack)
	return wc
}

// appendBounded appends value, trimming from the front so the slice never
// exceeds max entries - the Go equivalent of deque(maxlen=...).
func appendBounded(stack []string, value string, max int) []string {
	out := append(append([]string{}, stack...), value)
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// CallID is this worker's own call identifier, the last entry of its
// call-id stack.
func (wc *WorkerContext) CallID() string {
	if len(wc.callIDStack) == 0 {
		return ""
	}
	return wc.callIDStack[len(wc.callIDStack)-1]
}

// CallIDStack returns the full ancestor chain, oldest first, ending with
// this worker's own call-id.
func (wc *WorkerContext) CallIDStack() []string {
	return append([]string{}, wc.callIDStack...)
}

// ContextData returns the full context map a worker should pass on to any
// outgoing call it makes (RPC proxy call, event dispatch): the inherited
// data plus this worker's own call-id stack merged in under
// CallIDStackContextKey, mirroring context_data's behavior.
func (wc *WorkerContext) ContextData() map[string]any {
	src := wc.Data.Values()
	out := make(map[string]any, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	out[CallIDStackContextKey] = wc.CallIDStack()
	return out
}
