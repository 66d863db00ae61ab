package rpc

import (
	"encoding/json"
	"errors"

	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/messaging"
	"go.nameko.dev/nameko/rpcerr"
)

// requestBody is the wire shape of an RPC request, {"args": [...],
// "kwargs": {...}}, matching the payload the original's handle_message
// decodes off message.payload.
type requestBody struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// Rpc is an entrypoint that answers requests addressed to its bound
// method over the RPC exchange, the Go analogue of Rpc(Entrypoint,
// HeaderDecoder).
type Rpc struct {
	extension.BaseEntrypoint
	messaging.HeaderDecoder

	rpcConsumer *RpcConsumer
}

// NewRpc exposes method as an RPC-callable entrypoint.
func NewRpc(method string) *Rpc {
	return &Rpc{BaseEntrypoint: extension.BaseEntrypoint{Method: method}}
}

func (r *Rpc) Bind(container extension.Container) error {
	if err := r.BaseEntrypoint.Bind(container); err != nil {
		return err
	}
	r.rpcConsumer = sharedRpcConsumer(container)
	return nil
}

// Setup registers this method with the shared RpcConsumer, matching
// Rpc.setup's rpc_consumer.register_provider(self).
func (r *Rpc) Setup() error {
	r.rpcConsumer.registerMethod(r)
	return nil
}

// Stop unregisters from the shared RpcConsumer, matching Rpc.stop.
func (r *Rpc) Stop() error {
	r.rpcConsumer.unregisterMethod(r)
	return nil
}

// handleDelivery decodes delivery's body and headers and spawns a worker
// to run the bound method, matching Rpc.handle_message. A body that
// cannot be decoded is answered with a MalformedRequest directly, without
// ever spawning a worker, matching the original's try/except around
// json.loads.
func (r *Rpc) handleDelivery(delivery amqp.Delivery) {
	var body requestBody
	if err := json.Unmarshal(delivery.Body, &body); err != nil {
		r.replyError(delivery, rpcerr.NewMalformedRequest(err.Error()))
		return
	}

	ctxData := r.DecodeHeaders(map[string]any(delivery.Headers))
	responder := newResponder(r.rpcConsumer.publisher, rpcExchange(r.Container()), delivery)

	handleResult := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		if sendErr := responder.SendResponse(result, err); sendErr != nil {
			r.Container().Logger().WithField("error", sendErr.Error()).Error("failed to send rpc response")
		}
		if err != nil && errors.Is(err, extension.ErrContainerBeingKilled) {
			_ = delivery.Nack(false, true)
		} else {
			_ = delivery.Ack(false)
		}
		return result, err
	}

	if err := r.Container().SpawnWorker(r, body.Args, body.Kwargs, ctxData, handleResult); err != nil {
		if errors.Is(err, extension.ErrContainerBeingKilled) {
			_ = delivery.Nack(false, true)
			return
		}
		r.replyError(delivery, err)
	}
}

func (r *Rpc) replyError(delivery amqp.Delivery, err error) {
	responder := newResponder(r.rpcConsumer.publisher, rpcExchange(r.Container()), delivery)
	_ = responder.SendError(err)
	_ = delivery.Ack(false)
}
