package rpc

import (
	"encoding/json"

	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/rpcerr"
)

// responsePayload is the wire shape of an RPC reply, {"result": ...,
// "error": ...}, matching what the original's Responder.send_response
// publishes back to the caller's reply queue.
type responsePayload struct {
	Result any            `json:"result"`
	Error  *rpcerr.Payload `json:"error"`
}

// Responder sends a worker's outcome back to whichever caller is waiting
// on the delivery's reply_to/correlation_id pair, the Go analogue of
// Responder. Unlike the original, which opens a fresh Publisher per call,
// it is handed the RpcConsumer's single long-lived publisher rather than
// reconnecting for every reply.
type Responder struct {
	publisher *amqp.Publisher
	exchange  amqp.Exchange
	delivery  amqp.Delivery
}

func newResponder(publisher *amqp.Publisher, exchange amqp.Exchange, delivery amqp.Delivery) *Responder {
	return &Responder{publisher: publisher, exchange: exchange, delivery: delivery}
}

// encodeResponse builds the wire body for {result, error}, substituting
// an UnserializableValueError for a result that cannot be encoded rather
// than propagating the encode failure, the disaster-avoidance guard
// send_response applies by dry-running its serializer before publishing:
// a handler that returns something the wire format cannot carry must
// never leave the caller waiting forever.
func encodeResponse(result any, workerErr error) ([]byte, error) {
	payload := responsePayload{Result: result}
	if workerErr != nil {
		p := rpcerr.Serialize(workerErr)
		payload.Error = &p
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p := rpcerr.Serialize(&rpcerr.UnserializableValueError{Value: result})
		payload = responsePayload{Result: nil, Error: &p}
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// SendResponse publishes {result, error} back to the caller, see
// encodeResponse for the encoding rules applied first.
func (r *Responder) SendResponse(result any, workerErr error) error {
	body, err := encodeResponse(result, workerErr)
	if err != nil {
		return err
	}

	_, err = r.publisher.Push(amqp.Message{
		Body:          body,
		ContentType:   "application/json",
		CorrelationId: r.delivery.CorrelationId,
	}, amqp.MessageOptions{
		Exchange:   r.exchange.Name,
		RoutingKey: r.delivery.ReplyTo,
		Persistent: true,
	})
	return err
}

// SendError is SendResponse with a nil result, used when no worker ever
// ran for this delivery - e.g. its routing key named an unknown method.
func (r *Responder) SendError(err error) error {
	return r.SendResponse(nil, err)
}
