package messaging

import (
	"errors"

	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/extension"
)

// Consumer is an entrypoint that spawns a worker for every message
// delivered to a queue, the Go analogue of messaging.Consumer.
type Consumer struct {
	extension.BaseEntrypoint
	HeaderDecoder

	queueDef       amqp.Queue
	requeueOnError bool
	queueConsumer  *QueueConsumer
}

// NewConsumer declares queueDef and binds method as the handler invoked
// for every message delivered to it. requeueOnError controls whether a
// failed worker's message is requeued (true) or dead-lettered/dropped via
// ack (false), matching the requeue_on_error constructor argument.
func NewConsumer(method string, queueDef amqp.Queue, requeueOnError bool) *Consumer {
	return &Consumer{
		BaseEntrypoint: extension.BaseEntrypoint{Method: method},
		queueDef:       queueDef,
		requeueOnError: requeueOnError,
	}
}

func (c *Consumer) Bind(container extension.Container) error {
	if err := c.BaseEntrypoint.Bind(container); err != nil {
		return err
	}
	c.queueConsumer = Shared(container)
	return nil
}

// Setup registers this entrypoint's queue with the shared QueueConsumer,
// matching Consumer.setup's queue_consumer.register_provider(self). The
// queue is only actually declared and subscribed once QueueConsumer
// itself starts, since every extension's Setup runs before any
// extension's Start.
func (c *Consumer) Setup() error {
	c.queueConsumer.RegisterQueue(c, c.queueDef, c.handleMessage)
	return nil
}

// Stop unregisters from the shared QueueConsumer, matching Consumer.stop.
func (c *Consumer) Stop() error {
	return c.queueConsumer.Unsubscribe(c)
}

func (c *Consumer) handleMessage(delivery amqp.Delivery) {
	ctxData := c.DecodeHeaders(map[string]any(delivery.Headers))

	handleResult := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		switch {
		case err != nil && errors.Is(err, extension.ErrContainerBeingKilled):
			_ = delivery.Nack(false, true)
		case err != nil && c.requeueOnError:
			_ = delivery.Nack(false, true)
		default:
			_ = delivery.Ack(false)
		}
		return result, err
	}

	err := c.Container().SpawnWorker(c, []any{delivery.Body}, nil, ctxData, handleResult)
	if err != nil && errors.Is(err, extension.ErrContainerBeingKilled) {
		// The container refused to spawn a worker at all: nothing will
		// ever call handleResult for this delivery, so requeue directly.
		_ = delivery.Nack(false, true)
	}
}
