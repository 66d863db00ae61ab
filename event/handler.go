package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/messaging"
)

// Handler type constants controlling how an event fans out across
// listening instances, matching SERVICE_POOL/SINGLETON/BROADCAST.
const (
	ServicePool = "service_pool"
	Singleton   = "singleton"
	Broadcast   = "broadcast"
)

// ErrBroadcastRequiresUnreliableDelivery is returned by Setup when a
// BROADCAST handler is also configured with ReliableDelivery, the
// combination the original's broadcast_identifier property rejects: a
// queue that must survive a handler disconnecting can never be uniquely
// identified by a value that changes on every restart.
var ErrBroadcastRequiresUnreliableDelivery = errors.New("broadcast handlers are incompatible with reliable delivery")

// EventHandler is an entrypoint that answers events of EventType emitted
// by SourceService, the Go analogue of EventHandler(Consumer).
type EventHandler struct {
	extension.BaseEntrypoint
	messaging.HeaderDecoder

	SourceService    string
	EventType        string
	HandlerType      string
	ReliableDelivery bool
	RequeueOnError   bool

	queueConsumer *messaging.QueueConsumer
}

// Option customizes an EventHandler beyond its required constructor
// arguments.
type Option func(*EventHandler)

// WithHandlerType overrides the default ServicePool fan-out strategy.
func WithHandlerType(t string) Option { return func(h *EventHandler) { h.HandlerType = t } }

// WithReliableDelivery overrides the default (true) reliable-delivery
// setting.
func WithReliableDelivery(reliable bool) Option {
	return func(h *EventHandler) { h.ReliableDelivery = reliable }
}

// WithRequeueOnError overrides the default (false) requeue-on-error
// setting.
func WithRequeueOnError(requeue bool) Option {
	return func(h *EventHandler) { h.RequeueOnError = requeue }
}

// NewEventHandler declares method as the handler for eventType events
// emitted by sourceService. ReliableDelivery defaults to true and
// RequeueOnError to false, matching the original constructor's defaults;
// use the With* options to override them.
func NewEventHandler(sourceService, eventType, method string, opts ...Option) *EventHandler {
	h := &EventHandler{
		BaseEntrypoint:   extension.BaseEntrypoint{Method: method},
		SourceService:    sourceService,
		EventType:        eventType,
		HandlerType:      ServicePool,
		ReliableDelivery: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *EventHandler) Bind(container extension.Container) error {
	if err := h.BaseEntrypoint.Bind(container); err != nil {
		return err
	}
	h.queueConsumer = messaging.Shared(container)
	return nil
}

// broadcastIdentifier returns the value appended to a BROADCAST handler's
// queue name to keep each instance's queue distinct, matching
// EventHandler.broadcast_identifier.
func (h *EventHandler) broadcastIdentifier() (string, error) {
	if h.HandlerType != Broadcast {
		return "", nil
	}
	if h.ReliableDelivery {
		return "", ErrBroadcastRequiresUnreliableDelivery
	}
	return uuid.New().String(), nil
}

// queueName computes this handler's queue name per HandlerType, matching
// EventHandler.setup's queue_name branches.
func (h *EventHandler) queueName() (string, error) {
	serviceName := h.Container().ServiceName()
	switch h.HandlerType {
	case Singleton:
		return fmt.Sprintf("evt-%s-%s", h.SourceService, h.EventType), nil
	case Broadcast:
		id, err := h.broadcastIdentifier()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("evt-%s-%s--%s.%s-%s", h.SourceService, h.EventType, serviceName, h.MethodName(), id), nil
	default:
		return fmt.Sprintf("evt-%s-%s--%s.%s", h.SourceService, h.EventType, serviceName, h.MethodName()), nil
	}
}

// Setup declares this handler's queue, bound to the source service's
// event exchange with EventType as the routing key, and registers it
// with the shared QueueConsumer, matching EventHandler.setup.
func (h *EventHandler) Setup() error {
	queueName, err := h.queueName()
	if err != nil {
		return err
	}

	exchange := eventExchange(h.SourceService)
	// a handler without reliable delivery drops its queue once
	// disconnected instead of accumulating undelivered events, matching
	// "auto_delete = self.reliable_delivery is False".
	autoDelete := !h.ReliableDelivery
	// a BROADCAST queue is exclusive to its own instance unless reliable
	// delivery is enabled, matching the original's exclusive derivation.
	exclusive := h.HandlerType == Broadcast && !h.ReliableDelivery

	queueDef := amqp.Queue{
		Name:       queueName,
		Durable:    true,
		AutoDelete: autoDelete,
		Exclusive:  exclusive,
	}
	binding := amqp.Binding{
		Exchange:   exchange.Name,
		Queue:      queueDef.Name,
		RoutingKey: []string{h.EventType},
	}
	h.queueConsumer.RegisterProviderWithBindings(h, queueDef, &exchange, []amqp.Binding{binding}, h.handleDelivery)
	return nil
}

// Stop unregisters from the shared QueueConsumer, matching
// messaging.Consumer.stop (EventHandler's own parent).
func (h *EventHandler) Stop() error {
	return h.queueConsumer.Unsubscribe(h)
}

func (h *EventHandler) handleDelivery(delivery amqp.Delivery) {
	var eventData any
	if err := json.Unmarshal(delivery.Body, &eventData); err != nil {
		h.Container().Logger().WithField("error", err.Error()).Error("failed to decode event payload")
		_ = delivery.Ack(false)
		return
	}

	ctxData := h.DecodeHeaders(map[string]any(delivery.Headers))

	handleResult := func(_ *extension.WorkerContext, result any, err error) (any, error) {
		switch {
		case err != nil && errors.Is(err, extension.ErrContainerBeingKilled):
			_ = delivery.Nack(false, true)
		case err != nil && h.RequeueOnError:
			_ = delivery.Nack(false, true)
		default:
			_ = delivery.Ack(false)
		}
		return result, err
	}

	err := h.Container().SpawnWorker(h, []any{eventData}, nil, ctxData, handleResult)
	if err != nil && errors.Is(err, extension.ErrContainerBeingKilled) {
		_ = delivery.Nack(false, true)
	}
}
