package rpc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/extension"
	"go.nameko.dev/nameko/messaging"
)

const replyQueueTemplate = "rpc.reply-%s-%s"

// replyQueueTTL is how long (in milliseconds) an idle reply queue is kept
// before the broker expires it, matching RPC_REPLY_QUEUE_TTL.
const replyQueueTTL = 300000

const replyListenerSharedKey = "rpc-reply-listener"

// ReplyListener is the per-container, single-use-per-correlation-id queue
// every MethodProxy call waits its reply on, the Go analogue of
// ReplyListener. One queue, named after a fresh UUID, is declared per
// container and shared by every outgoing RpcProxy dependency.
type ReplyListener struct {
	extension.Base
	extension.ProviderCollector

	queueConsumer *messaging.QueueConsumer
	routingKey    string

	mu      sync.Mutex
	waiting map[string]chan []byte
}

func newReplyListener() *ReplyListener {
	return &ReplyListener{
		ProviderCollector: extension.NewProviderCollector(),
		waiting:           make(map[string]chan []byte),
	}
}

// sharedReplyListener returns the container-wide ReplyListener, creating
// it on first use, matching RpcProxy.rpc_reply_listener's status as a
// class-attribute SharedExtension every proxy dependency references.
func sharedReplyListener(container extension.Container) *ReplyListener {
	shared := container.Shared(replyListenerSharedKey, func() extension.Extension {
		return newReplyListener()
	})
	return shared.(*ReplyListener)
}

func (l *ReplyListener) Bind(container extension.Container) error {
	if err := l.Base.Bind(container); err != nil {
		return err
	}
	l.queueConsumer = messaging.Shared(container)
	return nil
}

// Setup declares a reply queue unique to this container instance, bound
// to the RPC exchange under a fresh UUID routing key, matching
// ReplyListener.setup.
func (l *ReplyListener) Setup() error {
	container := l.Container()
	replyQueueID := uuid.New().String()
	l.routingKey = replyQueueID

	exchange := rpcExchange(container)
	queueDef := amqp.Queue{
		Name:       fmt.Sprintf(replyQueueTemplate, container.ServiceName(), replyQueueID),
		Exclusive:  true,
		AutoDelete: true,
		Arguments:  map[string]any{"x-expires": replyQueueTTL},
	}
	binding := amqp.Binding{
		Exchange:   exchange.Name,
		Queue:      queueDef.Name,
		RoutingKey: []string{l.routingKey},
	}
	l.queueConsumer.RegisterProviderWithBindings(l, queueDef, &exchange, []amqp.Binding{binding}, l.handleDelivery)
	return nil
}

func (l *ReplyListener) Stop() error {
	return l.queueConsumer.Unsubscribe(l)
}

// RoutingKey is the reply_to value a MethodProxy call publishes, the
// single routing key every reply for this container arrives under.
func (l *ReplyListener) RoutingKey() string { return l.routingKey }

// getReplyEvent registers correlationID and returns the channel its
// matching reply will be delivered on, matching get_reply_event.
func (l *ReplyListener) getReplyEvent(correlationID string) <-chan []byte {
	ch := make(chan []byte, 1)
	l.mu.Lock()
	l.waiting[correlationID] = ch
	l.mu.Unlock()
	return ch
}

// forgetReplyEvent removes correlationID's entry from waiting without
// delivering anything on its channel, matching the cleanup a caller giving
// up on a reply (context canceled, deadline exceeded) must perform -
// otherwise the entry and its buffered channel are never reclaimed, since
// handleDelivery is the only other place that deletes from waiting and a
// reply that never arrives never reaches it.
func (l *ReplyListener) forgetReplyEvent(correlationID string) {
	l.mu.Lock()
	delete(l.waiting, correlationID)
	l.mu.Unlock()
}

func (l *ReplyListener) handleDelivery(delivery amqp.Delivery) {
	_ = delivery.Ack(false)

	l.mu.Lock()
	ch, ok := l.waiting[delivery.CorrelationId]
	delete(l.waiting, delivery.CorrelationId)
	l.mu.Unlock()

	if !ok {
		l.Container().Logger().WithField("correlation-id", delivery.CorrelationId).Debug("unknown rpc reply correlation id")
		return
	}
	ch <- delivery.Body
	close(ch)
}
