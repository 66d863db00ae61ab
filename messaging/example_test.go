package messaging

import (
	"go.nameko.dev/nameko/amqp"
	"go.nameko.dev/nameko/service"
)

// greeter illustrates how a service field receives the publish closure
// injected by Publisher.
type greeter struct {
	Dispatch PublishFunc `field:"Dispatch"`
}

func ExampleConsumer() {
	container := service.New("greeter", func() any { return &greeter{} }, nil)

	entry := NewConsumer("HandleGreeting", amqp.Queue{
		Name:    "greeter.handle_greeting",
		Durable: true,
	}, false)
	if err := container.RegisterEntrypoint(entry); err != nil {
		panic(err)
	}
}

func ExamplePublisher() {
	container := service.New("greeter", func() any { return &greeter{} }, nil)

	pub := NewPublisher(amqp.Exchange{
		Name:    "greeter.greetings",
		Kind:    "topic",
		Durable: true,
	})
	if err := container.Register(pub, "Dispatch"); err != nil {
		panic(err)
	}
}
