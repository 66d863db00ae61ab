package event

import (
	"go.nameko.dev/nameko/service"
)

type monitorService struct {
	Dispatch DispatchFunc `field:"Dispatch"`
}

func (s *monitorService) OnOrderCreated(orderData any) {}

func ExampleNewEventHandler() {
	container := service.New("monitor", func() any { return &monitorService{} }, nil)
	entry := NewEventHandler("orders", "order_created", "OnOrderCreated")
	if err := container.RegisterEntrypoint(entry); err != nil {
		panic(err)
	}
}

func ExampleNewEventDispatcher() {
	container := service.New("orders", func() any { return &monitorService{} }, nil)
	dispatcher := NewEventDispatcher()
	if err := container.Register(dispatcher, "Dispatch"); err != nil {
		panic(err)
	}
}
