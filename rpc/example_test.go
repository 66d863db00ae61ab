package rpc

import (
	"go.nameko.dev/nameko/service"
)

type greeterService struct {
	Greeter *Proxy `field:"Greeter"`
}

func (s *greeterService) Echo(msg string) string { return msg }

func ExampleNewRpc() {
	container := service.New("greeter", func() any { return &greeterService{} }, nil)
	entry := NewRpc("Echo")
	if err := container.RegisterEntrypoint(entry); err != nil {
		panic(err)
	}
}

func ExampleNewProxy() {
	container := service.New("caller", func() any { return &greeterService{} }, nil)
	proxy := NewProxy("greeter")
	if err := container.Register(proxy, "Greeter"); err != nil {
		panic(err)
	}
}
