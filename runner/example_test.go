package runner

import (
	"go.nameko.dev/nameko/service"
)

type catalogService struct{}

func (s *catalogService) ListProducts() []string { return nil }

func ExampleServiceRunner() {
	r := New(service.Config{}, nil)
	if err := r.AddService("catalog", func() any { return &catalogService{} }); err != nil {
		panic(err)
	}
	if err := r.Start(); err != nil {
		panic(err)
	}
	if err := r.Stop(); err != nil {
		panic(err)
	}
}

func ExampleRun() {
	defs := []ServiceDef{
		{Name: "catalog", NewService: func() any { return &catalogService{} }},
	}
	_ = Run(service.Config{}, nil, false, defs, func(r *ServiceRunner) error {
		return nil
	})
}
