package runner

import (
	"go.nameko.dev/nameko/log"
	"go.nameko.dev/nameko/service"
)

// ServiceDef pairs a service name with its constructor, the arguments
// AddService needs for one entry.
type ServiceDef struct {
	Name       string
	NewService func() any
	Options    []service.Option
}

// Run starts a runner hosting every given service definition, hands it
// to fn, then stops (or kills, if killOnExit is true) every container
// once fn returns - the Go analogue of run_services' context manager.
// The first error from AddService or Start aborts before fn ever runs;
// Run still tears down whatever containers did start.
func Run(cfg service.Config, logger log.Logger, killOnExit bool, defs []ServiceDef, fn func(*ServiceRunner) error) error {
	r := New(cfg, logger)
	for _, def := range defs {
		if err := r.AddService(def.Name, def.NewService, def.Options...); err != nil {
			return err
		}
	}

	if err := r.Start(); err != nil {
		_ = r.Stop()
		return err
	}

	fnErr := fn(r)

	if killOnExit {
		r.Kill(fnErr)
	} else {
		_ = r.Stop()
	}

	return fnErr
}
