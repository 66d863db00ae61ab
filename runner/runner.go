// Package runner provides ServiceRunner, which hosts several service
// containers side by side and starts, stops, kills and waits on all of
// them together - the Go analogue of nameko's ServiceRunner and
// run_services.
package runner

import (
	"fmt"

	"go.nameko.dev/nameko/concurrency"
	"go.nameko.dev/nameko/log"
	"go.nameko.dev/nameko/service"
)

// ServiceRunner hosts a set of service containers, one per registered
// service name, and fans Start/Stop/Kill/Wait out across all of them
// concurrently, matching ServiceRunner's SpawningProxy-backed methods.
type ServiceRunner struct {
	config service.Config
	logger log.Logger
	byName map[string]*service.Container
	names  []string
}

// New builds an empty runner sharing cfg and logger across every
// container it hosts, matching ServiceRunner.__init__'s container_cls
// closure over self.config.
func New(cfg service.Config, logger log.Logger) *ServiceRunner {
	if logger == nil {
		logger = log.Discard()
	}
	return &ServiceRunner{
		config: cfg,
		logger: logger,
		byName: make(map[string]*service.Container),
	}
}

// AddService registers a container for serviceName, built from
// newService. A given service name can only be added once; a second call
// for the same name returns an error instead of silently replacing the
// first container the way the original's dict-backed service_map would,
// since discarding a container silently would leak its never-stopped
// extensions.
func (r *ServiceRunner) AddService(serviceName string, newService func() any, opts ...service.Option) error {
	if _, exists := r.byName[serviceName]; exists {
		return fmt.Errorf("service %q already registered", serviceName)
	}
	opts = append([]service.Option{service.WithLogger(r.logger)}, opts...)
	container := service.New(serviceName, newService, r.config, opts...)
	r.byName[serviceName] = container
	r.names = append(r.names, serviceName)
	return nil
}

// ServiceNames returns every registered service name, in registration
// order, matching ServiceRunner.service_names.
func (r *ServiceRunner) ServiceNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Container returns the container registered for serviceName, or nil if
// none was registered.
func (r *ServiceRunner) Container(serviceName string) *service.Container {
	return r.byName[serviceName]
}

func (r *ServiceRunner) containers() []*service.Container {
	out := make([]*service.Container, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Start starts every registered container concurrently, aborting on the
// first failure, matching SpawningProxy(..., abort_on_error=True).start
// - an early return leaves containers still starting in flight, since Go
// cannot forcibly abort a goroutine mid-Start the way a green thread
// can be killed.
func (r *ServiceRunner) Start() error {
	r.logger.WithField("services", r.ServiceNames()).Info("starting services")
	containers := r.containers()
	return concurrency.FailFastAll(containers, func(c *service.Container) error {
		return c.Start()
	})
}

// Stop concurrently stops every container, waiting for all of them to
// finish stopping before returning, matching
// SpawningProxy(self.containers).stop().
func (r *ServiceRunner) Stop() error {
	r.logger.WithField("services", r.ServiceNames()).Info("stopping services")
	containers := r.containers()
	errs := concurrency.SpawnAll(containers, func(c *service.Container) error {
		return c.Stop()
	})
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Kill concurrently kills every container, matching
// SpawningProxy(self.containers).kill(). Stop and Wait will return once
// every container's Kill has torn its extensions down.
func (r *ServiceRunner) Kill(cause error) {
	r.logger.WithField("services", r.ServiceNames()).Info("killing services")
	concurrency.SpawnAll(r.containers(), func(c *service.Container) error {
		c.Kill(cause)
		return nil
	})
}

// Wait blocks until every container has stopped or been killed. It is
// fail-fast: the instant any one container's Wait returns an error, Wait
// stops every remaining container rather than waiting for them to die on
// their own first, matching SpawningProxy(..., abort_on_error=True).wait
// and ServiceRunner.wait's catch-and-stop-the-rest behavior. A plain
// barrier over every container's Wait (waiting for all of them before
// reacting) would deadlock here: healthy siblings only unblock once
// something stops them, and nothing would stop them until the barrier
// itself returned.
func (r *ServiceRunner) Wait() error {
	containers := r.containers()
	if len(containers) == 0 {
		return nil
	}

	results := make(chan error, len(containers))
	for _, c := range containers {
		c := c
		go func() { results <- c.Wait() }()
	}

	var first error
	for range containers {
		if err := <-results; err != nil {
			first = err
			break
		}
	}

	if first == nil {
		return nil
	}

	_ = r.Stop()
	return first
}
