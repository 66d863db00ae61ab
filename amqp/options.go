package amqp

import (
	"crypto/tls"

	xlog "go.nameko.dev/nameko/log"
)

// Option settings adjust the internal behavior of a session (and by
// extension any publisher or consumer built on top of it).
type Option func(*session) error

// WithName sets a custom identifier for the session instance. If not
// provided, a random name prefixed by the entity kind is generated.
func WithName(name string) Option {
	return func(s *session) error {
		s.name = name
		return nil
	}
}

// WithLogger sets the logger instance used to report internal session
// events. Defaults to a discard logger.
func WithLogger(ll xlog.Logger) Option {
	return func(s *session) error {
		s.log = ll
		return nil
	}
}

// WithTLS sets the TLS settings to use when connecting to the broker,
// required when using the `amqps` scheme.
func WithTLS(conf *tls.Config) Option {
	return func(s *session) error {
		s.tlsConf = conf
		return nil
	}
}

// WithTopology registers the broker topology (exchanges, queues and
// bindings) that must be present before the session is marked as ready.
// Missing entities are declared on connect and reconnect.
func WithTopology(top Topology) Option {
	return func(s *session) error {
		s.topology = top
		return nil
	}
}

// WithPrefetch adjusts the channel QoS settings used by the session.
// `count` limits the number of unacknowledged deliveries in flight;
// `size` limits the total unacknowledged bytes. A `count` of zero means
// no limit.
func WithPrefetch(count, size int) Option {
	return func(s *session) error {
		s.prefetchCount = count
		s.prefetchSize = size
		return nil
	}
}
