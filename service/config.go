// Package service provides the service container: the piece that hosts a
// user-defined service value, binds extensions to it, and schedules
// concurrent workers bounded by a worker pool.
package service

import (
	"time"

	"dario.cat/mergo"
)

// Configuration keys consumed by the container and by the messaging/rpc/
// event packages, named after the original's constants module.
const (
	AMQPURIKey              = "AMQP_URI"
	AMQPSSLKey              = "AMQP_SSL"
	LoginMethodKey          = "LOGIN_METHOD"
	HeartbeatKey            = "HEARTBEAT"
	TransportOptionsKey     = "TRANSPORT_OPTIONS"
	SerializerKey           = "SERIALIZER"
	SerializersKey          = "SERIALIZERS"
	AcceptKey               = "ACCEPT"
	MaxWorkersKey           = "max_workers"
	ParentCallsTrackedKey   = "parent_calls_tracked"
	RPCExchangeKey          = "RPC_EXCHANGE"
	AutoDeleteEventExchKey  = "AUTO_DELETE_EVENT_EXCHANGES"
	DeclareEventExchKey     = "DECLARE_EVENT_EXCHANGES"
)

const (
	// DefaultMaxWorkers bounds the container's worker pool when
	// max_workers is not set in config, matching DEFAULT_MAX_WORKERS.
	DefaultMaxWorkers = 10

	// DefaultParentCallsTracked bounds the call-id stack's ancestor
	// chain when parent_calls_tracked is not set in config.
	DefaultParentCallsTracked = 10

	// DefaultHeartbeat is the AMQP connection heartbeat interval used
	// when HEARTBEAT is not set in config.
	DefaultHeartbeat = 60 * time.Second

	// DefaultRPCExchange is the topic exchange RPC requests/replies flow
	// through when RPC_EXCHANGE is not set in config.
	DefaultRPCExchange = "nameko-rpc"

	// DefaultSerializer names the codec used to encode message bodies
	// when SERIALIZER is not set in config.
	DefaultSerializer = "json"

	// HeaderPrefix namespaces context-data keys when they are carried as
	// AMQP message headers, matching HEADER_PREFIX.
	HeaderPrefix = "nameko"
)

// Config is a plain, already-resolved configuration map, the Go analogue
// of the dict-like config object threaded through container.config in
// the original - loading it from YAML/env is an external concern.
type Config map[string]any

// DefaultConfig returns the package defaults every container falls back
// to for values the caller's config omits.
func DefaultConfig() Config {
	return Config{
		MaxWorkersKey:         DefaultMaxWorkers,
		ParentCallsTrackedKey: DefaultParentCallsTracked,
		HeartbeatKey:          DefaultHeartbeat,
		RPCExchangeKey:        DefaultRPCExchange,
		SerializerKey:         DefaultSerializer,
		AcceptKey:             []string{DefaultSerializer},
	}
}

// NewConfig overlays overrides on top of DefaultConfig, overrides taking
// precedence - the Go equivalent of container.config.get(key, default)
// being sprinkled throughout the original instead of resolved up front.
func NewConfig(overrides Config) Config {
	cfg := DefaultConfig()
	if overrides == nil {
		return cfg
	}
	// mergo.Map treats the destination's existing entries as defaults and
	// only fills gaps unless WithOverride is set; overrides must win here.
	_ = mergo.Map(&cfg, overrides, mergo.WithOverride)
	return cfg
}

// Get returns the raw value for key, and whether it was present.
func (c Config) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns the string value for key, or def if absent or not a
// string.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the int value for key, or def if absent or not an int.
func (c Config) Int(key string, def int) int {
	if v, ok := c[key]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return def
}

// Bool returns the bool value for key, or def if absent or not a bool.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Duration returns the time.Duration value for key, or def if absent or
// not a time.Duration.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	if v, ok := c[key]; ok {
		if d, ok := v.(time.Duration); ok {
			return d
		}
	}
	return def
}

// StringSlice returns the []string value for key, or def if absent or
// not a []string.
func (c Config) StringSlice(key string, def []string) []string {
	if v, ok := c[key]; ok {
		if s, ok := v.([]string); ok {
			return s
		}
	}
	return def
}
