// Package messaging adapts a service's AMQP queues into dependency
// providers and entrypoints: Publisher dispatches messages to an
// exchange, Consumer spawns a worker for every message delivered to a
// queue, and QueueConsumer is the shared connection every Consumer
// entrypoint in a container registers itself against.
package messaging

import "strings"

// HeaderPrefix namespaces context-data keys carried as AMQP message
// headers, matching HEADER_PREFIX.
const HeaderPrefix = "nameko"

// HeaderEncoder turns a worker's context data into AMQP message headers,
// the Go analogue of HeaderEncoder.get_message_headers. A nil value is
// dropped rather than encoded, since AMQP table entries can't carry Go's
// nil the way Python's headers dict tolerates None.
type HeaderEncoder struct{}

func (HeaderEncoder) EncodeHeaders(ctxData map[string]any) map[string]any {
	headers := make(map[string]any, len(ctxData))
	for k, v := range ctxData {
		if v == nil {
			continue
		}
		headers[HeaderPrefix+"."+k] = v
	}
	return headers
}

// HeaderDecoder strips the header prefix back off, the Go analogue of
// HeaderDecoder.unpack_message_headers. Headers without the prefix are
// ignored rather than raising, matching the original's silent skip.
type HeaderDecoder struct{}

func (HeaderDecoder) DecodeHeaders(headers map[string]any) map[string]any {
	prefix := HeaderPrefix + "."
	out := make(map[string]any, len(headers))
	for k, v := range headers {
		if name, ok := strings.CutPrefix(k, prefix); ok {
			out[name] = v
		}
	}
	return out
}
