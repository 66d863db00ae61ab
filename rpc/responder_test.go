package rpc

import (
	"encoding/json"
	"errors"
	"testing"

	tdd "github.com/stretchr/testify/assert"

	"go.nameko.dev/nameko/rpcerr"
)

func TestEncodeResponseCarriesResultWithNoError(t *testing.T) {
	assert := tdd.New(t)
	body, err := encodeResponse("hello world", nil)
	assert.Nil(err)

	var payload responsePayload
	assert.Nil(json.Unmarshal(body, &payload))
	assert.Equal("hello world", payload.Result)
	assert.Nil(payload.Error)
}

func TestEncodeResponseSerializesWorkerError(t *testing.T) {
	assert := tdd.New(t)
	body, err := encodeResponse(nil, rpcerr.NewMethodNotFound("Echo"))
	assert.Nil(err)

	var payload responsePayload
	assert.Nil(json.Unmarshal(body, &payload))
	assert.NotNil(payload.Error)
	assert.Equal("MethodNotFound", payload.Error.ExcType)
}

func TestEncodeResponseSubstitutesUnserializableValueError(t *testing.T) {
	assert := tdd.New(t)
	// a channel can never be encoded to JSON, forcing the substitution
	// path send_response's dry-run-then-replace guard takes.
	body, err := encodeResponse(make(chan int), nil)
	assert.Nil(err)

	var payload responsePayload
	assert.Nil(json.Unmarshal(body, &payload))
	assert.Nil(payload.Result)
	assert.NotNil(payload.Error)
	assert.Equal("UnserializableValueError", payload.Error.ExcType)
}

func TestEncodeResponsePropagatesGenericError(t *testing.T) {
	assert := tdd.New(t)
	body, err := encodeResponse(nil, errors.New("boom"))
	assert.Nil(err)

	var payload responsePayload
	assert.Nil(json.Unmarshal(body, &payload))
	assert.NotNil(payload.Error)
	assert.Equal("boom", payload.Error.Value)
}
