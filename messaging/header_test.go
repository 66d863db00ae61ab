package messaging

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHeaderEncoderDropsNilValues(t *testing.T) {
	enc := HeaderEncoder{}
	headers := enc.EncodeHeaders(map[string]any{
		"language": "en",
		"user_id":  nil,
	})
	if _, ok := headers["nameko.user_id"]; ok {
		t.Fatalf("expected nil-valued key to be dropped")
	}
	if headers["nameko.language"] != "en" {
		t.Fatalf("expected nameko.language=en, got %v", headers["nameko.language"])
	}
}

func TestHeaderDecoderIgnoresUnprefixedKeys(t *testing.T) {
	dec := HeaderDecoder{}
	out := dec.DecodeHeaders(map[string]any{
		"nameko.language":  "en",
		"content-encoding": "utf-8",
	})
	if len(out) != 1 {
		t.Fatalf("expected exactly one decoded header, got %d: %v", len(out), out)
	}
	if out["language"] != "en" {
		t.Fatalf("expected language=en, got %v", out["language"])
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	enc := HeaderEncoder{}
	dec := HeaderDecoder{}
	ctxData := map[string]any{
		"call_id_stack": []string{"greeter.echo.abc"},
		"language":      "en",
	}
	got := dec.DecodeHeaders(enc.EncodeHeaders(ctxData))
	if len(got) != len(ctxData) {
		t.Fatalf("round trip lost keys: got %v, want %v", got, ctxData)
	}
	if got["language"] != "en" {
		t.Fatalf("round trip mismatch: %v", got)
	}
}
