package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Codec turns raw datagrams into Signals and back.
type Codec interface {
	Decode(packet []byte) (*Signal, error)
	Encode(sig *Signal) ([]byte, error)
}

// DecodeError reports a malformed packet.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode signal: %s: %v", e.Reason, e.Err)
	}
	return "decode signal: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope is the JSON wire form of a Signal.
type envelope struct {
	Type     Type           `json:"type"`
	Commands []string       `json:"commands,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// JSONCodec is the default wire codec: one JSON envelope per datagram.
type JSONCodec struct{}

// Decode parses packet strictly. Unknown fields, unknown type tags and
// trailing garbage are rejected.
func (JSONCodec) Decode(packet []byte) (*Signal, error) {
	if len(bytes.TrimSpace(packet)) == 0 {
		return nil, &DecodeError{Reason: "empty packet"}
	}

	var env envelope
	decoder := json.NewDecoder(bytes.NewReader(packet))
	decoder.DisallowUnknownFields() // Strict parsing
	decoder.UseNumber()
	if err := decoder.Decode(&env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON envelope", Err: err}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Reason: "trailing data after envelope"}
	}

	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing required field: type"}
	}
	if !env.Type.Valid() {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown signal type %q", env.Type)}
	}

	sig := &Signal{
		ID:     uuid.NewString(),
		Type:   env.Type,
		Data:   normalizeNumbers(env.Data),
		Digest: Digest(packet),
	}
	if sig.Data == nil {
		sig.Data = map[string]any{}
	}
	for _, tok := range env.Commands {
		sig.Commands = append(sig.Commands, ParseCommand(tok))
	}
	return sig, nil
}

// Encode serializes sig as a JSON envelope.
func (JSONCodec) Encode(sig *Signal) ([]byte, error) {
	if sig == nil {
		return nil, fmt.Errorf("encode signal: nil signal")
	}
	if !sig.Type.Valid() {
		return nil, fmt.Errorf("encode signal: unknown signal type %q", sig.Type)
	}
	env := envelope{Type: sig.Type, Data: sig.Data}
	for _, c := range sig.Commands {
		env.Commands = append(env.Commands, string(c))
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return b, nil
}

// Digest returns the hex BLAKE3 digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalizeNumbers converts json.Number values to int64 when integral and
// float64 otherwise, recursing into nested maps and slices.
func normalizeNumbers(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		return normalizeNumbers(x)
	case []any:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	default:
		return v
	}
}
