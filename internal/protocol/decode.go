package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

var (
	// ErrInvalidEnvelope is returned for data that is not a message envelope.
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrUnknownType is returned for envelopes whose type the bridge ignores.
	ErrUnknownType = errors.New("unknown message type")
	// ErrInvalidPayload is returned when a payload has the wrong shape.
	ErrInvalidPayload = errors.New("invalid payload")
)

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["messageType"],
  "properties": {
    "messageType": {"type": "string", "minLength": 1}
  }
}`

// Decoder validates and decodes inbound envelopes.
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the envelope schema.
func NewDecoder() (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode parses data into an envelope. Envelopes that fail the schema wrap
// ErrInvalidEnvelope; well-formed envelopes of a type the bridge does not
// act on wrap ErrUnknownType and are still returned.
func (d *Decoder) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if !json.Valid(data) {
		return env, fmt.Errorf("%w: malformed JSON", ErrInvalidEnvelope)
	}
	result := d.schema.ValidateJSON(data)
	if !result.IsValid() {
		return env, fmt.Errorf("%w: %v", ErrInvalidEnvelope, result.Errors)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if !IsInbound(env.MessageType) {
		return env, fmt.Errorf("%w: %s", ErrUnknownType, env.MessageType)
	}
	return env, nil
}

// SourceText returns the string carried by an insert message. A missing
// message is treated as empty source.
func (e Envelope) SourceText() (string, error) {
	if len(e.Message) == 0 || string(e.Message) == "null" {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(e.Message, &text); err != nil {
		return "", fmt.Errorf("%w: %s expects a string: %v", ErrInvalidPayload, e.MessageType, err)
	}
	return text, nil
}

// ServerOS decodes the payload of TypeServerOSResponse.
func (e Envelope) ServerOS() (ServerOSInfo, error) {
	var info ServerOSInfo
	if len(e.Message) == 0 {
		return info, fmt.Errorf("%w: %s has no message", ErrInvalidPayload, e.MessageType)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Message, &fields); err != nil {
		return info, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(e.Message, &info); err != nil {
		return info, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	delete(fields, "serverOS")
	delete(fields, "isPortal")
	if len(fields) > 0 {
		info.Extra = fields
	}
	return info, nil
}
