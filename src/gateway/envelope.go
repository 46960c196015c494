package gateway

import (
	"encoding/json"
	"fmt"
)

// Envelope is a single gateway frame: {"op": int, "d": any, "s": int|null, "t": string|null}.
// It is never mutated after decoding.
type Envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// DecodeError reports a frame that could not be decoded. Frames that fail to
// decode are logged and dropped; they never tear down the connection.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeEnvelope parses a text frame into an Envelope. The op field is
// required; everything else defaults to absent. Opcode range checking is the
// session's job, not the codec's.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw struct {
		Op *int            `json:"op"`
		D  json.RawMessage `json:"d"`
		S  *int64          `json:"s"`
		T  *string         `json:"t"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Reason: "malformed JSON", Err: err}
	}
	if raw.Op == nil {
		return nil, &DecodeError{Reason: "missing op field"}
	}
	e := &Envelope{Op: *raw.Op, D: raw.D, S: raw.S}
	if raw.T != nil {
		e.T = *raw.T
	}
	return e, nil
}

// Marshal encodes the envelope back into a text frame.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("gateway: could not marshal envelope: %w", err)
	}
	return data, nil
}
