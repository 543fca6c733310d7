package tools

import (
	"encoding/json"
	"fmt"
)

// Call is one parsed tool invocation from model output. Args holds the
// raw parameter object; Params is populated once Decode succeeds.
type Call struct {
	Name   Name            `json:"tool"`
	Args   json.RawMessage `json:"parameters,omitempty"`
	Reason string          `json:"reason,omitempty"`

	Params Params `json:"-"`
}

// ParseCall unmarshals a JSON tool call and validates its parameters
// against the tool's schema.
func ParseCall(raw []byte) (*Call, error) {
	var c Call
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("tool call is not valid JSON: %w", err)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("tool call has no tool name")
	}
	if !Known(c.Name) {
		return nil, fmt.Errorf("unknown tool %q", c.Name)
	}
	params, err := DecodeParams(c.Name, c.Args)
	if err != nil {
		return nil, err
	}
	c.Params = params
	return &c, nil
}
