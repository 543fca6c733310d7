package tools

import "encoding/json"

// Result is the outcome of executing one Call. Exactly one Result exists
// per Call; a failing handler produces a failure Result, never an error
// up the stack.
type Result struct {
	Tool    Name            `json:"tool"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK builds a success result. Marshal failures degrade to a failure
// result so the caller always gets something serializable.
func OK(tool Name, payload any) Result {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Fail(tool, "marshal payload: "+err.Error())
	}
	return Result{Tool: tool, Success: true, Payload: raw}
}

// Fail builds a failure result with a message.
func Fail(tool Name, msg string) Result {
	return Result{Tool: tool, Success: false, Error: msg}
}

// History renders the result as the compact JSON line appended to the
// conversation history after execution.
func (r Result) History() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return `{"tool":"` + string(r.Tool) + `","success":false,"error":"unserializable result"}`
	}
	return string(raw)
}
