package providers

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"tool": "quick_check"}`,
			want:  `{"tool":"quick_check"}`,
		},
		{
			name:  "fenced",
			input: "```json\n{\"tool\": \"quick_check\"}\n```",
			want:  `{"tool":"quick_check"}`,
		},
		{
			name:  "prose around object",
			input: "Here is my call:\n{\"tool\": \"quick_check\"}\nDone.",
			want:  `{"tool":"quick_check"}`,
		},
		{
			name:  "array",
			input: `[1, 2, 3]`,
			want:  `[1,2,3]`,
		},
		{
			name:    "no json",
			input:   "I could not decide on a tool.",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`)

	if err := ValidateJSON(schema, json.RawMessage(`{"query": "storm"}`)); err != nil {
		t.Errorf("valid doc rejected: %v", err)
	}
	if err := ValidateJSON(schema, json.RawMessage(`{"limit": 3}`)); err == nil {
		t.Error("missing required key accepted")
	}
	if err := ValidateJSON(nil, json.RawMessage(`{}`)); err != nil {
		t.Errorf("empty schema should pass: %v", err)
	}
}

func TestMockClientQueue(t *testing.T) {
	c := NewMockClient()
	c.Enqueue("first", "second")

	req := &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}

	for i, want := range []string{"first", "second", "mock response"} {
		res, err := c.Chat(t.Context(), req)
		if err != nil {
			t.Fatalf("chat %d: %v", i, err)
		}
		if res.Content != want {
			t.Errorf("chat %d: got %q, want %q", i, res.Content, want)
		}
	}
	if c.RequestCount() != 3 {
		t.Errorf("request count = %d, want 3", c.RequestCount())
	}
}
