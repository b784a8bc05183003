package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

var testSchema = &Schema{
	Name:        "validate_test_person",
	Description: "test schema",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required":             []string{"name"},
		"additionalProperties": false,
	},
}

func TestValidateResponse(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid payload", `{"name":"ada","age":36}`, false},
		{"missing required field", `{"age":36}`, true},
		{"wrong type", `{"name":42}`, true},
		{"extra property", `{"name":"ada","role":"admin"}`, true},
		{"not json", `{"name":`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateResponse(testSchema, json.RawMessage(tc.raw))
			if tc.wantErr {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				if len(inv.Content) == 0 {
					t.Error("invalid response must carry the raw content for diagnostics")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateResponse_NilSchemaSkipsValidation(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`anything goes`)); err != nil {
		t.Fatalf("nil schema must skip validation, got %v", err)
	}
}
