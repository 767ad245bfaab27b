package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain object", `{"page_type":"Pharmacy","bill_items":[]}`, false},
		{"fenced json", "```json\n{\"page_type\":\"Pharmacy\"}\n```", false},
		{"fenced no lang", "```\n{\"a\":1}\n```", false},
		{"surrounding prose", "Here is the result:\n{\"a\":1}\nDone.", false},
		{"array", `[1,2,3]`, false},
		{"empty", "", true},
		{"not json", "no braces here", true},
		{"truncated", `{"a":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !json.Valid(got) {
				t.Errorf("result is not valid JSON: %s", got)
			}
		})
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"name": "bill_page_extraction",
		"strict": true,
		"schema": {
			"type": "object",
			"properties": {
				"page_type": {"type": "string"},
				"bill_items": {"type": "array"}
			},
			"required": ["page_type", "bill_items"],
			"additionalProperties": false
		}
	}`)

	t.Run("valid document", func(t *testing.T) {
		doc := json.RawMessage(`{"page_type":"Pharmacy","bill_items":[]}`)
		if err := ValidateStructuredJSON(schema, doc); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		doc := json.RawMessage(`{"page_type":"Pharmacy"}`)
		if err := ValidateStructuredJSON(schema, doc); err == nil {
			t.Error("expected validation error for missing bill_items")
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		doc := json.RawMessage(`{"page_type":3,"bill_items":[]}`)
		if err := ValidateStructuredJSON(schema, doc); err == nil {
			t.Error("expected validation error for numeric page_type")
		}
	})

	t.Run("empty schema is a no-op", func(t *testing.T) {
		if err := ValidateStructuredJSON(nil, json.RawMessage(`{}`)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestStructuredRepairPrompt(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	prompt := StructuredRepairPrompt(schema, `{"bad": true`, errors.New("unexpected end of JSON input"))

	for _, want := range []string{`{"type":"object"}`, `{"bad": true`, "unexpected end of JSON input"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("repair prompt missing %q:\n%s", want, prompt)
		}
	}
}
