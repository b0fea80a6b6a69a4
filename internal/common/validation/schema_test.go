package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["userId", "events"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"type":   {"type": "string", "enum": ["sms:sent", "sms:received"]},
		"events": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
	}
}`

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile("test", testSchema)

	tests := []struct {
		name      string
		body      string
		valid     bool
		wantField string
		wantCode  string
	}{
		{
			name:  "valid body",
			body:  `{"userId":"u-1","events":["sms:sent"]}`,
			valid: true,
		},
		{
			name:      "missing userId",
			body:      `{"events":["sms:sent"]}`,
			wantField: "userId",
			wantCode:  "REQUIRED",
		},
		{
			name:      "empty userId",
			body:      `{"userId":"","events":["sms:sent"]}`,
			wantField: "userId",
		},
		{
			name:      "empty events",
			body:      `{"userId":"u-1","events":[]}`,
			wantField: "events",
		},
		{
			name:      "type outside enum",
			body:      `{"userId":"u-1","events":["x"],"type":"sms:failed"}`,
			wantField: "type",
			wantCode:  "ENUM",
		},
		{
			name:      "malformed json",
			body:      `{"userId":`,
			wantField: "(root)",
			wantCode:  "INVALID_JSON",
		},
		{
			name:      "empty body",
			body:      ``,
			wantField: "(root)",
			wantCode:  "EMPTY_BODY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.Validate([]byte(tt.body))
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.True(t, result.HasErrors(tt.wantField), "errors: %v", result.GetErrorMessages())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			}
			assert.NotEmpty(t, result.Error())
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
}

func TestIsAbsoluteURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/hook":        true,
		"http://localhost:8080/callbacks": true,
		"not-a-url":                       false,
		"/relative/path":                  false,
		"ftp://example.com/file":          false,
		"https://":                        false,
		"":                                false,
	}
	for raw, want := range tests {
		assert.Equal(t, want, IsAbsoluteURL(raw), raw)
	}
}
