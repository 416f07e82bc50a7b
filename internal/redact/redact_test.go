package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	out := Text("call me at +44 20 7946 0958 or alice@example.com")
	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "7946 0958")
	assert.Contains(t, out, Token)
}

func TestTextIdempotent(t *testing.T) {
	once := Text("contact bob@example.org now")
	twice := Text(once)
	assert.Equal(t, once, twice)
}

func TestTextEmpty(t *testing.T) {
	assert.Equal(t, "", Text(""))
}

func TestPayloadRecursive(t *testing.T) {
	in := map[string]any{
		"note": "email alice@example.com",
		"nested": map[string]any{
			"passport": "AB1234567",
		},
		"list": []any{"national id 12345678901", 42},
		"keep": 7,
	}
	out := Payload(in)
	require.NotContains(t, out["note"], "alice@example.com")
	nested, ok := out["nested"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, nested["passport"], "AB1234567")
	list, ok := out["list"].([]any)
	require.True(t, ok)
	assert.NotContains(t, list[0], "12345678901")
	assert.Equal(t, 42, list[1])
	assert.Equal(t, 7, out["keep"])
}
