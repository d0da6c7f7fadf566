package shared

import (
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextContent(t *testing.T) {
	content := NewTextContent("hello")
	assert.Equal(t, "text", content.Type)
	assert.Equal(t, "hello", content.Text)
}

func TestToolDescriptorJSON(t *testing.T) {
	tool := Tool{
		Name:        "pb_feature_list",
		Description: "List features",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}

	data, err := json.Marshal(tool)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "pb_feature_list", decoded["name"])
	assert.Equal(t, map[string]any{"type": "object"}, decoded["inputSchema"])
}

func TestResourceContentOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(ResourceContent{URI: "productboard://docs/tools", Text: "# Tools"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"productboard://docs/tools","text":"# Tools"}`, string(data))
}
