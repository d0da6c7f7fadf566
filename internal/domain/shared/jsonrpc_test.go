package shared

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestUnmarshal(t *testing.T) {
	jsonData := `{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "pb_feature_list",
		"params": {"limit": 5}
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(jsonData), &req))

	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, float64(1), req.ID)
	assert.Equal(t, "pb_feature_list", req.Method)
	assert.Equal(t, float64(5), req.Params["limit"])
	assert.True(t, req.HasID())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("abc"))
	assert.True(t, ValidID(float64(0)))
	assert.True(t, ValidID(7))
	assert.True(t, ValidID(json.Number("12")))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID(nil))
	assert.False(t, ValidID(true))
	assert.False(t, ValidID(map[string]any{}))
}

func TestResponseMarshalResult(t *testing.T) {
	resp := Response{ID: 1, Result: map[string]any{"data": []any{}}}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"data":[]}}`, string(data))
}

func TestResponseMarshalNilResultIsEmptyObject(t *testing.T) {
	data, err := json.Marshal(Response{ID: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"a","result":{}}`, string(data))
}

func TestResponseMarshalErrorOmitsResult(t *testing.T) {
	resp := Response{
		ID:     2,
		Result: "ignored",
		Error:  &JSONRPCError{Code: int(ParseError), Message: "Unknown tool: unknown_tool"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32700,"message":"Unknown tool: unknown_tool"}}`, string(data))
}

func TestResponseMarshalNullID(t *testing.T) {
	data, err := json.Marshal(Response{Error: &JSONRPCError{Code: int(ParseError), Message: "Invalid JSON"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Invalid JSON"}}`, string(data))
}

func TestResponseRoundTrip(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32603,"message":"Internal error","data":{"originalError":"x"}}}`), &resp))
	assert.True(t, resp.IsError())
	assert.Nil(t, resp.Result)
	assert.Equal(t, -32603, resp.Error.Code)
	assert.Contains(t, resp.Error.Error(), "Internal error")

	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":4,"result":{"ok":true}}`), &resp))
	assert.False(t, resp.IsError())
	assert.Equal(t, map[string]any{"ok": true}, resp.Result)
}
