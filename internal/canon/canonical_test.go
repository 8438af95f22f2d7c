package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"zeta":  int64(1),
		"alpha": "a",
		"mid":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":true,"zeta":1}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(data))
}

func TestMarshalCanonical_NFCNormalizes(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	data, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(data))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))
}

func TestMarshalCanonical_EscapedBackslashKept(t *testing.T) {
	data, err := MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(data))
}

func TestMarshalCanonical_Nested(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"paths": []string{"b", "a"},
		"steps": []any{map[string]any{"exit_code": 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"paths":["b","a"],"steps":[{"exit_code":0}]}`, string(data))
}

func TestMarshalCanonical_RejectsFloatAndNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"f": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = MarshalCanonical([]any{nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null is forbidden")
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D..., which sort before U+FF61 in UTF-16
	// even though its UTF-8 encoding sorts after.
	data, err := MarshalCanonical(map[string]any{
		"\uff61":     int64(1),
		"\U0001F600": int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(data))
}
