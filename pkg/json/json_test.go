package json

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalNoHTMLEscape(t *testing.T) {
	data, err := Marshal(map[string]string{"cut": "a<b && c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"cut":"a<b && c>d"}`, string(data))
}

func TestDecodeNumbersKeepsIntegers(t *testing.T) {
	var v map[string]interface{}
	require.NoError(t, DecodeNumbers(strings.NewReader(`{"n": 1, "x": 2.5, "s": "t"}`), &v))
	assert.Equal(t, Number("1"), v["n"])
	assert.Equal(t, Number("2.5"), v["x"])
	assert.Equal(t, "t", v["s"])
}

func TestAppendString(t *testing.T) {
	assert.Equal(t, `x="a\"b\n"`, string(AppendString([]byte("x="), "a\"b\n")))
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("data")
	PutBuffer(buf)
	assert.Equal(t, 0, GetBuffer().Len())
}
