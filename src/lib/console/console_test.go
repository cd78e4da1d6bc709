package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogfTerminatesLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	c.Logf("hello %s", "joy")
	c.Logf("already %d\n", 2)
	c.Logf("")

	assert.Equal(t, "hello joy\nalready 2\n", buf.String())
}

func TestCRLFTranslation(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)
	c.CRLF = true

	c.Logf("a\nb")
	c.WriteString("raw\n")
	c.WriteString("already\r\n")
	_, err := c.Write([]byte("bytes\n"))
	require.NoError(t, err)

	assert.Equal(t, "a\r\nb\r\nraw\r\nalready\r\nbytes\r\n", buf.String())
	assert.Equal(t, "0x003f\n", c.Sprintf("0x%04x\n", 63), "formatting alone never translates")
}

func TestSprintfFormats(t *testing.T) {
	c := NewWriter(&bytes.Buffer{})
	cases := []struct {
		format string
		value  interface{}
		want   string
	}{
		{"%d", 12, "12"},
		{"%04d", -7, "-007"},
		{"0x%-4x", 63, "0x3f  "},
		{"%6s", "foo", "   foo"},
		{"%-6s", "foo", "foo   "},
		{"%10v", int64(12345678), "  12345678"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Sprintf(tc.format, tc.value), tc.format)
	}
}

func TestOpenNamedConsoles(t *testing.T) {
	for _, name := range []string{"", "stdout", "stderr"} {
		c, closeFn, err := Open(name)
		require.NoError(t, err, name)
		require.NotNil(t, c)
		assert.NoError(t, closeFn())
	}
}

func TestOpenMissingDevice(t *testing.T) {
	c, closeFn, err := Open("/dev/no-such-uart-for-joy")
	require.Error(t, err)
	assert.Nil(t, c)
	assert.NoError(t, closeFn())
}
