package upbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitSetBasics(t *testing.T) {
	b, err := NewBitSet(128)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), b.Size())

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(127)
	assert.True(t, b.On(63))
	assert.True(t, b.On(64))
	assert.False(t, b.On(65))
	assert.Equal(t, 4, b.Count())

	b.Clear(63)
	assert.False(t, b.On(63))
	assert.Equal(t, 3, b.Count())
}

func TestBitSetSizeMustBeMultipleOf64(t *testing.T) {
	for _, size := range []uint32{0, 1, 65, 100} {
		_, err := NewBitSet(size)
		assert.Error(t, err, "size %d", size)
	}
}

func TestFindClearRun(t *testing.T) {
	b, err := NewBitSet(64)
	require.NoError(t, err)
	b.Set(0)
	b.Set(3)

	at, ok := b.FindClearRun(2)
	require.True(t, ok)
	assert.Equal(t, BitIndex(1), at)

	at, ok = b.FindClearRun(3)
	require.True(t, ok)
	assert.Equal(t, BitIndex(4), at)

	_, ok = b.FindClearRun(61)
	assert.False(t, ok)
	_, ok = b.FindClearRun(0)
	assert.False(t, ok)
}

func TestLoadBootParamsDefaults(t *testing.T) {
	p, err := LoadBootParams()
	require.NoError(t, err)
	assert.Equal(t, DefaultBootParams(), p)
}

func TestLoadBootParamsFromEnv(t *testing.T) {
	t.Setenv("JOY_CONSOLE", "/dev/ttyS1")
	t.Setenv("JOY_LOG_LEVEL", "debug")
	t.Setenv("JOY_TICKS", "40")
	t.Setenv("JOY_PAGES", "512")
	t.Setenv("JOY_MAX_FAMILIES", "8")

	p, err := LoadBootParams()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", p.Console)
	assert.Equal(t, "debug", p.LogLevel)
	assert.Equal(t, 40, p.Ticks)
	assert.Equal(t, uint32(512), p.Pages)
	assert.Equal(t, 8, p.MaxFamilies)
}

func TestLoadBootParamsRejectsBadValues(t *testing.T) {
	t.Setenv("JOY_TICKS", "lots")
	_, err := LoadBootParams()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *BootParams)
	}{
		{"pages not multiple of 64", func(p *BootParams) { p.Pages = 100 }},
		{"no families", func(p *BootParams) { p.MaxFamilies = 0 }},
		{"no stack", func(p *BootParams) { p.StackPages = 0 }},
		{"family bigger than memory", func(p *BootParams) { p.Pages = 64; p.HeapPages = 64 }},
		{"negative ticks", func(p *BootParams) { p.Ticks = -1 }},
	}
	assert.NoError(t, DefaultBootParams().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultBootParams()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestBoardRevisionDecode(t *testing.T) {
	assert.Equal(t, "3B, Revision 1.2, 1GB, Sony UK", BoardRevisionDecode("a02082"))
	assert.Equal(t, "unknown board", BoardRevisionDecode("ffffff"))
}

func TestExceptionClass(t *testing.T) {
	assert.Equal(t, "data abort from same exception level", ExceptionClass(37<<26))
	assert.Equal(t, "SVC instruction in AARCH64 [7]", ExceptionClass(21<<26|7))
	assert.Equal(t, "unknown exception (0)", ExceptionClass(0))
	assert.Equal(t, "unused exception code, should never happen (2)", ExceptionClass(2<<26))
}
