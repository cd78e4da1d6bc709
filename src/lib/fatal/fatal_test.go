package fatal

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equanimity/src/lib/console"
)

// halted is what the test shutdown panics with; seeing it means the
// reporter went all the way to the shutdown primitive.
type halted struct{}

func newTestReporter() (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewReporter(console.NewWriter(&buf), func() { panic(halted{}) }), &buf
}

func TestReportWithLocation(t *testing.T) {
	r, buf := newTestReporter()

	require.PanicsWithValue(t, halted{}, func() {
		r.PanicAt("trap.rs", 42, "divide by zero")
	})
	assert.Equal(t, "[kernel] Panicked at trap.rs:42 divide by zero\n", buf.String())
}

func TestReportWithoutLocation(t *testing.T) {
	r, buf := newTestReporter()

	require.PanicsWithValue(t, halted{}, func() { r.Panic("divide by zero") })
	assert.Equal(t, "[kernel] Panicked: divide by zero\n", buf.String())
	assert.NotContains(t, buf.String(), " at ")
}

func TestLineIsWrittenBeforeShutdown(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	r := NewReporter(console.NewWriter(&buf), func() {
		seen = buf.String()
		panic(halted{})
	})

	require.Panics(t, func() { r.Report("bad trap frame", &Location{File: "trap.go", Line: 7}) })
	assert.Equal(t, "[kernel] Panicked at trap.go:7 bad trap frame\n", seen)
}

func TestReportNeverReturns(t *testing.T) {
	r, _ := newTestReporter()
	resumed := false

	require.Panics(t, func() {
		r.Panic("no current family")
		resumed = true
	})
	assert.False(t, resumed)
}

func TestCauseIsNotAFormat(t *testing.T) {
	r, buf := newTestReporter()

	require.Panics(t, func() { r.Panic("100% busy") })
	assert.Equal(t, "[kernel] Panicked: 100% busy\n", buf.String())
}

// brokenUART faults the first time the kernel logs through it.
type brokenUART struct {
	*console.Writer
	faulted bool
}

func (b *brokenUART) Logf(format string, values ...interface{}) {
	if !b.faulted {
		b.faulted = true
		panic("uart gone")
	}
	b.Writer.Logf(format, values...)
}

func TestPanicWhilePanicking(t *testing.T) {
	var buf bytes.Buffer
	uart := &brokenUART{Writer: console.NewWriter(&buf)}
	r := NewReporter(uart, func() { panic(halted{}) })

	require.PanicsWithValue(t, halted{}, func() {
		defer r.Recover()
		r.Panic("first fault")
	})
	assert.Equal(t, "[kernel] Panicked while panicking\n", buf.String())
}

func TestPanicWhilePanickingOnSerial(t *testing.T) {
	var buf bytes.Buffer
	w := console.NewWriter(&buf)
	w.CRLF = true
	r := NewReporter(&brokenUART{Writer: w}, func() { panic(halted{}) })

	require.PanicsWithValue(t, halted{}, func() {
		defer r.Recover()
		r.Panic("first fault")
	})
	assert.Equal(t, "[kernel] Panicked while panicking\r\n", buf.String())
}

func TestRecoverReportsPanicSite(t *testing.T) {
	r, buf := newTestReporter()
	var file string
	var line int

	require.PanicsWithValue(t, halted{}, func() {
		defer r.Recover()
		_, file, line, _ = runtime.Caller(0)
		panic("scheduler table corrupt")
	})
	assert.Equal(t,
		"[kernel] Panicked at "+file+":"+strconv.Itoa(line+1)+" scheduler table corrupt\n",
		buf.String())
}

func TestRecoverRuntimeError(t *testing.T) {
	r, buf := newTestReporter()
	var frame *int

	require.PanicsWithValue(t, halted{}, func() {
		defer r.Recover()
		*frame = 1
	})
	assert.Contains(t, buf.String(), "fatal_test.go:")
	assert.Contains(t, buf.String(), "nil pointer dereference")
}

func TestRecoverWithoutPanicReturns(t *testing.T) {
	r, buf := newTestReporter()

	assert.NotPanics(t, func() {
		defer r.Recover()
	})
	assert.Empty(t, buf.String())
}

func TestInstalledHandlerServesPackageFuncs(t *testing.T) {
	r, buf := newTestReporter()
	prev := Install(r)
	t.Cleanup(func() { Install(prev) })
	assert.Same(t, r, Kernel())

	require.Panics(t, func() { Panic("uncategorized") })
	assert.Equal(t, "[kernel] Panicked: uncategorized\n", buf.String())

	r2, buf2 := newTestReporter()
	Install(r2)
	var line int
	require.Panics(t, func() {
		_, _, line, _ = runtime.Caller(0)
		Panicf("bad syscall %d", 99)
	})
	assert.Contains(t, buf2.String(), "fatal_test.go:"+strconv.Itoa(line+1)+" bad syscall 99")

	r3, buf3 := newTestReporter()
	Install(r3)
	require.Panics(t, func() { PanicAt("mm.go", 12, "out of frames") })
	assert.Equal(t, "[kernel] Panicked at mm.go:12 out of frames\n", buf3.String())
}

// returningHandler breaks the Handler contract by coming back.
type returningHandler struct {
	calls []string
}

func (h *returningHandler) Panic(cause string) {
	h.calls = append(h.calls, cause)
}

func (h *returningHandler) PanicAt(file string, line int, cause string) {
	h.calls = append(h.calls, file+":"+strconv.Itoa(line)+" "+cause)
}

func TestPanicfReportsOnceWhenHandlerReturns(t *testing.T) {
	h := &returningHandler{}
	prev := Install(h)
	t.Cleanup(func() { Install(prev) })

	require.PanicsWithValue(t, "bad syscall 7", func() { Panicf("bad syscall %d", 7) })
	require.Len(t, h.calls, 1)
	assert.Contains(t, h.calls[0], "fatal_test.go:")
	assert.True(t, strings.HasSuffix(h.calls[0], " bad syscall 7"))
}
