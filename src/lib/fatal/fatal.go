// Package fatal is the kernel's terminal path: print where and why, then
// halt the machine. Nothing in here returns to its caller.
package fatal

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"equanimity/src/lib/console"
	"equanimity/src/lib/semihosting"
)

// Location is a source position, as reported by the runtime.
type Location struct {
	File string
	Line int
}

// Handler is anything that can take the kernel down. Implementations must
// not return from either method.
type Handler interface {
	Panic(cause string)
	PanicAt(file string, line int, cause string)
}

// Reporter writes the panic line to a console and then calls the shutdown
// collaborator.
type Reporter struct {
	out      console.Console
	shutdown func()
	depth    int // reports in progress
}

func NewReporter(c console.Console, shutdown func()) *Reporter {
	return &Reporter{out: c, shutdown: shutdown}
}

// Report emits one line and halts. loc may be nil when the fault has no
// useful source position.
func (r *Reporter) Report(cause string, loc *Location) {
	r.depth++
	switch {
	case r.depth == 2:
		// the console or something under it faulted while we were using it
		r.out.WriteString("[kernel] Panicked while panicking\n")
	case r.depth > 2:
	case loc != nil:
		r.out.Logf("[kernel] Panicked at %s:%d %s", loc.File, loc.Line, cause)
	default:
		r.out.Logf("[kernel] Panicked: %s", cause)
	}
	r.halt()
}

func (r *Reporter) halt() {
	r.shutdown()
	for {
	}
}

func (r *Reporter) Panic(cause string) {
	r.Report(cause, nil)
}

func (r *Reporter) PanicAt(file string, line int, cause string) {
	r.Report(cause, &Location{File: file, Line: line})
}

// Recover turns a Go panic that reached the top of the kernel into a
// report. It has to be deferred directly:
//
//	defer r.Recover()
func (r *Reporter) Recover() {
	v := recover()
	if v == nil {
		return
	}
	r.Report(fmt.Sprint(v), panicSite())
}

// panicSite finds the first non-runtime frame below runtime.gopanic, which
// is the code that panicked (or faulted, for nil derefs and the like).
func panicSite() *Location {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	unwinding := false
	for {
		f, more := frames.Next()
		if unwinding && !strings.HasPrefix(f.Function, "runtime.") {
			return &Location{File: f.File, Line: f.Line}
		}
		if f.Function == "runtime.gopanic" {
			unwinding = true
		}
		if !more {
			return nil
		}
	}
}

var kernel Handler = NewReporter(console.NewWriter(os.Stdout), semihosting.Shutdown)

// Install makes h the handler used by Panic, PanicAt, Panicf and by every
// cell built without an explicit handler. It returns the previous one.
func Install(h Handler) Handler {
	prev := kernel
	kernel = h
	return prev
}

func Kernel() Handler {
	return kernel
}

func Panic(cause string) {
	kernel.Panic(cause)
}

func PanicAt(file string, line int, cause string) {
	kernel.PanicAt(file, line, cause)
}

// Panicf reports at the caller's position.
func Panicf(format string, args ...interface{}) {
	cause := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(1); ok {
		kernel.PanicAt(file, line, cause)
	} else {
		kernel.Panic(cause)
	}
	// only reached if the installed handler returned
	panic(cause)
}
