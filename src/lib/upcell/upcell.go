// Package upcell lets statically allocated kernel state be mutated without
// a lock, by checking at runtime that only one piece of code holds it.
//
// This is only sound on a uniprocessor where kernel code runs on a single
// execution context: a Cell provides no exclusion between cores or between
// goroutines. Whoever declares a Cell is responsible for that; nothing here
// checks it. What it does catch is reentrancy, a second ExclusiveAccess
// while an earlier handle is still live, which takes the kernel down with
// both call sites in the message.
package upcell

import (
	"fmt"
	"runtime"

	"equanimity/src/lib/fatal"
)

type BorrowState int

const (
	NotBorrowed BorrowState = iota
	BorrowedExclusively
)

func (s BorrowState) String() string {
	switch s {
	case NotBorrowed:
		return "not borrowed"
	case BorrowedExclusively:
		return "borrowed exclusively"
	}
	return fmt.Sprintf("BorrowState(%d)", int(s))
}

// Provenance names the call site that holds the cell.
type Provenance struct {
	File string
	Line int
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Cell wraps one value of kernel state. The zero Cell is not usable; use New.
type Cell[T any] struct {
	inner   T
	state   BorrowState
	trace   Provenance
	traced  bool          // trace is only meaningful while a handle is live
	handler fatal.Handler // nil: whatever fatal.Kernel() is at conflict time
}

// New wraps value. The caller guarantees the cell is only ever used from
// one execution context at a time.
func New[T any](value T) *Cell[T] {
	return &Cell[T]{inner: value}
}

// NewWithHandler is New with conflicts routed to h rather than to the
// kernel-wide handler.
func NewWithHandler[T any](value T, h fatal.Handler) *Cell[T] {
	return &Cell[T]{inner: value, handler: h}
}

// ExclusiveAccess returns the only handle to the wrapped value, recording
// the caller as its owner. If a handle is already live it does not return:
// the kernel panics naming the current owner and this caller.
func (c *Cell[T]) ExclusiveAccess() *Handle[T] {
	_, file, line, _ := runtime.Caller(1)
	return c.acquire(file, line)
}

// ExclusiveAccessAt is ExclusiveAccess for callers that want to name the
// site themselves, e.g. code reached from an assembly trampoline where the
// runtime's idea of the caller is useless.
func (c *Cell[T]) ExclusiveAccessAt(file string, line int) *Handle[T] {
	return c.acquire(file, line)
}

// With runs fn holding the cell. The handle is released however fn exits,
// including by panicking.
func (c *Cell[T]) With(fn func(v *T)) {
	_, file, line, _ := runtime.Caller(1)
	h := c.acquire(file, line)
	defer h.Release()
	fn(h.Ptr())
}

func (c *Cell[T]) acquire(file string, line int) *Handle[T] {
	if c.state == BorrowedExclusively {
		c.conflict(file, line)
	}
	c.state = BorrowedExclusively
	c.trace = Provenance{File: file, Line: line}
	c.traced = true
	return &Handle[T]{cell: c, site: c.trace}
}

func (c *Cell[T]) conflict(file string, line int) {
	var cause string
	if c.traced {
		cause = fmt.Sprintf("UPSafeCell: already borrowed! \n  -> Current Owner: %s:%d \n  -> New Request: %s:%d",
			c.trace.File, c.trace.Line, file, line)
	} else {
		cause = "UPSafeCell: already borrowed (No trace info)!"
	}
	c.fatal().PanicAt(file, line, cause)
	// a handler that comes back has broken its contract; a second borrow
	// must still never be handed out.
	panic(cause)
}

func (c *Cell[T]) fatal() fatal.Handler {
	if c.handler != nil {
		return c.handler
	}
	return fatal.Kernel()
}

// State reports whether a handle is live. It never borrows.
func (c *Cell[T]) State() BorrowState {
	return c.state
}

// Owner is the site holding the cell, if any.
func (c *Cell[T]) Owner() (Provenance, bool) {
	return c.trace, c.traced
}

// Handle is a live exclusive borrow of a Cell. Release it with defer right
// after acquiring it.
type Handle[T any] struct {
	cell     *Cell[T]
	site     Provenance
	released bool
}

// Ptr gives read/write access for as long as the handle is live. Don't
// keep the pointer past Release.
func (h *Handle[T]) Ptr() *T {
	h.mustBeLive()
	return &h.cell.inner
}

func (h *Handle[T]) Get() T {
	h.mustBeLive()
	return h.cell.inner
}

func (h *Handle[T]) Set(v T) {
	h.mustBeLive()
	h.cell.inner = v
}

// Provenance is where this handle was acquired.
func (h *Handle[T]) Provenance() Provenance {
	return h.site
}

// Release makes the cell available again. Releasing a handle a second time
// does nothing, in particular it never touches a later owner's borrow.
func (h *Handle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.cell.state = NotBorrowed
	h.cell.trace = Provenance{}
	h.cell.traced = false
}

func (h *Handle[T]) mustBeLive() {
	if !h.released {
		return
	}
	_, file, line, _ := runtime.Caller(2)
	h.cell.fatal().PanicAt(file, line, "UPSafeCell: access through released handle")
	panic("UPSafeCell: access through released handle")
}
