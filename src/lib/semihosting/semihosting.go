package semihosting

import (
	"os"
	"time"
)

type SemiHostingOp uint64

const (
	SemiHostOpExit  SemiHostingOp = 0x18
	SemiHostOpClock SemiHostingOp = 0x10
)

type SemihostingStopCode int

const (
	SemihostingStopBreakpoint          SemihostingStopCode = 0x20020
	SemihostingStopWatchpoint          SemihostingStopCode = 0x20021
	SemihostingStopStepComplete        SemihostingStopCode = 0x20022
	SemihostingStopRuntimeErrorUnknown SemihostingStopCode = 0x20023
	SemihostingStopInternalError       SemihostingStopCode = 0x20024
	SemihostingStopUserInterruption    SemihostingStopCode = 0x20025
	SemihostingStopApplicationExit     SemihostingStopCode = 0x20026
	SemihostingStopStackOverflow       SemihostingStopCode = 0x20027
	SemihostingStopDivisionByZero      SemihostingStopCode = 0x20028
	SemihostingStopOSSpecific          SemihostingStopCode = 0x20029
)

// FailureExitCode is the code Shutdown hands to the host.
const FailureExitCode = 1

// paramBlock is the two word block the host reads for SYS_EXIT_EXTENDED:
// the stop reason followed by the exit code.
var paramBlock [2]uint64

var bootTime = time.Now()

// exitFn stands in for the "hlt 0xF000" trap on a hosted build. Tests
// replace it with something that panics so the caller's frame never resumes.
var exitFn = os.Exit

var flushers []func()
var flushed bool

//semihostingCall is the single trap into the host. The second param
//is either a plain value or the param block, depending on op.
func semihostingCall(op SemiHostingOp, block *[2]uint64) uint64 {
	switch op {
	case SemiHostOpExit:
		runFlushers()
		exitFn(int(block[1]))
		return 0
	case SemiHostOpClock:
		return uint64(time.Since(bootTime) / (10 * time.Millisecond))
	}
	return ^uint64(0)
}

// OnShutdown registers fn to run just before the host is asked to stop.
// Flushers run last-registered first, and only once.
func OnShutdown(fn func()) {
	flushers = append(flushers, fn)
}

func runFlushers() {
	if flushed {
		return
	}
	flushed = true
	for i := len(flushers) - 1; i >= 0; i-- {
		flushers[i]()
	}
}

//Exit asks the host to stop the machine with the given exit code.
func Exit(code uint64) {
	paramBlock[0] = uint64(SemihostingStopApplicationExit)
	paramBlock[1] = code
	semihostingCall(SemiHostOpExit, &paramBlock)
}

//Shutdown halts the machine and never returns. If the host ignores the
//exit request the cpu is parked here forever.
func Shutdown() {
	Exit(FailureExitCode)
	for {
	}
}

//Clock returns centiseconds since boot, as SYS_CLOCK does.
func Clock() uint64 {
	return semihostingCall(SemiHostOpClock, nil)
}
