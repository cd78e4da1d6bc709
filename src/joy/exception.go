package joy

import (
	"fmt"

	"equanimity/src/lib/upbeat"
	"equanimity/src/lib/upcell"
)

// Trap is where the vector table sends anything the kernel has no handler
// for. There is no recovering from these.
func (k *Kernel) Trap(esr uint64, addr uint64, el uint64) {
	// the fault may have hit while the family table was held; asking for
	// it again would only report the reentry and hide the real cause
	who := "family table busy"
	if k.families.State() == upcell.NotBorrowed {
		who = fmt.Sprintf("family %d", k.Current())
	}
	k.handler.Panic(fmt.Sprintf("unhandled exception: %s (esr %x with addr %x and EL=%d, %s)",
		upbeat.ExceptionClass(esr), esr, addr, el, who))
}
