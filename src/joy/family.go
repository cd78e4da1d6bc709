package joy

import (
	"equanimity/src/lib/trust"
)

//type of a function pointer for our purposes... has to point to a simple machine
//address, not something like a closure!  There is no checking.
type FuncPtr uint64

type FamilyId uint16

const NoFamilyId FamilyId = 0xffff

// familyState is info about a given family contained in the FCB.
type familyState int

const (
	fsRunning familyState = 0
	fsZombie  familyState = 1
)

// familyFlags are just markers on the family for internal use.
type familyFlags uint64

const (
	ffKernelThread familyFlags = 1 << 0
)

// retFromForkPC is where a freshly copied family starts: the trampoline
// that drops the preempt count the copy left behind and calls X19(X20).
const retFromForkPC = 0xffff_fc00_0000_1000

//
// family is where we store all of the data structures that are
// per family.
//
type family struct {
	rss          RegisterSavedState
	state        familyState
	counter      int64
	priority     int64
	preemptCount int64
	stack        PageId
	heap         PageId
	started      bool
	flags        familyFlags
	Id           FamilyId
}

//
// RegisterSavedState is the saved registers from the last time the family
// was executing.
//
type RegisterSavedState struct {
	X19 uint64
	X20 uint64
	X21 uint64
	X22 uint64
	X23 uint64
	X24 uint64
	X25 uint64
	X26 uint64
	X27 uint64
	X28 uint64
	FP  uint64
	SP  uint64
	PC  uint64
}

// familyTable is the kernel's process table. It lives in a cell on the
// Kernel; nothing touches it except through that cell.
type familyTable struct {
	slot     []*family
	current  *family
	running  uint16 // families that could use processor time
	switches int
}

// find next empty slot
func (t *familyTable) findSlot() (FamilyId, bool) {
	for i := range t.slot {
		if t.slot[i] == nil {
			return FamilyId(i), true
		}
	}
	return NoFamilyId, false
}

func (t *familyTable) lookup(id FamilyId) *family {
	if int(id) >= len(t.slot) {
		return nil
	}
	return t.slot[id]
}

func (t *familyTable) currentId() FamilyId {
	if t.current == nil {
		return NoFamilyId
	}
	return t.current.Id
}

// initFamilies is called once at startup time. Family zero is the kernel
// thread that is already running; it gets the stack the boot code is on.
func (k *Kernel) initFamilies(stack PageId) {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	t := ft.Ptr()
	zero := &family{
		state:    fsRunning,
		priority: 2,
		stack:    stack,
		heap:     stack,
		started:  true,
		flags:    ffKernelThread,
		Id:       0,
	}
	zero.rss.SP = PageAddress(stack) + KPageSize - 16
	t.slot[0] = zero
	t.current = zero
	t.running = 1
}

// Current is the family on the cpu, or NoFamilyId before Init.
func (k *Kernel) Current() FamilyId {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	return ft.Ptr().currentId()
}

// Running is the number of families that are not zombies.
func (k *Kernel) Running() int {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	return int(ft.Ptr().running)
}

func (k *Kernel) ProhibitPreemption() {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	if cur := ft.Ptr().current; cur != nil {
		cur.preemptCount++
	}
}

func (k *Kernel) PermitPreemption() {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	if cur := ft.Ptr().current; cur != nil && cur.preemptCount > 0 {
		cur.preemptCount--
	}
}

// Copy forks the current family: the new one gets its own stack and heap,
// inherits the priority, and starts at fn(arg) the first time it is
// scheduled.
func (k *Kernel) Copy(fn FuncPtr, arg uint64) (FamilyId, error) {
	k.ProhibitPreemption()
	defer k.PermitPreemption()

	stack, stackLast, err := k.GetContiguousPages(k.params.StackPages)
	if err != nil {
		return NoFamilyId, err
	}
	heap, _, err := k.GetContiguousPages(k.params.HeapPages)
	if err != nil {
		k.mustFree(stack, k.params.StackPages, NoFamilyId)
		return NoFamilyId, err
	}

	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	t := ft.Ptr()
	if t.current == nil {
		k.handler.Panic("family copy before families were initialized")
	}
	index, ok := t.findSlot()
	if !ok {
		// the family table is held, so the frees must not look it up again
		k.mustFree(stack, k.params.StackPages, t.currentId())
		k.mustFree(heap, k.params.HeapPages, t.currentId())
		return NoFamilyId, makeError(ErrorFamilyNoMoreFamilies, t.currentId())
	}
	newFamily := &family{
		state:        fsRunning,
		priority:     t.current.priority,
		counter:      t.current.priority,
		preemptCount: 1,
		stack:        stack,
		heap:         heap,
		Id:           index,
	}
	newFamily.rss.X19 = uint64(fn)
	newFamily.rss.X20 = arg
	newFamily.rss.PC = retFromForkPC
	newFamily.rss.SP = PageAddress(stackLast) + KPageSize - 16
	t.slot[index] = newFamily
	t.running++
	trust.Debugf("family copied successfully (id %d, X19=%x, PC=%x) with prio %d",
		index, newFamily.rss.X19, newFamily.rss.PC, newFamily.priority)
	return index, nil
}

// SetPriority changes how many ticks a family gets per recharge. The
// scheduler needs every priority to be at least one.
func (k *Kernel) SetPriority(id FamilyId, priority int64) error {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	t := ft.Ptr()
	f := t.lookup(id)
	if f == nil {
		return makeError(ErrorFamilyNotFound, t.currentId())
	}
	if priority < 1 {
		priority = 1
	}
	f.priority = priority
	return nil
}

// Exit turns a family into a zombie. If it is the one on the cpu another
// one is scheduled.
func (k *Kernel) Exit(id FamilyId) error {
	wasCurrent, err := k.markZombie(id)
	if err != nil {
		return err
	}
	if wasCurrent {
		k.Schedule()
	}
	return nil
}

func (k *Kernel) markZombie(id FamilyId) (bool, error) {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	t := ft.Ptr()
	f := t.lookup(id)
	switch {
	case f == nil || f.state == fsZombie:
		return false, makeError(ErrorFamilyNotFound, t.currentId())
	case f.flags&ffKernelThread != 0:
		return false, makeError(ErrorFamilyIsKernel, t.currentId())
	}
	f.state = fsZombie
	f.counter = 0
	t.running--
	trust.Debugf("family %d exited", id)
	return f == t.current, nil
}

// Reclaim returns a zombie's pages and slot.
func (k *Kernel) Reclaim(id FamilyId) error {
	ft := k.families.ExclusiveAccess()
	t := ft.Ptr()
	f := t.lookup(id)
	var err error
	switch {
	case f == nil:
		err = makeError(ErrorFamilyNotFound, t.currentId())
	case f.state != fsZombie:
		err = makeError(ErrorFamilyStillRunning, t.currentId())
	case f == t.current:
		// still on its own stack; the next schedule away makes it reclaimable
		err = makeError(ErrorFamilyStillRunning, t.currentId())
	default:
		t.slot[id] = nil
	}
	ft.Release()
	if err != nil {
		return err
	}
	k.mustFree(f.stack, k.params.StackPages, id)
	k.mustFree(f.heap, k.params.HeapPages, id)
	return nil
}
