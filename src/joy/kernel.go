// Package joy is the kernel proper. All of its mutable state sits in
// upcell cells on a Kernel, which is built once at boot and lives until the
// machine halts.
package joy

import (
	"fmt"

	"equanimity/src/lib/fatal"
	"equanimity/src/lib/semihosting"
	"equanimity/src/lib/trust"
	"equanimity/src/lib/upbeat"
	"equanimity/src/lib/upcell"
)

type Kernel struct {
	params   *upbeat.BootParams
	handler  fatal.Handler
	families *upcell.Cell[familyTable]
	pages    *upcell.Cell[pageMap]
}

// NewKernel builds the kernel's tables. Faults found later, including
// reentrant use of a table, are sent to h.
func NewKernel(p *upbeat.BootParams, h fatal.Handler) (*Kernel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bits, err := upbeat.NewBitSet(p.Pages)
	if err != nil {
		return nil, err
	}
	return &Kernel{
		params:   p,
		handler:  h,
		families: upcell.NewWithHandler(familyTable{slot: make([]*family, p.MaxFamilies)}, h),
		pages:    upcell.NewWithHandler(pageMap{inUse: bits}, h),
	}, nil
}

// Init claims the page the kernel image is in and the boot stack, and makes
// the running code family zero.
func (k *Kernel) Init() error {
	if err := k.setInUse(0); err != nil {
		return fmt.Errorf("claiming kernel image page: %w", err)
	}
	stack, _, err := k.getPages(1, NoFamilyId)
	if err != nil {
		return fmt.Errorf("claiming boot stack: %w", err)
	}
	k.initFamilies(stack)
	return nil
}

type Stats struct {
	Current    FamilyId
	Families   int // slots in use, zombies included
	Running    int
	Switches   int
	PagesInUse int
}

func (k *Kernel) Stats() Stats {
	var s Stats
	k.families.With(func(t *familyTable) {
		s.Current = t.currentId()
		for _, f := range t.slot {
			if f != nil {
				s.Families++
			}
		}
		s.Running = int(t.running)
		s.Switches = t.switches
	})
	s.PagesInUse = k.PagesInUse()
	return s
}

// KernelMain is the boot sequence after the console is up: set up the
// tables, start a couple of families, let the timer run for p.Ticks ticks.
func KernelMain(p *upbeat.BootParams, h fatal.Handler) (*Kernel, error) {
	k, err := NewKernel(p, h)
	if err != nil {
		return nil, err
	}
	start := semihosting.Clock()
	trust.Infof("joy kernel on %s", upbeat.BoardRevisionDecode(p.BoardRevision))
	trust.Infof("timer reload %d, %d ticks", p.Quanta, p.Ticks)
	if err := k.Init(); err != nil {
		return nil, err
	}
	for i, fn := range []FuncPtr{0x8_0000, 0x9_0000} {
		id, err := k.Copy(fn, uint64(i))
		if err != nil {
			return nil, fmt.Errorf("starting family %d: %w", i+1, err)
		}
		trust.Infof("started family %d", id)
	}
	for i := 0; i < p.Ticks; i++ {
		k.Tick()
	}
	s := k.Stats()
	trust.Statsf("sched", "families=%d running=%d switches=%d current=%d", s.Families, s.Running, s.Switches, s.Current)
	trust.Statsf("mem", "pages in use=%d of %d", s.PagesInUse, p.Pages)
	trust.Statsf("boot", "took %d centiseconds", semihosting.Clock()-start)
	return k, nil
}
