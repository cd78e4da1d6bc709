package joy

import (
	"equanimity/src/lib/trust"
)

// Tick is the timer interrupt: charge the current family a tick and
// reschedule once its counter runs out, unless it has preemption off.
func (k *Kernel) Tick() {
	if !k.chargeTick() {
		return
	}
	k.scheduleInternal()
}

func (k *Kernel) chargeTick() bool {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	currentFamily := ft.Ptr().current
	if currentFamily == nil {
		k.handler.Panic("got a timer tick with no current family!")
	}
	if currentFamily.counter > 0 {
		currentFamily.counter--
	}
	trust.Debugf("timerTick: current family: %d, counter %d", currentFamily.Id, currentFamily.counter)
	if currentFamily.counter > 0 || currentFamily.preemptCount > 0 {
		return false
	}
	currentFamily.counter = 0
	return true
}

// Schedule gives up the rest of the current family's time.
func (k *Kernel) Schedule() {
	ft := k.families.ExclusiveAccess()
	if cur := ft.Ptr().current; cur != nil {
		cur.counter = 0
	}
	ft.Release()
	k.scheduleInternal()
}

// scheduleInternal picks the running family with the most ticks left. When
// everyone is out, each family is recharged with half of what it had plus
// its priority, so families that slept accumulate some credit.
func (k *Kernel) scheduleInternal() {
	ft := k.families.ExclusiveAccess()
	defer ft.Release()
	t := ft.Ptr()
	trust.Debugf("schedule internal reached!")
	if t.running == 0 {
		k.handler.Panic("schedule: no runnable family")
	}
	var p *family
	next := 0
	for {
		c := int64(-1)
		for i := range t.slot {
			p = t.slot[i]
			if p != nil && p.state == fsRunning && p.counter > c {
				c = p.counter
				next = i
			}
		}
		if c > 0 {
			break
		}
		for i := range t.slot {
			p = t.slot[i]
			if p != nil {
				p.counter = (p.counter >> 1) + p.priority
				trust.Debugf("updated counter on %d: %d (from prio %d)", i, p.counter, p.priority)
			}
		}
	}
	t.switchTo(t.slot[next])
}

func (t *familyTable) switchTo(next *family) {
	if t.current == next {
		return //safety
	}
	prev := t.current
	t.current = next
	t.switches++
	if !next.started {
		// ret_from_fork: drop the count Copy left on the new family
		next.started = true
		if next.preemptCount > 0 {
			next.preemptCount--
		}
	}
	trust.Debugf("----- cpuSwitchFrom family=%d cpuSwitchTo family=%d (SP=%x, PC=%x)",
		prev.Id, next.Id, next.rss.SP, next.rss.PC)
}
