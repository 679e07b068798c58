// Package pic drives the chained pair of 8259A programmable interrupt
// controllers that route the legacy hardware IRQs to CPU vectors.
package pic

import (
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/sync"
)

const (
	pic1CmdPort  = 0x20
	pic1DataPort = 0x21
	pic2CmdPort  = 0xa0
	pic2DataPort = 0xa1

	// Writes to the POST diagnostic port are discarded; one write gives
	// the PICs time to settle between initialization words.
	waitPort = 0x80

	icw1Init     = 0x10
	icw1NeedICW4 = 0x01

	// icw3 wiring: the slave PIC hangs off the master's IRQ2 line.
	icw3SlaveOnIRQ2 = 0x04
	icw3SlaveID     = 0x02

	icw4Mode8086 = 0x01

	cmdEndOfInterrupt = 0x20

	irqsPerPIC = 8
)

var (
	// Both controllers are programmed through the same port pair so a
	// single lock covers the chain.
	lock sync.Spinlock

	offset1, offset2 uint8

	// The following are mocked by tests.
	portReadFn  = cpu.PortReadByte
	portWriteFn = cpu.PortWriteByte
)

// Init remaps the chained PICs so that the master delivers its eight IRQs at
// vector off1 and the slave at off2, keeping them clear of the CPU exception
// range. The interrupt masks in effect before the remap are preserved. Init
// must run before interrupts are enabled.
func Init(off1, off2 uint8) {
	lock.Acquire()
	defer lock.Release()

	offset1, offset2 = off1, off2

	mask1 := portReadFn(pic1DataPort)
	mask2 := portReadFn(pic2DataPort)

	portWriteFn(pic1CmdPort, icw1Init|icw1NeedICW4)
	wait()
	portWriteFn(pic2CmdPort, icw1Init|icw1NeedICW4)
	wait()

	portWriteFn(pic1DataPort, off1)
	wait()
	portWriteFn(pic2DataPort, off2)
	wait()

	portWriteFn(pic1DataPort, icw3SlaveOnIRQ2)
	wait()
	portWriteFn(pic2DataPort, icw3SlaveID)
	wait()

	portWriteFn(pic1DataPort, icw4Mode8086)
	wait()
	portWriteFn(pic2DataPort, icw4Mode8086)
	wait()

	portWriteFn(pic1DataPort, mask1)
	portWriteFn(pic2DataPort, mask2)
}

// NotifyEndOfInterrupt signals completion of the interrupt delivered at the
// supplied vector. Until the EOI arrives the controller keeps the line
// masked, so every hardware IRQ handler must route through here before its
// iretq. IRQs raised by the slave controller require an EOI on both chips.
func NotifyEndOfInterrupt(vector uint8) {
	lock.Acquire()
	defer lock.Release()

	switch {
	case vector >= offset2 && vector < offset2+irqsPerPIC:
		portWriteFn(pic2CmdPort, cmdEndOfInterrupt)
		portWriteFn(pic1CmdPort, cmdEndOfInterrupt)
	case vector >= offset1 && vector < offset1+irqsPerPIC:
		portWriteFn(pic1CmdPort, cmdEndOfInterrupt)
	}
}

func wait() {
	portWriteFn(waitPort, 0)
}
