// Package irq binds CPU exception vectors and hardware interrupts to their
// handlers and owns the timer entry path that drives preemption.
package irq

import (
	"unsafe"

	"github.com/M1haS/rose/kernel"
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/driver/pic"
	"github.com/M1haS/rose/kernel/gdt"
)

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// Breakpoint occurs when the CPU executes an int3 instruction. The
	// handler logs the exception frame and resumes execution.
	Breakpoint = InterruptNumber(3)

	// DoubleFault occurs when an exception is unhandled or when an
	// exception occurs while the CPU is trying to call an exception
	// handler.
	DoubleFault = InterruptNumber(8)

	// GPFException is raised when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException is raised when a page table entry is not present
	// or when a privilege and/or RW protection check fails.
	PageFaultException = InterruptNumber(14)
)

// The two 8259A PICs are remapped past the CPU exception range so their
// vectors do not collide with it.
const (
	PIC1Offset = 32
	PIC2Offset = PIC1Offset + 8
)

// Hardware interrupt vectors after the PICs have been remapped.
const (
	TimerInterrupt    = InterruptNumber(PIC1Offset)
	KeyboardInterrupt = InterruptNumber(PIC1Offset + 1)
)

const (
	idtEntryCount = 256

	// gatePresentInterrupt marks an IDT entry as a present ring-0
	// interrupt gate (interrupts are masked on entry).
	gatePresentInterrupt = uint16(0x8e00)
)

// idtEntry describes one 16-byte gate in the interrupt descriptor table.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	flags      uint16
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

// setHandler points the gate at the entry stub located at addr and marks it
// present.
func (ent *idtEntry) setHandler(addr uintptr, sel gdt.Selector) {
	ent.offsetLow = uint16(addr)
	ent.offsetMid = uint16(addr >> 16)
	ent.offsetHigh = uint32(addr >> 32)
	ent.selector = uint16(sel)
	ent.flags = gatePresentInterrupt
}

// setStackIndex makes the CPU switch to the interrupt stack table slot with
// the supplied 0-based index before pushing the exception frame. The IDT
// encodes the field 1-based with 0 meaning "no stack switch".
func (ent *idtEntry) setStackIndex(slot int) {
	ent.flags = ent.flags&^0x7 | uint16(slot+1)
}

// stackIndex returns the 0-based IST slot for the gate or -1 when the gate
// does not request a stack switch.
func (ent *idtEntry) stackIndex() int {
	return int(ent.flags&0x7) - 1
}

var (
	idt [idtEntryCount]idtEntry

	// The following are mocked by tests.
	installIDTFn = cpu.LoadIDT
	picInitFn    = pic.Init
)

// Init populates and loads the IDT and remaps the PICs. Exception vectors
// whose handlers must survive a corrupted thread stack are assigned to the
// reserved IST slot; the timer vector is assigned to the slot the scheduler
// retargets on every context switch. Interrupts are still disabled when Init
// returns; the caller enables them once the remaining subsystems are up.
func Init() {
	code, _ := gdt.KernelSegments()

	idt[Breakpoint].setHandler(kernel.FuncAddress(breakpointGateEntry), code)

	idt[DoubleFault].setHandler(kernel.FuncAddress(doubleFaultGateEntry), code)
	idt[DoubleFault].setStackIndex(gdt.DoubleFaultISTIndex)

	idt[GPFException].setHandler(kernel.FuncAddress(gpFaultGateEntry), code)
	idt[GPFException].setStackIndex(gdt.GPFaultISTIndex)

	idt[PageFaultException].setHandler(kernel.FuncAddress(pageFaultGateEntry), code)
	idt[PageFaultException].setStackIndex(gdt.PageFaultISTIndex)

	idt[TimerInterrupt].setHandler(kernel.FuncAddress(timerGateEntry), code)
	idt[TimerInterrupt].setStackIndex(gdt.TimerISTIndex)

	idt[KeyboardInterrupt].setHandler(kernel.FuncAddress(keyboardGateEntry), code)

	// The lidt operand is a 10-byte pseudo-descriptor (16-bit limit
	// followed by an unaligned 64-bit base) expressed as 16-bit words.
	base := uintptr(unsafe.Pointer(&idt[0]))
	desc := [5]uint16{
		uint16(unsafe.Sizeof(idt) - 1),
		uint16(base),
		uint16(base >> 16),
		uint16(base >> 32),
		uint16(base >> 48),
	}

	installIDTFn(uintptr(unsafe.Pointer(&desc[0])))

	picInitFn(PIC1Offset, PIC2Offset)
}
