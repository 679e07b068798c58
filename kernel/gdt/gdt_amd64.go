// Package gdt maintains the global descriptor table and the task state
// segment for the boot CPU. The kernel publishes exactly three descriptors
// (kernel code, kernel data and the TSS); their selectors never change after
// Init returns.
package gdt

import (
	"unsafe"

	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/mem"
	"github.com/M1haS/rose/kernel/sync"
)

// Selector describes a segment selector: an index into the GDT together with
// the requested privilege level in its low two bits.
type Selector uint16

// The selectors published by Init. The TSS descriptor occupies two GDT slots
// so no selector follows it.
const (
	SelectorKernelCode Selector = 0x08
	SelectorKernelData Selector = 0x10
	selectorTSS        Selector = 0x18
)

// Interrupt stack table slot assignments. The IDT's IST field is 1-based;
// these constants are the 0-based TSS slot indices which the IDT setter
// converts when it encodes a gate.
const (
	// DoubleFaultISTIndex selects the statically reserved stack that
	// double faults are handled on. The same slot also backs the other
	// fatal exceptions so they survive a corrupted thread stack.
	DoubleFaultISTIndex = 0
	PageFaultISTIndex   = 0
	GPFaultISTIndex     = 0

	// TimerISTIndex selects the stack the timer interrupt saves thread
	// context on. The scheduler points it at the kernel stack of the
	// thread it selects on every context switch.
	TimerISTIndex = 1
)

// istSlotCount is the number of interrupt stack table slots in the TSS.
const istSlotCount = 7

const doubleFaultStackSize = 20 * mem.Kb

// Segment descriptor contents for a 64-bit ring-0 flat code and data segment
// (present, accessed, long mode; base and limit are ignored by the CPU in
// long mode but kept canonical).
const (
	kernelCodeDescriptor uint64 = 0x00af9b000000ffff
	kernelDataDescriptor uint64 = 0x00cf93000000ffff

	// tssDescriptorType marks a system descriptor as an available 64-bit TSS.
	tssDescriptorType uint64 = 0x89
)

var (
	// gdt is the descriptor table loaded by Init. Slot 0 is the mandatory
	// null descriptor; slots 3 and 4 hold the 16-byte TSS descriptor.
	gdt [5]uint64

	// tss is mutated by the scheduler (via SetIST) on every context
	// switch while the CPU consults it on the next interrupt; tssLock
	// makes the mutation exclusive. On the single CPU the kernel runs on,
	// every SetIST call site executes with interrupts masked so the lock
	// is uncontended.
	tssLock sync.Spinlock
	tss     taskStateSegment

	// doubleFaultStack is the statically reserved region backing IST slot
	// 0. It must never be reused for anything else.
	doubleFaultStack [doubleFaultStackSize]byte

	// The following are mocked by tests.
	loadGDTFn        = cpu.LoadGDT
	loadTSSFn        = cpu.LoadTaskRegister
	reloadSegmentsFn = cpu.ReloadSegments
)

// taskStateSegment describes the 64-bit TSS. Its 64-bit fields sit at 4-byte
// offsets which Go struct alignment cannot express, so the segment is
// modelled as an array of 32-bit words instead; setIST splits addresses
// accordingly. The interrupt stack table starts at byte offset 36 (word 9)
// and the I/O map base lives in the upper half of the last word.
type taskStateSegment struct {
	words [26]uint32
}

func (t *taskStateSegment) setIST(index int, stackEnd uintptr) {
	w := 9 + 2*index
	t.words[w] = uint32(stackEnd)
	t.words[w+1] = uint32(stackEnd >> 32)
}

func (t *taskStateSegment) ist(index int) uintptr {
	w := 9 + 2*index
	return uintptr(t.words[w]) | uintptr(t.words[w+1])<<32
}

// setIOMapBase points the I/O permission bitmap past the end of the segment,
// denying port access to any future non-ring-0 code.
func (t *taskStateSegment) setIOMapBase() {
	t.words[25] = uint32(unsafe.Sizeof(*t)) << 16
}

// Init populates the GDT and TSS, loads them on the running CPU and reloads
// the segment registers with the new selectors. It must be called before any
// interrupt that specifies an IST index can fire. Before the first thread is
// spawned, the timer IST slot aliases the double-fault stack so that an early
// tick still lands on a known-good region.
func Init() {
	stackEnd := uintptr(unsafe.Pointer(&doubleFaultStack[0])) + uintptr(len(doubleFaultStack))

	tssLock.Acquire()
	tss.setIST(DoubleFaultISTIndex, stackEnd)
	tss.setIST(TimerISTIndex, stackEnd)
	tss.setIOMapBase()

	tssBase := uintptr(unsafe.Pointer(&tss))
	tssLimit := uint64(unsafe.Sizeof(tss) - 1)

	gdt[1] = kernelCodeDescriptor
	gdt[2] = kernelDataDescriptor
	gdt[3] = tssLimit&0xffff |
		(uint64(tssBase)&0xffffff)<<16 |
		tssDescriptorType<<40 |
		(tssLimit>>16&0xf)<<48 |
		(uint64(tssBase)>>24&0xff)<<56
	gdt[4] = uint64(tssBase) >> 32
	tssLock.Release()

	// The lgdt operand is a 10-byte pseudo-descriptor (16-bit limit
	// followed by an unaligned 64-bit base) expressed as 16-bit words.
	base := uintptr(unsafe.Pointer(&gdt[0]))
	desc := [5]uint16{
		uint16(unsafe.Sizeof(gdt) - 1),
		uint16(base),
		uint16(base >> 16),
		uint16(base >> 32),
		uint16(base >> 48),
	}

	loadGDTFn(uintptr(unsafe.Pointer(&desc[0])))
	reloadSegmentsFn(uint16(SelectorKernelCode), uint16(SelectorKernelData))
	loadTSSFn(uint16(selectorTSS))
}

// SetIST updates interrupt stack table slot index to point at stackEnd (the
// high end of the stack; x86 stacks grow down). The scheduler calls this for
// the timer slot on every context switch so the next tick saves state onto
// the stack of the thread it just selected.
func SetIST(index int, stackEnd uintptr) {
	tssLock.Acquire()
	tss.setIST(index, stackEnd)
	tssLock.Release()
}

// KernelSegments returns the kernel code and data selectors. The scheduler
// stamps these into the cs/ss slots of every synthesized thread context.
func KernelSegments() (code, data Selector) {
	return SelectorKernelCode, SelectorKernelData
}
