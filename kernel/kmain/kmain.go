// Package kmain contains the kernel entrypoint and the fixed boot
// initialization order.
package kmain

import (
	"unsafe"

	"github.com/M1haS/rose/kernel"
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/driver/kbd"
	"github.com/M1haS/rose/kernel/gdt"
	"github.com/M1haS/rose/kernel/hal"
	"github.com/M1haS/rose/kernel/irq"
	"github.com/M1haS/rose/kernel/kfmt"
	"github.com/M1haS/rose/kernel/mem"
	"github.com/M1haS/rose/kernel/proc"
)

// maxMemoryRegions bounds the memory map the bootloader can hand off.
const maxMemoryRegions = 32

// MemoryRegionKind tags an entry of the bootloader-provided memory map.
type MemoryRegionKind uint32

const (
	// MemoryUsable marks RAM the frame allocator may hand out.
	MemoryUsable MemoryRegionKind = iota

	// MemoryReserved marks regions the kernel must never touch.
	MemoryReserved
)

// MemoryRegion describes one contiguous physical memory region.
type MemoryRegion struct {
	Start uintptr
	Size  uint64
	Kind  MemoryRegionKind
}

// BootInfo is the handoff structure the bootloader populates before jumping
// to the kernel. All physical memory is mapped starting at
// PhysicalMemoryOffset; the memory map is consumed by the frame allocator.
type BootInfo struct {
	PhysicalMemoryOffset uintptr

	RegionCount uint32
	MemoryMap   [maxMemoryRegions]MemoryRegion
}

// UsableMemory returns the total amount of RAM the memory map reports as
// usable.
func (info *BootInfo) UsableMemory() mem.Size {
	var total mem.Size
	for i := uint32(0); i < info.RegionCount && i < maxMemoryRegions; i++ {
		if info.MemoryMap[i].Kind == MemoryUsable {
			total += mem.Size(info.MemoryMap[i].Size)
		}
	}

	return total
}

var errMissingBootInfo = &kernel.Error{Module: "kmain", Message: "bootloader did not provide a boot info structure"}

// Kmain is the kernel entrypoint invoked by the rt0 code with the address of
// the BootInfo structure prepared by the bootloader. It brings up the
// descriptor tables and interrupt dispatch in their required order, spawns
// the first kernel thread and then retires the bootstrap stack: the thread
// starts running at the next timer tick and the bootstrap context is never
// saved.
//
// Kmain does not return.
//
//go:noinline
func Kmain(bootInfoPtr uintptr) {
	if bootInfoPtr == 0 {
		kernel.Panic(errMissingBootInfo)
	}
	info := (*BootInfo)(unsafe.Pointer(bootInfoPtr))

	hal.InitTerminal(info.PhysicalMemoryOffset)
	kfmt.Printf("rose: booting, %d Kb usable memory\n", uint64(info.UsableMemory()/mem.Kb))

	Init()

	proc.NewKthread(mainKthread)

	for {
		cpu.Halt()
	}
}

// Init installs the descriptor tables and enables interrupt handling. The
// order is fixed: the GDT (with the TSS and its interrupt stacks) must be in
// place before the IDT references its IST slots, the PICs must be remapped
// before their vectors can fire, and only then are interrupts enabled.
func Init() {
	gdt.Init()
	irq.Init()

	irq.HandleTimer(proc.ScheduleNext)
	kbd.Init()

	cpu.EnableInterrupts()
}

// mainKthread is the first kernel thread. Anything that needs a real thread
// context (spawning further threads included) starts here.
func mainKthread() {
	kfmt.Printf("It did not crash!\n")

	for {
		cpu.Halt()
	}
}
