// Package proc implements kernel threads and the round-robin scheduler that
// the timer interrupt drives.
package proc

import (
	"unsafe"

	"github.com/M1haS/rose/kernel"
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/gdt"
	"github.com/M1haS/rose/kernel/irq"
	"github.com/M1haS/rose/kernel/mem"
)

const (
	kernelStackSize = 8 * mem.Kb
	userStackSize   = 20 * mem.Kb
)

// Thread describes a kernel thread. The scheduler owns every Thread
// exclusively: at any point it is either the current thread or sits in the
// run queue, never both. Threads run forever; there is no termination or
// reclamation protocol.
type Thread struct {
	// The stacks are allocated once and never resized: the saved context
	// records live inside the kernel stack so its backing memory must
	// never move.
	kernelStack []byte
	userStack   []byte

	// kernelStackEnd is the high end of the kernel stack. It is what the
	// timer IST slot is pointed at while the thread runs.
	kernelStackEnd uintptr

	// userStackEnd seeds the thread's initial stack pointer. Despite the
	// name the thread runs in ring 0; this is simply its working stack.
	userStackEnd uintptr

	// context is the address of the live Context record on the kernel
	// stack; it is refreshed on every preemption.
	context uintptr
}

// NewKthread allocates a thread that will start executing entry and places
// it at the tail of the run queue. No wakeup is needed: the next timer tick
// picks it up. The initial context is synthesized at the top of the kernel
// stack in exactly the shape a timer interrupt would have left behind, so
// the restore path cannot tell a fresh thread from a preempted one. The
// queue takes sole ownership of the thread; no handle is returned.
func NewKthread(entry func()) {
	t := &Thread{
		kernelStack: make([]byte, kernelStackSize),
		userStack:   make([]byte, userStackSize),
	}
	t.kernelStackEnd = uintptr(unsafe.Pointer(&t.kernelStack[0])) + uintptr(len(t.kernelStack))
	t.userStackEnd = uintptr(unsafe.Pointer(&t.userStack[0])) + uintptr(len(t.userStack))
	t.context = t.kernelStackEnd - irq.ContextSize

	code, data := gdt.KernelSegments()

	ctx := (*irq.Context)(unsafe.Pointer(t.context))
	*ctx = irq.Context{
		RIP:    uint64(kernel.FuncAddress(entry)),
		RSP:    uint64(t.userStackEnd),
		RFlags: cpu.FlagIF,
		CS:     uint64(code),
		SS:     uint64(data),
	}

	flags := flagsFn()
	disableInterruptsFn()

	queueLock.Acquire()
	runQueue.push(t)
	queueLock.Release()

	if flags&cpu.FlagIF != 0 {
		enableInterruptsFn()
	}
}
