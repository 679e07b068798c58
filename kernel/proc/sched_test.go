package proc

import (
	"testing"
	"unsafe"

	"github.com/M1haS/rose/kernel"
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/gdt"
	"github.com/M1haS/rose/kernel/irq"
)

func resetScheduler() {
	runQueue.items = nil
	currentThread = nil
}

func mockInterruptFns() func() {
	origFlags, origDisable, origEnable, origSetIST := flagsFn, disableInterruptsFn, enableInterruptsFn, setISTFn

	flagsFn = func() uint64 { return 0 }
	disableInterruptsFn = func() {}
	enableInterruptsFn = func() {}
	setISTFn = func(index int, stackEnd uintptr) {}

	return func() {
		flagsFn, disableInterruptsFn, enableInterruptsFn, setISTFn = origFlags, origDisable, origEnable, origSetIST
	}
}

func threadEntry() {}

func TestNewKthreadContext(t *testing.T) {
	defer mockInterruptFns()()
	defer resetScheduler()

	NewKthread(threadEntry)

	if got := len(runQueue.items); got != 1 {
		t.Fatalf("expected the new thread to be enqueued; queue length %d", got)
	}

	thread := runQueue.items[0]

	if exp := thread.kernelStackEnd - irq.ContextSize; thread.context != exp {
		t.Fatalf("expected the context to live at %x (kernel stack end - %d); got %x", exp, irq.ContextSize, thread.context)
	}

	base := uintptr(unsafe.Pointer(&thread.kernelStack[0]))
	if thread.context < base || thread.context >= thread.kernelStackEnd-irq.ContextSize+1 {
		t.Fatal("expected the context to lie within the kernel stack")
	}

	ctx := (*irq.Context)(unsafe.Pointer(thread.context))

	if exp := uint64(kernel.FuncAddress(threadEntry)); ctx.RIP != exp {
		t.Errorf("expected rip to point at the entry function (%x); got %x", exp, ctx.RIP)
	}

	if exp := uint64(thread.userStackEnd); ctx.RSP != exp {
		t.Errorf("expected rsp to point at the user stack end (%x); got %x", exp, ctx.RSP)
	}

	if ctx.RFlags&cpu.FlagIF == 0 {
		t.Error("expected the interrupt-enable bit to be set in the synthesized rflags")
	}

	code, data := gdt.KernelSegments()
	if ctx.CS != uint64(code) || ctx.SS != uint64(data) {
		t.Errorf("expected cs/ss to be the kernel selectors (%x, %x); got (%x, %x)", code, data, ctx.CS, ctx.SS)
	}

	if ctx.RAX != 0 || ctx.RBX != 0 || ctx.R15 != 0 {
		t.Error("expected the general registers of a fresh context to be zero")
	}
}

func TestNewKthreadRestoresInterruptFlag(t *testing.T) {
	defer mockInterruptFns()()
	defer resetScheduler()

	var disabled, enabled int
	disableInterruptsFn = func() { disabled++ }
	enableInterruptsFn = func() { enabled++ }

	// Interrupts off at the call site: they must stay off.
	flagsFn = func() uint64 { return 0 }
	NewKthread(threadEntry)
	if disabled != 1 || enabled != 0 {
		t.Fatalf("expected interrupts to remain masked; disable=%d enable=%d", disabled, enabled)
	}

	// Interrupts on at the call site: they must be restored.
	flagsFn = func() uint64 { return cpu.FlagIF }
	NewKthread(threadEntry)
	if disabled != 2 || enabled != 1 {
		t.Fatalf("expected interrupts to be restored; disable=%d enable=%d", disabled, enabled)
	}
}

func TestScheduleNextDegenerateStates(t *testing.T) {
	defer mockInterruptFns()()
	defer resetScheduler()

	// No threads at all: keep the boot stack.
	if got := ScheduleNext(0x1000); got != 0 {
		t.Fatalf("expected 0 with no threads; got %x", got)
	}

	// A single runnable thread keeps the CPU with no queue round-trip.
	NewKthread(threadEntry)
	first := ScheduleNext(0x1000)
	if first == 0 {
		t.Fatal("expected the first tick to select the spawned thread")
	}

	if got := ScheduleNext(0x2000); got != 0 {
		t.Fatalf("expected 0 when the sole thread keeps running; got %x", got)
	}

	if currentThread.context != 0x2000 {
		t.Fatalf("expected the saved context address to be recorded; got %x", currentThread.context)
	}

	if !runQueue.empty() {
		t.Fatal("expected the run queue to stay empty")
	}
}

func TestScheduleNextRoundRobin(t *testing.T) {
	defer mockInterruptFns()()
	defer resetScheduler()

	var istTargets []uintptr
	setISTFn = func(index int, stackEnd uintptr) {
		if index != gdt.TimerISTIndex {
			t.Errorf("expected the scheduler to only retarget IST slot %d; got %d", gdt.TimerISTIndex, index)
		}
		istTargets = append(istTargets, stackEnd)
	}

	const numThreads = 3
	for i := 0; i < numThreads; i++ {
		NewKthread(threadEntry)
	}

	spawned := make([]*Thread, numThreads)
	copy(spawned, runQueue.items)

	// Over k*N ticks each thread must be selected exactly k times, in
	// FIFO order.
	const k = 4
	selections := make(map[*Thread]int, numThreads)
	for tick := 0; tick < k*numThreads; tick++ {
		next := ScheduleNext(0xdead0000 + uintptr(tick))
		if next == 0 {
			t.Fatalf("[tick %d] expected a context switch", tick)
		}

		exp := spawned[tick%numThreads]
		if currentThread != exp {
			t.Fatalf("[tick %d] expected thread %d to be selected", tick, tick%numThreads)
		}
		selections[currentThread]++

		// The timer IST slot must track the selected thread's stack.
		if got := istTargets[len(istTargets)-1]; got != currentThread.kernelStackEnd {
			t.Fatalf("[tick %d] expected IST slot to point at %x; got %x", tick, currentThread.kernelStackEnd, got)
		}

		// Single residency: the current thread never also sits in the queue.
		for _, queued := range runQueue.items {
			if queued == currentThread {
				t.Fatalf("[tick %d] current thread is also enqueued", tick)
			}
		}
		if got := len(runQueue.items); got != numThreads-1 {
			t.Fatalf("[tick %d] expected %d queued threads; got %d", tick, numThreads-1, got)
		}
	}

	for i, thread := range spawned {
		if selections[thread] != k {
			t.Errorf("expected thread %d to be selected %d times; got %d", i, k, selections[thread])
		}
	}
}

func TestScheduleNextSavesPreemptedContext(t *testing.T) {
	defer mockInterruptFns()()
	defer resetScheduler()

	NewKthread(threadEntry)
	NewKthread(threadEntry)

	a := runQueue.items[0]
	aInitialCtx := a.context

	if got := ScheduleNext(0x1000); got != aInitialCtx {
		t.Fatalf("expected the first tick to return A's synthesized context %x; got %x", aInitialCtx, got)
	}

	// Preempting A must record the freshly saved context address before
	// it re-enters the queue.
	ScheduleNext(0xabcd)
	if a.context != 0xabcd {
		t.Fatalf("expected A's context to be updated to %x; got %x", uintptr(0xabcd), a.context)
	}

	if runQueue.items[0] != a {
		t.Fatal("expected A at the head of the queue after preemption")
	}

	// The next tick resumes A exactly where it was saved.
	if got := ScheduleNext(0x2000); got != 0xabcd {
		t.Fatalf("expected the next tick to return A's saved context; got %x", got)
	}
}
