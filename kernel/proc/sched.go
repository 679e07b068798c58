package proc

import (
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/gdt"
	"github.com/M1haS/rose/kernel/sync"
)

var (
	// queueLock guards both the run queue and the current-thread slot.
	// Every access happens on the single CPU with interrupts masked
	// (NewKthread masks them; ScheduleNext runs inside the timer gate),
	// so the lock is uncontended and documents exclusivity.
	queueLock sync.Spinlock

	// runQueue holds the ready threads in FIFO order, excluding the one
	// currently executing.
	runQueue threadQueue

	// currentThread is the thread whose context the last tick restored,
	// or nil until the first thread is selected.
	currentThread *Thread

	// The following are mocked by tests.
	setISTFn            = gdt.SetIST
	flagsFn             = cpu.Flags
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// ScheduleNext is invoked by the timer dispatch path on every tick with the
// address of the context the entry stub saved on the current kernel stack.
// It returns the address of the context to restore, or 0 when the trampoline
// should keep the current stack.
//
// The take-then-push discipline keeps every thread in exactly one of the run
// queue and the current-thread slot: the preempted thread is pushed to the
// tail only after it has been taken out of the slot, and the head of the
// queue moves into the slot as it is popped.
func ScheduleNext(ctxAddr uintptr) uintptr {
	queueLock.Acquire()
	defer queueLock.Release()

	if currentThread != nil {
		currentThread.context = ctxAddr

		// Sole runnable thread: skip the no-op switch and keep its stack.
		if runQueue.empty() {
			return 0
		}

		runQueue.push(currentThread)
		currentThread = nil
	}

	if currentThread = runQueue.pop(); currentThread == nil {
		return 0
	}

	// Retarget the timer IST slot so the next tick saves state onto the
	// kernel stack of the thread being resumed.
	setISTFn(gdt.TimerISTIndex, currentThread.kernelStackEnd)

	return currentThread.context
}

// threadQueue is a FIFO queue of threads.
type threadQueue struct {
	items []*Thread
}

func (q *threadQueue) empty() bool {
	return len(q.items) == 0
}

func (q *threadQueue) push(t *Thread) {
	q.items = append(q.items, t)
}

func (q *threadQueue) pop() *Thread {
	if len(q.items) == 0 {
		return nil
	}

	t := q.items[0]
	n := len(q.items) - 1
	copy(q.items, q.items[1:])
	q.items[n] = nil
	q.items = q.items[:n]

	return t
}
