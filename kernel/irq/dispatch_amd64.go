package irq

import (
	"unsafe"

	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/driver/pic"
	"github.com/M1haS/rose/kernel/kfmt"
)

// TimerHandler selects the thread to resume after a timer tick. It receives
// the address of the Context record the entry stub saved on the current
// kernel stack and returns the address of the Context to restore, or 0 to
// keep running on the current stack.
type TimerHandler func(ctxAddr uintptr) uintptr

// IRQHandler services one hardware interrupt. End-of-interrupt signalling is
// performed by the dispatcher after the handler returns.
type IRQHandler func()

var (
	timerHandlerFn TimerHandler

	irqHandlers [idtEntryCount]IRQHandler

	// The following are mocked by tests.
	eoiFn         = pic.NotifyEndOfInterrupt
	readCR2Fn     = cpu.ReadCR2
	haltForeverFn = cpu.HaltForever
)

// HandleTimer registers the scheduler entry invoked on every timer tick.
func HandleTimer(handler TimerHandler) {
	timerHandlerFn = handler
}

// HandleIRQ registers the handler for the hardware interrupt with the given
// vector number. Only the keyboard vector has an entry stub that consults the
// registered handlers; a handler registered for any other vector is never
// invoked.
func HandleIRQ(vector InterruptNumber, handler IRQHandler) {
	irqHandlers[vector] = handler
}

// dispatchTimer is invoked by the timer entry stub with interrupts masked.
// The returned stack pointer (if nonzero) carries the Context the stub
// restores before iretq. The end-of-interrupt must be sent before the stub's
// sti/iretq pair, never after: interrupts stay masked until iretq restores
// RFlags, so the early EOI cannot cause reentry.
func dispatchTimer(ctxAddr uintptr) uintptr {
	var next uintptr
	if timerHandlerFn != nil {
		next = timerHandlerFn(ctxAddr)
	}

	eoiFn(uint8(TimerInterrupt))
	return next
}

// dispatchKeyboard is invoked by the keyboard entry stub. The PIC keeps the
// line masked until the EOI is sent so it must go out before returning.
func dispatchKeyboard() {
	if handler := irqHandlers[KeyboardInterrupt]; handler != nil {
		handler()
	}

	eoiFn(uint8(KeyboardInterrupt))
}

// dispatchBreakpoint logs the saved frame and returns, resuming execution
// directly after the int3 instruction.
func dispatchBreakpoint(ctxAddr uintptr) {
	ctx := (*Context)(unsafe.Pointer(ctxAddr))

	kfmt.Printf("\nEXCEPTION: BREAKPOINT\n")
	kfmt.Printf("RIP = %16x CS  = %16x\n", ctx.RIP, ctx.CS)
	kfmt.Printf("RSP = %16x SS  = %16x\n", ctx.RSP, ctx.SS)
	kfmt.Printf("RFL = %16x\n", ctx.RFlags)
}

// dispatchFault handles the fatal exceptions (#DF, #GP, #PF). It logs the
// saved state and halts the CPU forever; none of these faults is recoverable
// in this kernel.
func dispatchFault(vector uint64, ctxAddr uintptr) {
	ctx := (*ContextWithCode)(unsafe.Pointer(ctxAddr))

	switch InterruptNumber(vector) {
	case DoubleFault:
		kfmt.Printf("\nEXCEPTION: DOUBLE FAULT\n")
	case GPFException:
		kfmt.Printf("\nEXCEPTION: GENERAL PROTECTION FAULT\n")
	case PageFaultException:
		kfmt.Printf("\nEXCEPTION: PAGE FAULT\n")
		kfmt.Printf("Accessed address: %16x\n", readCR2Fn())
	default:
		kfmt.Printf("\nEXCEPTION: %d\n", vector)
	}

	ctx.DumpTo(kfmt.GetOutputSink())
	haltForeverFn()
}

// The entry stubs installed in the IDT; see entry_amd64.s.
func breakpointGateEntry()
func doubleFaultGateEntry()
func gpFaultGateEntry()
func pageFaultGateEntry()
func timerGateEntry()
func keyboardGateEntry()
