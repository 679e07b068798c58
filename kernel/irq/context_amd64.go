package irq

import (
	"io"

	"github.com/M1haS/rose/kernel/kfmt"
)

// ContextSize is the number of bytes the timer entry stub pushes onto a
// thread's kernel stack, counting the exception frame pushed by the CPU.
const ContextSize = 20 * 8

// Context is a snapshot of the full machine state of a preempted thread,
// laid out at the top of its kernel stack. The field order matches, from low
// to high address, the pushes performed by the timer entry stub followed by
// the exception frame the CPU pushed on interrupt entry. The layout is an
// ABI contract between the entry stub and the scheduler: the stub's push
// sequence and this struct must change together.
type Context struct {
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	RBP    uint64
	RSI    uint64
	RDI    uint64
	RDX    uint64
	RCX    uint64
	RBX    uint64
	RAX    uint64
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (c *Context) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", c.RAX, c.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", c.RCX, c.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", c.RSI, c.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", c.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", c.R8, c.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", c.R10, c.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", c.R12, c.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", c.R14, c.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", c.RIP, c.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", c.RSP, c.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", c.RFlags)
}

// ContextWithCode is the state saved by the entry stubs for exceptions where
// the CPU pushes an error code before the return frame. The code slot sits
// between the general registers and the frame, exactly where the CPU left it.
type ContextWithCode struct {
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	RBP    uint64
	RSI    uint64
	RDI    uint64
	RDX    uint64
	RCX    uint64
	RBX    uint64
	RAX    uint64
	Code   uint64
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents and the error code to w.
func (c *ContextWithCode) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", c.RAX, c.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", c.RCX, c.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", c.RSI, c.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", c.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", c.R8, c.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", c.R10, c.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", c.R12, c.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", c.R14, c.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "ERR = %16x\n", c.Code)
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", c.RIP, c.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", c.RSP, c.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", c.RFlags)
}
