package main

import "github.com/M1haS/rose/kernel/kmain"

// bootInfoPtr is populated by the rt0 initialization code with the address
// of the handoff structure prepared by the bootloader before main is
// invoked.
var bootInfoPtr uintptr

// main works as a trampoline for calling the actual kernel entrypoint
// (kmain.Kmain). It is intentionally defined to prevent the Go compiler from
// optimizing away the kernel code as it is not aware of the presence of the
// rt0 code.
//
// main is not expected to return. If it does, the rt0 code will halt the
// CPU.
func main() {
	kmain.Kmain(bootInfoPtr)
}
