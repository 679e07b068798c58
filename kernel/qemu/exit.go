// Package qemu integrates with the isa-debug-exit device that test builds
// attach to the emulator, letting a run terminate with a well-defined exit
// code instead of spinning forever.
package qemu

import "github.com/M1haS/rose/kernel/cpu"

// ExitCode is reported to the hosting emulator through the debug-exit port.
// The emulator's exit status is (code << 1) | 1, so the values below are
// picked to never collide with the emulator's own exit codes.
type ExitCode uint32

const (
	ExitSuccess ExitCode = 0x10
	ExitFailed  ExitCode = 0x11
)

// exitPort matches the iobase the test harness configures for the
// isa-debug-exit device.
const exitPort = 0xf4

// portWriteFn is mocked by tests.
var portWriteFn = cpu.PortWriteDword

// Exit reports code to the emulator which terminates immediately. When no
// debug-exit device is present the write is silently discarded and the
// caller should fall back to halting.
func Exit(code ExitCode) {
	portWriteFn(exitPort, uint32(code))
}
