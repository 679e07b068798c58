// Package hal wires the fixed hardware the kernel assumes is present.
package hal

import (
	"github.com/M1haS/rose/kernel/driver/tty"
	"github.com/M1haS/rose/kernel/driver/video/console"
	"github.com/M1haS/rose/kernel/kfmt"
)

// The legacy text-mode framebuffer and its dimensions.
const (
	egaFramebufferPhysAddr = 0xb8000
	egaColumns             = 80
	egaRows                = 25
)

var (
	egaConsole = &console.Ega{}

	// ActiveTerminal points to the currently active terminal.
	ActiveTerminal = &tty.Vt{}
)

// InitTerminal provides a basic terminal so the kernel can emit output
// before anything else is set up. All physical memory is mapped at
// physMemOffset by the bootloader; the text framebuffer is reached through
// that mapping. Attaching the terminal as the kfmt sink replays any output
// buffered before this point.
func InitTerminal(physMemOffset uintptr) {
	egaConsole.Init(egaColumns, egaRows, physMemOffset+egaFramebufferPhysAddr)
	ActiveTerminal.AttachTo(egaConsole)
	ActiveTerminal.Clear()
	kfmt.SetOutputSink(ActiveTerminal)
}
