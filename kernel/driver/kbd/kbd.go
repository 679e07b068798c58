// Package kbd decodes the PS/2 keyboard and echoes decoded characters to
// the active console.
package kbd

import (
	"github.com/M1haS/rose/kernel/cpu"
	"github.com/M1haS/rose/kernel/irq"
	"github.com/M1haS/rose/kernel/kfmt"
	"github.com/M1haS/rose/kernel/sync"
)

const (
	dataPort = 0x60

	// Scancode set 1 markers.
	breakBit       = 0x80
	extendedPrefix = 0xe0

	scanLeftShift  = 0x2a
	scanRightShift = 0x36
)

// US-layout translation tables for scancode set 1. Zero entries have no
// printable representation.
var normalMap = [88]byte{
	0, 0x1b, '1', '2', '3', '4', '5', '6', // 0x00
	'7', '8', '9', '0', '-', '=', '\b', '\t',
	'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', // 0x10
	'o', 'p', '[', ']', '\n', 0, 'a', 's',
	'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', // 0x20
	'\'', '`', 0, '\\', 'z', 'x', 'c', 'v',
	'b', 'n', 'm', ',', '.', '/', 0, '*', // 0x30
	0, ' ', 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, '7', // 0x40
	'8', '9', '-', '4', '5', '6', '+', '1',
	'2', '3', '0', '.', 0, 0, 0, 0, // 0x50
}

var shiftMap = [88]byte{
	0, 0x1b, '!', '@', '#', '$', '%', '^', // 0x00
	'&', '*', '(', ')', '_', '+', '\b', '\t',
	'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I', // 0x10
	'O', 'P', '{', '}', '\n', 0, 'A', 'S',
	'D', 'F', 'G', 'H', 'J', 'K', 'L', ':', // 0x20
	'"', '~', 0, '|', 'Z', 'X', 'C', 'V',
	'B', 'N', 'M', '<', '>', '?', 0, '*', // 0x30
	0, ' ', 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, '7', // 0x40
	'8', '9', '-', '4', '5', '6', '+', '1',
	'2', '3', '0', '.', 0, 0, 0, 0, // 0x50
}

// decoder tracks the modifier state across scancodes.
type decoder struct {
	shift bool

	// extended is set while the decoder discards the byte following an
	// 0xe0 prefix (cursor keys, right ctrl/alt and friends).
	extended bool
}

// decode feeds one scancode to the decoder. It returns the decoded printable
// byte and true, or false when the scancode carries no printable character.
func (d *decoder) decode(scancode uint8) (byte, bool) {
	if d.extended {
		d.extended = false
		return 0, false
	}

	switch {
	case scancode == extendedPrefix:
		d.extended = true
		return 0, false
	case scancode == scanLeftShift || scancode == scanRightShift:
		d.shift = true
		return 0, false
	case scancode == scanLeftShift|breakBit || scancode == scanRightShift|breakBit:
		d.shift = false
		return 0, false
	case scancode&breakBit != 0:
		// Key releases produce no output.
		return 0, false
	}

	if int(scancode) >= len(normalMap) {
		return 0, false
	}

	var ch byte
	if d.shift {
		ch = shiftMap[scancode]
	} else {
		ch = normalMap[scancode]
	}

	return ch, ch != 0
}

var (
	// lock guards the decoder singleton so its modifier state is updated
	// by one scancode at a time.
	lock sync.Spinlock
	dec  decoder

	// outBuf passes single decoded characters to kfmt without allocating.
	outBuf [1]byte

	// portReadFn is mocked by tests.
	portReadFn = cpu.PortReadByte
)

// Init registers the keyboard interrupt handler. The PIC must already be
// remapped; the handler starts receiving scancodes once interrupts are
// enabled.
func Init() {
	irq.HandleIRQ(irq.KeyboardInterrupt, onInterrupt)
}

// onInterrupt reads the pending scancode from the keyboard controller and
// echoes the decoded character, if any. The caller (the IRQ dispatcher)
// sends the EOI after this returns.
func onInterrupt() {
	lock.Acquire()
	defer lock.Release()

	scancode := portReadFn(dataPort)
	if ch, ok := dec.decode(scancode); ok {
		outBuf[0] = ch
		kfmt.Printf("%s", outBuf[:])
	}
}
