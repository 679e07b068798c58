package cpu

// FlagIF is the interrupt-enable bit in the RFLAGS register.
const FlagIF = uint64(1) << 9

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Flags returns the current contents of the RFLAGS register.
func Flags() uint64

// Halt suspends instruction execution until the next interrupt arrives.
func Halt()

// HaltForever disables interrupts and halts the CPU in a loop. It is used by
// the fatal exception handlers and by kernel.Panic; calls to it never return.
func HaltForever()

// Int3 raises a breakpoint exception (#BP) on the current CPU.
func Int3()

// ReadCR2 returns the value stored in the CR2 register. When a page fault
// occurs, the CPU stores the faulting address in CR2.
func ReadCR2() uint64

// PortReadByte reads one byte from the supplied I/O port.
func PortReadByte(port uint16) uint8

// PortWriteByte writes val to the supplied I/O port.
func PortWriteByte(port uint16, val uint8)

// PortWriteDword writes val to the supplied I/O port as a 32-bit value.
func PortWriteDword(port uint16, val uint32)

// LoadGDT loads the global descriptor table described by the 10-byte
// pseudo-descriptor at descAddr.
func LoadGDT(descAddr uintptr)

// LoadIDT loads the interrupt descriptor table described by the 10-byte
// pseudo-descriptor at descAddr.
func LoadIDT(descAddr uintptr)

// LoadTaskRegister loads the task register with the supplied TSS selector.
func LoadTaskRegister(sel uint16)

// ReloadSegments reloads the segment registers after a new GDT has been
// installed. CS is reloaded with the code selector via a far return; the data
// segment registers are reloaded with the data selector directly.
func ReloadSegments(code, data uint16)
