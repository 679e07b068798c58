package kbd

import (
	"bytes"
	"testing"

	"github.com/M1haS/rose/kernel/kfmt"
)

func TestDecode(t *testing.T) {
	specs := []struct {
		scancodes []uint8
		expOutput string
	}{
		// plain keys with their break codes interleaved
		{[]uint8{0x23, 0xa3, 0x17, 0x97}, "hi"},
		// digits
		{[]uint8{0x02, 0x0b}, "10"},
		// shift produces the shifted table until released
		{[]uint8{0x2a, 0x23, 0xaa, 0x23}, "Hh"},
		// right shift behaves like left shift
		{[]uint8{0x36, 0x03, 0xb6, 0x03}, "@2"},
		// enter, space, backspace and tab are passed through
		{[]uint8{0x1c, 0x39, 0x0e, 0x0f}, "\n \b\t"},
		// extended scancodes are discarded along with their payload
		{[]uint8{0xe0, 0x48, 0x23}, "h"},
		// scancodes with no mapping produce nothing
		{[]uint8{0x3a, 0x46}, ""},
	}

	for specIndex, spec := range specs {
		var dec decoder
		var out []byte

		for _, scancode := range spec.scancodes {
			if ch, ok := dec.decode(scancode); ok {
				out = append(out, ch)
			}
		}

		if got := string(out); got != spec.expOutput {
			t.Errorf("[spec %d] expected to decode %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestOnInterrupt(t *testing.T) {
	defer func() {
		portReadFn = origPortRead
		dec = decoder{}
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	scancodes := []uint8{0x2a, 0x13, 0xaa, 0x18, 0x1f, 0x12, 0x1c}
	var next int
	portReadFn = func(port uint16) uint8 {
		if port != dataPort {
			t.Fatalf("expected a read from port %x; got %x", dataPort, port)
		}
		sc := scancodes[next]
		next++
		return sc
	}

	dec = decoder{}
	for range scancodes {
		onInterrupt()
	}

	if exp, got := "Rose\n", buf.String(); got != exp {
		t.Fatalf("expected the decoded characters %q to be echoed; got %q", exp, got)
	}
}

var origPortRead = portReadFn
