package qemu

import "testing"

func TestExit(t *testing.T) {
	defer func() { portWriteFn = origPortWrite }()

	var (
		gotPort uint16
		gotVal  uint32
	)
	portWriteFn = func(port uint16, val uint32) {
		gotPort, gotVal = port, val
	}

	specs := []struct {
		code   ExitCode
		expVal uint32
	}{
		{ExitSuccess, 0x10},
		{ExitFailed, 0x11},
	}

	for specIndex, spec := range specs {
		Exit(spec.code)

		if gotPort != exitPort {
			t.Errorf("[spec %d] expected a write to port %x; got %x", specIndex, exitPort, gotPort)
		}

		if gotVal != spec.expVal {
			t.Errorf("[spec %d] expected exit code %x; got %x", specIndex, spec.expVal, gotVal)
		}
	}
}

var origPortWrite = portWriteFn
