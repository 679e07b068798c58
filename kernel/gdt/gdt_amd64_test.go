package gdt

import (
	"testing"
	"unsafe"
)

func TestInit(t *testing.T) {
	defer func() {
		loadGDTFn = origLoadGDT
		loadTSSFn = origLoadTSS
		reloadSegmentsFn = origReloadSegments
	}()

	var (
		gdtLoaded                bool
		loadedTSSSel             uint16
		reloadedCode, reloadedData uint16
	)

	loadGDTFn = func(descAddr uintptr) {
		gdtLoaded = true

		desc := (*[5]uint16)(unsafe.Pointer(descAddr))
		if exp := uint16(unsafe.Sizeof(gdt) - 1); desc[0] != exp {
			t.Errorf("expected gdt limit %d; got %d", exp, desc[0])
		}

		base := uintptr(desc[1]) | uintptr(desc[2])<<16 | uintptr(desc[3])<<32 | uintptr(desc[4])<<48
		if exp := uintptr(unsafe.Pointer(&gdt[0])); base != exp {
			t.Errorf("expected gdt base %x; got %x", exp, base)
		}
	}
	loadTSSFn = func(sel uint16) { loadedTSSSel = sel }
	reloadSegmentsFn = func(code, data uint16) { reloadedCode, reloadedData = code, data }

	Init()

	if !gdtLoaded {
		t.Fatal("expected Init to load the GDT")
	}

	if gdt[0] != 0 {
		t.Error("expected GDT slot 0 to contain the null descriptor")
	}

	if gdt[1] != kernelCodeDescriptor || gdt[2] != kernelDataDescriptor {
		t.Error("expected GDT slots 1 and 2 to contain the kernel code and data descriptors")
	}

	if loadedTSSSel != uint16(selectorTSS) {
		t.Errorf("expected the task register to be loaded with %x; got %x", uint16(selectorTSS), loadedTSSSel)
	}

	if reloadedCode != uint16(SelectorKernelCode) || reloadedData != uint16(SelectorKernelData) {
		t.Errorf("expected segments to be reloaded with (%x, %x); got (%x, %x)",
			uint16(SelectorKernelCode), uint16(SelectorKernelData), reloadedCode, reloadedData)
	}

	// The TSS descriptor spans slots 3 and 4.
	tssBase := uintptr(unsafe.Pointer(&tss))
	gotBase := uintptr(gdt[3]>>16&0xffffff) | uintptr(gdt[3]>>56&0xff)<<24 | uintptr(gdt[4])<<32
	if gotBase != tssBase {
		t.Errorf("expected TSS descriptor base %x; got %x", tssBase, gotBase)
	}

	gotLimit := gdt[3]&0xffff | gdt[3]>>48&0xf<<16
	if exp := uint64(unsafe.Sizeof(tss) - 1); gotLimit != exp {
		t.Errorf("expected TSS descriptor limit %d; got %d", exp, gotLimit)
	}

	if typ := gdt[3] >> 40 & 0xff; typ != tssDescriptorType {
		t.Errorf("expected TSS descriptor type %x; got %x", tssDescriptorType, typ)
	}

	// Both the double-fault slot and the boot-time timer slot must point
	// at the end of the reserved double-fault region.
	stackEnd := uintptr(unsafe.Pointer(&doubleFaultStack[0])) + uintptr(len(doubleFaultStack))
	if got := tss.ist(DoubleFaultISTIndex); got != stackEnd {
		t.Errorf("expected IST slot %d to point at %x; got %x", DoubleFaultISTIndex, stackEnd, got)
	}
	if got := tss.ist(TimerISTIndex); got != stackEnd {
		t.Errorf("expected IST slot %d to point at %x; got %x", TimerISTIndex, stackEnd, got)
	}
}

func TestSetIST(t *testing.T) {
	for slot := 0; slot < istSlotCount; slot++ {
		exp := uintptr(0xdead0000beef0000) + uintptr(slot)
		SetIST(slot, exp)

		if got := tss.ist(slot); got != exp {
			t.Errorf("[slot %d] expected IST entry to read back %x; got %x", slot, exp, got)
		}
	}
}

func TestKernelSegments(t *testing.T) {
	code, data := KernelSegments()
	if code != SelectorKernelCode || data != SelectorKernelData {
		t.Fatalf("expected KernelSegments to return (%x, %x); got (%x, %x)",
			SelectorKernelCode, SelectorKernelData, code, data)
	}
}

var (
	origLoadGDT        = loadGDTFn
	origLoadTSS        = loadTSSFn
	origReloadSegments = reloadSegmentsFn
)
