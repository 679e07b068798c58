package kernel

import "unsafe"

// FuncAddress returns the entry address for fn. A func value points to a
// funcval record whose first word is the code pointer; this mirrors the
// funcPC helper used by the Go runtime. The result is only meaningful for
// top-level functions (closures carry captured state that no caller of this
// helper can preserve).
func FuncAddress(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}
