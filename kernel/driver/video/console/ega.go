// Package console provides the text-mode console the kernel logs to.
package console

import "unsafe"

// Attr defines a color attribute.
type Attr uint16

// The set of attributes that can be passed to Write().
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	clearColor = Black
	clearChar  = byte(' ')
)

// Ega implements an EGA-compatible text console backed by the framebuffer
// mapped at the address supplied to Init. Each cell is a 16-bit value: the
// character in the low byte and the color attribute in the high byte.
type Ega struct {
	width  uint16
	height uint16

	fb []uint16
}

// Init sets up the console to write into the width*height cell framebuffer
// at fbAddr.
func (cons *Ega) Init(width, height uint16, fbAddr uintptr) {
	cons.width = width
	cons.height = height
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), int(width)*int(height))
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Clear clears the specified rectangular region.
func (cons *Ega) Clear(x, y, width, height uint16) {
	var (
		attr                 = uint16((clearColor << 4) | clearColor)
		clr                  = attr | uint16(clearChar)
		rowOffset, colOffset uint16
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = (y * cons.width) + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// ScrollUp scrolls the console contents up by the given number of lines. The
// vacated lines at the bottom are not cleared; the caller decides what to
// draw there.
func (cons *Ega) ScrollUp(lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	var i uint16
	offset := lines * cons.width
	for ; i < (cons.height-lines)*cons.width; i++ {
		cons.fb[i] = cons.fb[i+offset]
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[(y*cons.width)+x] = (uint16(attr) << 8) | uint16(ch)
}
