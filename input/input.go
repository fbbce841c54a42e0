// Package input adapts host keyboard state into the two-port
// controller read/write protocol the console's $4016/$4017 registers
// expose to the CPU. It is the only package outside cmd/neskimo that
// depends on ebiten, keeping the core console ebiten-free.
package input

import "github.com/hajimehoshi/ebiten/v2"

// Buttons, as bits, in NES controller shift-register order.
// 0 - A, 1 - B, 2 - Select, 3 - Start, 4 - Up, 5 - Down, 6 - Left, 7 - Right
var keys = []ebiten.Key{
	ebiten.KeyA,
	ebiten.KeyB,
	ebiten.KeySpace,
	ebiten.KeyEnter,
	ebiten.KeyUp,
	ebiten.KeyDown,
	ebiten.KeyLeft,
	ebiten.KeyRight,
}

type pad struct {
	strobe  bool
	buttons uint8
	idx     uint8
}

func (p *pad) write(val uint8) {
	switch val & 0x01 {
	case 0:
		p.strobe = false
		p.idx = 0
	case 1:
		p.strobe = true
		p.poll()
	}
}

func (p *pad) read() uint8 {
	if p.strobe {
		p.poll()
		return p.buttons & 1
	}
	if p.idx > 7 {
		return 1
	}
	ret := (p.buttons >> p.idx) & 1
	p.idx++
	return ret
}

func (p *pad) poll() {
	p.buttons = 0
	for i, key := range keys {
		if ebiten.IsKeyPressed(key) {
			p.buttons |= 1 << i
		}
	}
}

// Controllers implements memory.AddressSpace over the $4016 (port 1)
// and $4017 (port 2, always reporting no buttons pressed — a second
// physical pad is out of scope) registers, once the console has
// translated an address down to 0 or 1.
type Controllers struct {
	pad1, pad2 pad
}

func New() *Controllers {
	return &Controllers{}
}

func (c *Controllers) Read(port uint16) uint8 {
	if port == 0 {
		return c.pad1.read()
	}
	return 0
}

// Write has no meaningful previous-byte readback — $4016/$4017 are
// write-only strobe lines on real hardware — so it always reports 0.
// Both ports share the same strobe line: writing $4016 latches both
// controllers' shift registers at once.
func (c *Controllers) Write(port uint16, val uint8) uint8 {
	c.pad1.write(val)
	c.pad2.write(val)
	return 0
}
