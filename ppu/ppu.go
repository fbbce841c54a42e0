// Package ppu implements the console's picture processing unit: its
// register file, VRAM/palette/OAM address space, and a cycle-accurate
// scanline/dot engine that drives VBlank and NMI timing the way
// software actually depends on.
package ppu

import (
	"fmt"

	"github.com/patlillis/neskimo/cartridge"
	"github.com/patlillis/neskimo/errs"
)

// Register offsets within the $2000-$2007 CPU-visible window.
const (
	PPUCTRL = iota
	PPUMASK
	PPUSTATUS
	OAMADDR
	OAMDATA
	PPUSCROLL
	PPUADDR
	PPUDATA
)

// PPUCTRL bits.
const (
	ctrlNametableMask  = 0x03
	ctrlIncrement32    = 1 << 2
	ctrlSpritePattern  = 1 << 3
	ctrlBgPattern      = 1 << 4
	ctrlSpriteSize8x16 = 1 << 5
	ctrlNMIEnable      = 1 << 7
)

// PPUSTATUS bits.
const (
	statusSpriteOverflow = 1 << 5
	statusSpriteZeroHit  = 1 << 6
	statusVBlank         = 1 << 7
)

const (
	cyclesPerScanline = 341
	scanlinesPerFrame = 262
	visibleScanlines  = 240
	vblankScanline    = 241
	preRenderScanline = 261
	framePixelWidth   = 256
	framePixelHeight  = 240
)

// ChrDevice is the CHR ROM/RAM side of a cartridge mapper, the only
// part of a Mapper the PPU needs.
type ChrDevice interface {
	ChrRead(addr uint16) uint8
	ChrWrite(addr uint16, val uint8)
}

// PPU owns video memory, OAM and the rendering timeline. It is driven
// one dot at a time by the console, which paces it at three PPU dots
// per CPU cycle.
type PPU struct {
	chr        ChrDevice
	mirrorMode uint8

	vram         [2048]uint8
	paletteTable [32]uint8
	oamData      [256]uint8

	ctrl, mask, status uint8
	oamAddr            uint8

	v, t    loopy
	fineX   uint8
	wLatch  bool
	readBuf uint8

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	nmiFired    bool
	frameDone   bool
	frameBuffer [framePixelWidth * framePixelHeight]uint32

	fault error
}

// New constructs a PPU wired to chr for pattern-table access and
// mirrorMode for nametable mirroring (cartridge.MIRROR_HORIZONTAL et al).
func New(chr ChrDevice, mirrorMode uint8) *PPU {
	return &PPU{chr: chr, mirrorMode: mirrorMode}
}

// Reset clears volatile state, the way a console power cycle would;
// CHR wiring and mirroring mode survive since they're cartridge facts.
func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status, p.oamAddr = 0, 0, 0, 0
	p.v, p.t = loopy{}, loopy{}
	p.fineX, p.wLatch, p.readBuf = 0, false, 0
	p.scanline, p.dot, p.frame, p.oddFrame = 0, 0, 0, false
	p.nmiFired, p.frameDone = false, false
}

// PopNMI reports whether an NMI has fired since the last call and
// clears the flag. The console calls this after each Step that
// entered VBlank.
func (p *PPU) PopNMI() bool {
	v := p.nmiFired
	p.nmiFired = false
	return v
}

// PopFrame reports whether a full frame finished rendering since the
// last call and clears the flag.
func (p *PPU) PopFrame() bool {
	v := p.frameDone
	p.frameDone = false
	return v
}

// FrameBuffer returns the last completed frame as packed RGBA values,
// row-major, 256x240.
func (p *PPU) FrameBuffer() []uint32 {
	return p.frameBuffer[:]
}

// Fault reports the first fatal condition latched since construction
// (currently: a nametable access under a mirror policy this engine
// can't resolve), once one has occurred.
func (p *PPU) Fault() error { return p.fault }

// Tick advances the PPU by exactly one pixel dot, the fundamental unit
// of its timing: 341 dots per scanline, 262 scanlines per frame, with
// one dot skipped on the pre-render line of odd frames, but only when
// background rendering is enabled (PPUMASK bit 3) — with rendering off
// the PPU free-runs and every frame is the full 341x262 dots.
func (p *PPU) Tick() {
	if p.scanline == preRenderScanline && p.dot == 339 && p.oddFrame && p.mask&0x08 != 0 {
		p.dot = 0
		p.scanline = 0
		p.startFrame()
		return
	}

	switch {
	case p.scanline >= 0 && p.scanline < visibleScanlines:
		p.renderDot()
	case p.scanline == vblankScanline && p.dot == 1:
		p.status |= statusVBlank
		if p.ctrl&ctrlNMIEnable != 0 {
			p.nmiFired = true
		}
	case p.scanline == preRenderScanline && p.dot == 1:
		p.status &^= statusVBlank | statusSpriteZeroHit | statusSpriteOverflow
	}

	p.dot++
	if p.dot >= cyclesPerScanline {
		p.dot = 0
		p.scanline++
		if p.scanline >= scanlinesPerFrame {
			p.scanline = 0
			p.startFrame()
		}
	}
}

// Step advances the PPU by n dots (the console calls this with
// 3*cpuCycles, the fixed NES clock ratio) and reports whether a new
// frame completed and whether VBlank was entered during this span, so
// the console knows to raise an NMI and/or present the frame buffer.
func (p *PPU) Step(n int) (newFrame, enteredVBlank bool) {
	for i := 0; i < n; i++ {
		wasVBlank := p.status&statusVBlank != 0
		p.Tick()
		if p.status&statusVBlank != 0 && !wasVBlank {
			enteredVBlank = true
		}
		if p.PopFrame() {
			newFrame = true
		}
	}
	return
}

func (p *PPU) startFrame() {
	p.frame++
	p.oddFrame = !p.oddFrame
	p.frameDone = true
}

// renderDot paints one pixel of the visible picture. Full per-tile
// background/sprite compositing is out of scope; each visible
// scanline is painted a single solid color sourced from the backdrop
// palette entry ($3F00), which is enough to drive real timing-
// sensitive software (raster effects, split-scroll tricks excluded)
// without pretending to a fidelity this engine doesn't implement.
func (p *PPU) renderDot() {
	if p.dot >= framePixelWidth {
		return
	}
	if p.mask&0x08 == 0 { // background rendering disabled
		return
	}
	color := systemPalette[p.paletteTable[0]&0x3F]
	p.frameBuffer[p.scanline*framePixelWidth+p.dot] = color
}

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&ctrlIncrement32 != 0 {
		return 32
	}
	return 1
}

// ReadReg services a CPU read of register reg (0-7, already reduced
// modulo the $2000-$2007 mirror).
func (p *PPU) ReadReg(reg uint8) uint8 {
	switch reg {
	case PPUSTATUS:
		v := p.status
		p.status &^= statusVBlank
		p.wLatch = false
		return v
	case OAMDATA:
		return p.oamData[p.oamAddr]
	case PPUDATA:
		addr := p.v.addr()
		var v uint8
		if addr < 0x3F00 {
			v = p.readBuf
			p.readBuf = p.read(addr)
		} else {
			v = p.read(addr)
			p.readBuf = p.read(addr - 0x1000)
		}
		p.v.set(addr + p.vramIncrement())
		return v
	}
	return 0
}

// WriteReg services a CPU write of register reg (0-7).
func (p *PPU) WriteReg(reg uint8, val uint8) {
	switch reg {
	case PPUCTRL:
		p.ctrl = val
		p.t.setNametable(val & ctrlNametableMask)
	case PPUMASK:
		p.mask = val
	case OAMADDR:
		p.oamAddr = val
	case OAMDATA:
		p.oamData[p.oamAddr] = val
		p.oamAddr++
	case PPUSCROLL:
		if !p.wLatch {
			p.fineX = val & 0x07
			p.t.setCoarseX(val >> 3)
		} else {
			p.t.setFineY(val & 0x07)
			p.t.setCoarseY(val >> 3)
		}
		p.wLatch = !p.wLatch
	case PPUADDR:
		if !p.wLatch {
			p.t.setHigh(val & 0x3F)
		} else {
			p.t.setLow(val)
			p.v = p.t
		}
		p.wLatch = !p.wLatch
	case PPUDATA:
		addr := p.v.addr()
		p.write(addr, val)
		p.v.set(addr + p.vramIncrement())
	}
}

// OAMDMAWrite installs 256 bytes copied from CPU RAM during an
// OAMDMA transfer, starting at the current OAM address.
func (p *PPU) OAMDMAWrite(page []uint8) {
	for _, b := range page {
		p.oamData[p.oamAddr] = b
		p.oamAddr++
	}
}

func (p *PPU) nametableAddr(addr uint16) uint16 {
	addr = (addr - 0x2000) & 0x0FFF
	table := addr / 0x0400
	offset := addr % 0x0400
	switch p.mirrorMode {
	case cartridge.MIRROR_VERTICAL:
		return (table%2)*0x0400 + offset
	case cartridge.MIRROR_HORIZONTAL:
		return (table/2)*0x0400 + offset
	default: // four-screen: this engine has no separate four-bank VRAM to back it
		if p.fault == nil {
			p.fault = errs.New(errs.BadMirror, "ppu.nametableAddr", fmt.Errorf("four-screen mirroring not configured"))
		}
		return addr & 0x07FF
	}
}

func (p *PPU) read(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return p.chr.ChrRead(addr)
	case addr < 0x3F00:
		return p.vram[p.nametableAddr(addr)]
	default:
		return p.paletteTable[paletteAddr(addr)]
	}
}

func (p *PPU) write(addr uint16, val uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.chr.ChrWrite(addr, val)
	case addr < 0x3F00:
		p.vram[p.nametableAddr(addr)] = val
	default:
		p.paletteTable[paletteAddr(addr)] = val
	}
}

// paletteAddr folds the $3F00-$3FFF mirror down to 32 entries, with
// the sprite-palette backdrop entries ($3F10/$14/$18/$1C) additionally
// mirroring the background backdrop, as real hardware does.
func paletteAddr(addr uint16) uint16 {
	a := (addr - 0x3F00) % 32
	if a >= 16 && a%4 == 0 {
		a -= 16
	}
	return a
}
