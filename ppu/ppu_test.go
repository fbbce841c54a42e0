package ppu

import (
	"testing"

	"github.com/patlillis/neskimo/cartridge"
	"github.com/patlillis/neskimo/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChr struct {
	mem [0x2000]uint8
}

func (f *fakeChr) ChrRead(addr uint16) uint8     { return f.mem[addr] }
func (f *fakeChr) ChrWrite(addr uint16, v uint8) { f.mem[addr] = v }

func newTestPPU() (*PPU, *fakeChr) {
	chr := &fakeChr{}
	return New(chr, cartridge.MIRROR_HORIZONTAL), chr
}

func tickN(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Tick()
	}
}

func TestVBlankFlagSetsAtScanline241Dot1(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg(PPUCTRL, ctrlNMIEnable)

	tickN(p, cyclesPerScanline*vblankScanline+2)

	status := p.ReadReg(PPUSTATUS)
	assert.True(t, status&statusVBlank != 0)
}

func TestNMIFiresWhenEnabled(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg(PPUCTRL, ctrlNMIEnable)
	tickN(p, cyclesPerScanline*vblankScanline+2)
	assert.True(t, p.PopNMI())
	assert.False(t, p.PopNMI())
}

func TestNMISuppressedWhenDisabled(t *testing.T) {
	p, _ := newTestPPU()
	tickN(p, cyclesPerScanline*vblankScanline+2)
	assert.False(t, p.PopNMI())
}

func TestPreRenderClearsStatusFlags(t *testing.T) {
	p, _ := newTestPPU()
	p.status = statusVBlank | statusSpriteZeroHit | statusSpriteOverflow
	p.scanline = preRenderScanline
	p.dot = 1
	p.Tick()
	assert.Equal(t, uint8(0), p.status&(statusVBlank|statusSpriteZeroHit|statusSpriteOverflow))
}

func TestOddFrameSkipsOneDot(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = 0x08 // background rendering enabled
	p.scanline = preRenderScanline
	p.dot = 339
	p.oddFrame = true
	p.Tick()
	assert.Equal(t, 0, p.scanline)
	assert.Equal(t, 0, p.dot)
}

func TestOddFrameDoesNotSkipWhenRenderingDisabled(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = 0 // rendering disabled (power-on default)
	p.scanline = preRenderScanline
	p.dot = 339
	p.oddFrame = true
	p.Tick()
	assert.Equal(t, preRenderScanline, p.scanline)
	assert.Equal(t, 340, p.dot)
}

func TestPPUDataReadIsBufferedExceptPalette(t *testing.T) {
	p, chr := newTestPPU()
	chr.mem[0x0010] = 0x42

	p.WriteReg(PPUADDR, 0x00)
	p.WriteReg(PPUADDR, 0x10)
	first := p.ReadReg(PPUDATA) // returns stale buffer (0), primes buffer with 0x42
	assert.Equal(t, uint8(0), first)
	second := p.ReadReg(PPUDATA) // now returns the primed buffer
	assert.Equal(t, uint8(0x42), second)

	p.paletteTable[0] = 0x21
	p.WriteReg(PPUADDR, 0x3F)
	p.WriteReg(PPUADDR, 0x00)
	palette := p.ReadReg(PPUDATA) // palette reads bypass the buffer
	assert.Equal(t, uint8(0x21), palette)
}

func TestPaletteWriteReadRoundTrip(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg(PPUADDR, 0x3F)
	p.WriteReg(PPUADDR, 0x00)
	p.WriteReg(PPUDATA, 0x20)
	assert.Equal(t, uint8(0x20), p.paletteTable[0])
}

func TestOAMDMAWriteFillsFromCurrentAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg(OAMADDR, 0x00)
	page := make([]uint8, 256)
	for i := range page {
		page[i] = uint8(i)
	}
	p.OAMDMAWrite(page)
	assert.Equal(t, uint8(0), p.oamData[0])
	assert.Equal(t, uint8(255), p.oamData[255])
}

func TestNametableMirroringHorizontal(t *testing.T) {
	p, _ := newTestPPU()
	// Horizontal mirroring: table 0 and table 1 share storage, as do 2 and 3.
	p.write(0x2005, 0xAB)
	assert.Equal(t, uint8(0xAB), p.read(0x2405))
}

func TestNametableMirroringVertical(t *testing.T) {
	chr := &fakeChr{}
	p := New(chr, cartridge.MIRROR_VERTICAL)
	p.write(0x2005, 0xCD)
	assert.Equal(t, uint8(0xCD), p.read(0x2805))
}

func TestFourScreenMirroringFaults(t *testing.T) {
	chr := &fakeChr{}
	p := New(chr, cartridge.MIRROR_FOUR_SCREEN)
	assert.Nil(t, p.Fault())
	p.write(0x2005, 0x01)
	require.Error(t, p.Fault())
	var e *errs.Error
	require.ErrorAs(t, p.Fault(), &e)
	assert.Equal(t, errs.BadMirror, e.Kind)
}
