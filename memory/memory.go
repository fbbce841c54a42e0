// Package memory implements the two address-space shapes the
// emulator needs: a flat, fully addressable RAM block for unit tests
// and scratch use, and a Mapped address space that routes reads and
// writes to whichever device claims a given range, falling back to
// plain RAM for everything else.
package memory

import (
	"fmt"
	"io"

	"github.com/patlillis/neskimo/errs"
)

// AddressSpace is anything a CPU can read a byte from or write a byte
// to at a 16-bit address. Write reports the byte that was stored at
// addr immediately before the write, read through the same routing.
type AddressSpace interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8) uint8
}

// Faulter is implemented by address spaces that can latch a fatal,
// sticky condition encountered during Read/Write — an access no claim
// and no fallback covers — without threading an error return through
// every single byte access. Callers that care (the CPU, once per
// instruction) check Fault() after driving the address space instead.
type Faulter interface {
	Fault() error
}

// Flat is a full 64K flat RAM block with no mirroring or device
// dispatch. Useful standalone for tests that want to poke at memory
// directly.
type Flat struct {
	bytes [0x10000]uint8
}

func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Read(addr uint16) uint8 {
	return f.bytes[addr]
}

func (f *Flat) Write(addr uint16, val uint8) uint8 {
	prev := f.bytes[addr]
	f.bytes[addr] = val
	return prev
}

// Read16 fetches a little-endian word.
func (f *Flat) Read16(addr uint16) uint16 {
	lo := uint16(f.Read(addr))
	hi := uint16(f.Read(addr + 1))
	return hi<<8 | lo
}

// Read16WrapPage fetches a little-endian word the way indirect JMP
// does on real hardware: if addr is the last byte of a page, the high
// byte is fetched from the start of the *same* page rather than
// spilling into the next one. This reproduces the famous 6502
// indirect-jump page-wrap bug.
func (f *Flat) Read16WrapPage(addr uint16) uint16 {
	lo := uint16(f.Read(addr))
	hiAddr := (addr & 0xFF00) | uint16(uint8(addr)+1)
	hi := uint16(f.Read(hiAddr))
	return hi<<8 | lo
}

func (f *Flat) Write16(addr, val uint16) {
	f.Write(addr, uint8(val))
	f.Write(addr+1, uint8(val>>8))
}

// StoreBytes copies data into memory starting at base, the way a
// cartridge's trainer or PRG banks get installed.
func (f *Flat) StoreBytes(base uint16, data []byte) {
	for i, b := range data {
		f.bytes[int(base)+i] = b
	}
}

// Dump writes the full 64K backing array verbatim, for the
// diagnostic raw-memory dump hook.
func (f *Flat) Dump(w io.Writer) error {
	_, err := w.Write(f.bytes[:])
	return err
}

// claim records that a device owns [low, high], with addresses within
// that range first reduced modulo mirrorSize before being handed to
// the device. A mirrorSize of 0 means no mirroring: the raw offset
// from low is used.
type claim struct {
	low, high  uint16
	mirrorSize uint16
	dev        AddressSpace
}

func (c claim) owns(addr uint16) bool {
	return addr >= c.low && addr <= c.high
}

func (c claim) translate(addr uint16) uint16 {
	off := addr - c.low
	if c.mirrorSize == 0 {
		return off
	}
	return off % c.mirrorSize
}

// Mapped is a composite address space: a fallback RAM block plus an
// ordered list of device claims that are checked first, in
// registration order. This is the generalized shape of what the
// console wires up for the CPU memory map (RAM mirrors, PPU register
// mirrors, OAMDMA, cartridge PRG).
type Mapped struct {
	fallback []uint8
	claims   []claim
	fault    error
}

// NewMapped builds a Mapped address space backed by fallbackSize
// bytes of plain RAM for anything not claimed by a device.
func NewMapped(fallbackSize int) *Mapped {
	return &Mapped{fallback: make([]uint8, fallbackSize)}
}

// Claim registers dev as the owner of [low, high]. Addresses in that
// range are translated modulo mirrorSize (0 disables mirroring)
// before being passed to dev.Read/dev.Write.
func (m *Mapped) Claim(low, high, mirrorSize uint16, dev AddressSpace) {
	m.claims = append(m.claims, claim{low: low, high: high, mirrorSize: mirrorSize, dev: dev})
}

// Fault reports the first UnmappedAccess encountered since construction,
// once an address fell outside every claim and the fallback's bounds.
func (m *Mapped) Fault() error { return m.fault }

func (m *Mapped) Read(addr uint16) uint8 {
	for _, c := range m.claims {
		if c.owns(addr) {
			return c.dev.Read(c.translate(addr))
		}
	}
	if int(addr) < len(m.fallback) {
		return m.fallback[addr]
	}
	m.setFault(addr)
	return 0
}

func (m *Mapped) Write(addr uint16, val uint8) uint8 {
	for _, c := range m.claims {
		if c.owns(addr) {
			off := c.translate(addr)
			prev := c.dev.Read(off)
			c.dev.Write(off, val)
			return prev
		}
	}
	if int(addr) < len(m.fallback) {
		prev := m.fallback[addr]
		m.fallback[addr] = val
		return prev
	}
	m.setFault(addr)
	return 0
}

func (m *Mapped) setFault(addr uint16) {
	if m.fault == nil {
		m.fault = errs.New(errs.UnmappedAccess, "memory.Mapped", fmt.Errorf("address $%04X", addr))
	}
}

func (m *Mapped) Read16(addr uint16) uint16 {
	lo := uint16(m.Read(addr))
	hi := uint16(m.Read(addr + 1))
	return hi<<8 | lo
}

func (m *Mapped) Read16WrapPage(addr uint16) uint16 {
	lo := uint16(m.Read(addr))
	hiAddr := (addr & 0xFF00) | uint16(uint8(addr)+1)
	hi := uint16(m.Read(hiAddr))
	return hi<<8 | lo
}

// DeviceFunc adapts a pair of plain functions to the AddressSpace
// interface, for devices (like a PPU register file or a mapper) whose
// read/write behavior doesn't naturally live behind a single struct
// pointer satisfying AddressSpace already.
type DeviceFunc struct {
	ReadFn  func(uint16) uint8
	WriteFn func(uint16, uint8)
}

func (d DeviceFunc) Read(addr uint16) uint8 {
	if d.ReadFn == nil {
		return 0
	}
	return d.ReadFn(addr)
}

// Write has no meaningful previous-byte readback for a pure
// side-effecting device (OAMDMA's trigger register, for instance), so
// it always reports 0.
func (d DeviceFunc) Write(addr uint16, val uint8) uint8 {
	if d.WriteFn != nil {
		d.WriteFn(addr, val)
	}
	return 0
}
