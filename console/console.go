// Package console assembles a CPU, a PPU, a loaded cartridge's mapper
// and an input device into a routed memory map and drives the main
// emulation loop: run one CPU instruction, pace the PPU at three dots
// per CPU cycle, and raise an NMI when the PPU enters VBlank with NMI
// reporting enabled.
package console

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/patlillis/neskimo/cartridge"
	"github.com/patlillis/neskimo/cpu"
	"github.com/patlillis/neskimo/errs"
	"github.com/patlillis/neskimo/mappers"
	"github.com/patlillis/neskimo/memory"
	"github.com/patlillis/neskimo/ppu"
)

const (
	ramSize  = 0x0800 // 2KB built-in console RAM
	ramMax   = 0x1FFF
	ppuMax   = 0x3FFF
	oamDMA   = 0x4014
	padsBase = 0x4016
	padsMax  = 0x4017
	sramBase = 0x6000
)

// Pads is the two-port controller device the console wires at
// $4016/$4017; the input package's Controllers type implements it.
type Pads = memory.AddressSpace

// Options configures a Console beyond what the cartridge itself
// dictates.
type Options struct {
	InitialPC *uint16 // override the reset vector, for test ROMs
	LogFile   string  // opt-in per-instruction trace
	MemDumpPC *uint16 // dump RAM when PC equals this address
}

// Console is the assembled, runnable machine.
type Console struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	mapper mappers.Mapper
	mem    *memory.Mapped
	ram    []uint8

	opts   Options
	logger io.WriteCloser
	dumped bool
}

type ramDevice struct{ ram []uint8 }

func (r ramDevice) Read(addr uint16) uint8 { return r.ram[addr] }
func (r ramDevice) Write(addr uint16, v uint8) uint8 {
	prev := r.ram[addr]
	r.ram[addr] = v
	return prev
}

// ppuRegs adapts the PPU's register file (indexed 0-7) to the
// address-space shape the memory router expects. PPU registers are
// write-only from the CPU's side with no defined previous-byte
// readback, so Write always reports 0.
type ppuRegs struct{ p *ppu.PPU }

func (p ppuRegs) Read(reg uint16) uint8 { return p.p.ReadReg(uint8(reg)) }
func (p ppuRegs) Write(reg uint16, v uint8) uint8 {
	p.p.WriteReg(uint8(reg), v)
	return 0
}

// mapperPrg adapts a mapper's raw-CPU-address PrgRead/PrgWrite to the
// offset-from-claim-base address memory.Mapped hands a claimed device.
type mapperPrg struct{ m mappers.Mapper }

func (m mapperPrg) Read(off uint16) uint8 { return m.m.PrgRead(off + sramBase) }
func (m mapperPrg) Write(off uint16, v uint8) uint8 {
	prev := m.m.PrgRead(off + sramBase)
	m.m.PrgWrite(off+sramBase, v)
	return prev
}

// New assembles a console around cart, using m as its already-
// initialized mapper and pads as the input device. Passing a nil pads
// is valid for headless use (test ROMs, CPU-only tests); reads from
// $4016/$4017 then always report no buttons pressed.
func New(cart *cartridge.Cartridge, m mappers.Mapper, pads Pads, opts Options) (*Console, error) {
	c := &Console{
		mapper: m,
		ram:    make([]uint8, ramSize),
		opts:   opts,
	}

	c.PPU = ppu.New(chrDevice{m}, m.MirroringMode())

	c.mem = memory.NewMapped(0)
	c.mem.Claim(0x0000, ramMax, ramSize, ramDevice{c.ram})
	c.mem.Claim(0x2000, ppuMax, 8, ppuRegs{c.PPU})
	if pads == nil {
		pads = memory.DeviceFunc{}
	}
	c.mem.Claim(padsBase, padsMax, 2, pads)
	c.mem.Claim(oamDMA, oamDMA, 0, memory.DeviceFunc{WriteFn: c.handleOAMDMA})
	c.mem.Claim(sramBase, 0xFFFF, 0, mapperPrg{m})

	if cart.HasTrainer() {
		for i, b := range cart.Trainer() {
			c.mem.Write(0x7000+uint16(i), b)
		}
	}

	c.CPU = cpu.New(c.mem)
	if opts.InitialPC != nil {
		c.CPU.SetPC(*opts.InitialPC)
	}

	if opts.LogFile != "" {
		f, err := os.Create(opts.LogFile)
		if err != nil {
			return nil, errs.New(errs.IOError, "console.New", err)
		}
		c.logger = f
	}

	return c, nil
}

// chrDevice adapts a mapper to the PPU's narrower ChrDevice interface.
type chrDevice struct{ m mappers.Mapper }

func (d chrDevice) ChrRead(addr uint16) uint8     { return d.m.ChrRead(addr) }
func (d chrDevice) ChrWrite(addr uint16, v uint8) { d.m.ChrWrite(addr, v) }

// handleOAMDMA copies the 256-byte CPU page val selects into OAM and
// records a 513- or 514-cycle stall on the CPU via AddDMACycles. That
// stall is consumed only by CPU.Tick: Step drives the CPU through
// ExecuteOne, so on this path the CPU does not wait for the transfer
// and the PPU is not advanced for it.
func (c *Console) handleOAMDMA(_ uint16, val uint8) {
	base := uint16(val) << 8
	page := make([]uint8, 256)
	for i := range page {
		page[i] = c.mem.Read(base + uint16(i))
	}
	c.PPU.OAMDMAWrite(page)
	if c.CPU.TotalCycles()%2 == 0 {
		c.CPU.AddDMACycles(513)
	} else {
		c.CPU.AddDMACycles(514)
	}
}

// Close releases the console's log file, if one was opened.
func (c *Console) Close() error {
	if c.logger != nil {
		return c.logger.Close()
	}
	return nil
}

// Step runs exactly one CPU instruction, paces the PPU three dots per
// CPU cycle consumed, raises an NMI on VBlank entry if the PPU has NMI
// output enabled, and services the log/dump hooks. It reports whether
// a new frame completed so the host can present it.
func (c *Console) Step() (newFrame bool, err error) {
	if c.logger != nil {
		line, terr := c.CPU.Trace()
		if terr == nil {
			fmt.Fprintln(c.logger, line)
		}
	}

	if c.opts.MemDumpPC != nil && !c.dumped && c.CPU.PC() == *c.opts.MemDumpPC {
		c.dumped = true
		c.dumpState()
	}

	cycles, err := c.CPU.ExecuteOne()
	if err != nil {
		return false, err
	}

	frame, enteredVBlank := c.PPU.Step(int(cycles) * 3)
	if enteredVBlank && c.PPU.PopNMI() {
		c.CPU.TriggerNMI()
	}
	if err := c.PPU.Fault(); err != nil {
		return frame, err
	}
	return frame, nil
}

// Run drives Step in a loop until ctx is canceled or an error occurs.
func (c *Console) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := c.Step(); err != nil {
			return err
		}
	}
}

// FrameBuffer exposes the PPU's last completed frame for the host to
// present.
func (c *Console) FrameBuffer() []uint32 {
	return c.PPU.FrameBuffer()
}

// dumpState writes the raw RAM image plus a structured CPU/PPU
// snapshot alongside it, named after the log file (or "memdump" if no
// log file was configured) with a .bin/.txt suffix.
func (c *Console) dumpState() {
	base := c.opts.LogFile
	if base == "" {
		base = "memdump"
	}

	if bf, err := os.Create(base + ".bin"); err == nil {
		defer bf.Close()
		bf.Write(c.ram)
	}

	if tf, err := os.Create(base + ".txt"); err == nil {
		defer tf.Close()
		spew.Fdump(tf, c.CPU)
	}
}
