// Package cpu implements a cycle-counted interpreter for the 6502
// derivative at the heart of the console: the official instruction
// set plus the unofficial opcodes enough commercial software and test
// ROMs rely on to matter, interrupt handling, and the hardware's
// indirect-JMP page-wrap quirk.
package cpu

import (
	"fmt"

	"github.com/patlillis/neskimo/arith"
	"github.com/patlillis/neskimo/errs"
	"github.com/patlillis/neskimo/memory"
)

// Status flag bit positions.
const (
	FlagC uint8 = 1 << 0 // Carry
	FlagZ uint8 = 1 << 1 // Zero
	FlagI uint8 = 1 << 2 // Interrupt disable
	FlagD uint8 = 1 << 3 // Decimal (set and cleared, but ADC/SBC ignore it)
	FlagB uint8 = 1 << 4 // Break
	FlagU uint8 = 1 << 5 // Unused, always 1
	FlagV uint8 = 1 << 6 // Overflow
	FlagN uint8 = 1 << 7 // Negative
)

const (
	stackBase     uint16 = 0x0100
	resetVector   uint16 = 0xFFFC
	nmiVector     uint16 = 0xFFFA
	irqVector     uint16 = 0xFFFE
	initialStatus        = FlagI | FlagU
	initialSP     uint8  = 0xFD
)

// CPU holds the 6502-derivative register file and executes against an
// arbitrary memory.AddressSpace, so the console can wire in its full
// routed memory map while tests wire in a bare memory.Flat.
type CPU struct {
	mem     memory.AddressSpace
	faulter memory.Faulter // mem, if it can report a sticky fatal condition

	acc, x, y uint8
	status    uint8
	sp        uint8
	pc        uint16

	// cycles is how many more Ticks must elapse before the next
	// instruction is fetched; the whole instruction's side effects
	// happen up front, on the tick that finds cycles == 0.
	cycles uint8

	totalCycles uint64

	nmiPending bool
	irqPending bool

	// dmaStall, set by AddDMACycles, adds extra idle ticks for OAMDMA.
	dmaStall uint16
}

// New constructs a CPU wired to mem and resets it, which loads the
// program counter from the reset vector the way real hardware does at
// power-on.
func New(mem memory.AddressSpace) *CPU {
	c := &CPU{mem: mem}
	c.faulter, _ = mem.(memory.Faulter)
	c.Reset()
	return c
}

// Reset reinitializes registers and reloads the program counter from
// the reset vector, without clearing any attached memory.
func (c *CPU) Reset() {
	c.acc, c.x, c.y = 0, 0, 0
	c.status = initialStatus
	c.sp = initialSP
	c.pc = c.read16(resetVector)
	c.cycles = 0
	c.totalCycles = 0
	c.nmiPending = false
	c.irqPending = false
	c.dmaStall = 0
}

// PC reports the current program counter, mostly for diagnostics and
// mem-dump triggers that key off a target address.
func (c *CPU) PC() uint16 { return c.pc }

// SetPC overrides the program counter, for test ROMs (like nestest)
// that expect execution to begin somewhere other than the reset
// vector's target.
func (c *CPU) SetPC(pc uint16) { c.pc = pc }

// TotalCycles reports the running cycle count since the last Reset.
func (c *CPU) TotalCycles() uint64 { return c.totalCycles }

// TriggerNMI latches a non-maskable interrupt to be serviced the next
// time the CPU finishes its current instruction.
func (c *CPU) TriggerNMI() { c.nmiPending = true }

// TriggerIRQ latches a maskable interrupt request; it is ignored if
// FlagI is set when it comes time to service interrupts.
func (c *CPU) TriggerIRQ() { c.irqPending = true }

// AddDMACycles stalls the CPU for n extra ticks, the way an OAMDMA
// transfer suspends normal execution for 513 or 514 cycles.
func (c *CPU) AddDMACycles(n uint16) { c.dmaStall += n }

func (c *CPU) read8(addr uint16) uint8 {
	return c.mem.Read(addr)
}

func (c *CPU) write8(addr uint16, val uint8) {
	c.mem.Write(addr, val)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := c.read8(addr)
	hi := c.read8(addr + 1)
	return arith.Concat(lo, hi)
}

// read16WrapPage reproduces the indirect-JMP page-wrap bug: when addr
// is the last byte of a page, the high byte wraps back to the start
// of that same page instead of spilling into the next one.
func (c *CPU) read16WrapPage(addr uint16) uint16 {
	lo := c.read8(addr)
	hiAddr := (addr & 0xFF00) | uint16(uint8(addr)+1)
	hi := c.read8(hiAddr)
	return arith.Concat(lo, hi)
}

func (c *CPU) pushByte(v uint8) {
	c.write8(stackBase+uint16(c.sp), v)
	c.sp--
}

func (c *CPU) popByte() uint8 {
	c.sp++
	return c.read8(stackBase + uint16(c.sp))
}

func (c *CPU) pushAddr(addr uint16) {
	c.pushByte(uint8(addr >> 8))
	c.pushByte(uint8(addr))
}

func (c *CPU) popAddr() uint16 {
	lo := c.popByte()
	hi := c.popByte()
	return arith.Concat(lo, hi)
}

func (c *CPU) setFlag(flag uint8, on bool) {
	if on {
		c.status |= flag
	} else {
		c.status &^= flag
	}
}

func (c *CPU) flag(flag uint8) bool {
	return c.status&flag != 0
}

// setNZ updates the Zero and Negative flags from v, the way almost
// every load/transfer/arithmetic instruction does as a side effect.
func (c *CPU) setNZ(v uint8) {
	c.setFlag(FlagZ, v == 0)
	c.setFlag(FlagN, arith.IsNegative(v))
}

// Tick advances the CPU by one cycle. Instructions are decoded and
// fully executed on the cycle where the previous instruction's count
// has drained to zero; the remaining cycles of a multi-cycle
// instruction are simply idle ticks, matching how the console paces
// the CPU against the PPU (one CPU cycle per three PPU dots).
func (c *CPU) Tick() error {
	if c.dmaStall > 0 {
		c.dmaStall--
		return nil
	}
	if c.cycles > 0 {
		c.cycles--
		return nil
	}
	return c.step()
}

func (c *CPU) serviceInterrupts() bool {
	if c.nmiPending {
		c.nmiPending = false
		c.pushAddr(c.pc)
		c.pushByte((c.status | FlagU) &^ FlagB)
		c.setFlag(FlagI, true)
		c.pc = c.read16(nmiVector)
		c.cycles = 7 - 1
		c.totalCycles += 7
		return true
	}
	if c.irqPending {
		c.irqPending = false
		if c.flag(FlagI) {
			return false
		}
		c.pushAddr(c.pc)
		c.pushByte((c.status | FlagU) &^ FlagB)
		c.setFlag(FlagI, true)
		c.pc = c.read16(irqVector)
		c.cycles = 7 - 1
		c.totalCycles += 7
		return true
	}
	return false
}

// step services a pending interrupt if there is one and returns;
// otherwise it fetches, decodes and executes exactly one instruction.
// Either way it arms c.cycles with however many additional idle ticks
// that costs.
func (c *CPU) step() error {
	if c.serviceInterrupts() {
		return nil
	}

	opByte := c.read8(c.pc)
	op, ok := opcodes[opByte]
	if !ok {
		return errs.New(errs.UnknownOpcode, "cpu.step", fmt.Errorf("opcode $%02X at $%04X", opByte, c.pc))
	}
	c.pc++

	addr, pageCrossed := c.decodeOperand(op.mode)
	extra := c.execute(op, addr)

	if c.faulter != nil {
		if err := c.faulter.Fault(); err != nil {
			return err
		}
	}

	total := op.cycles
	if pageCrossed && addressingCanCrossPage(op.mode) && crossPenaltyApplies(op.inst) {
		total++
	}
	total += extra

	c.totalCycles += uint64(total)
	if total > 0 {
		c.cycles = total - 1
	}
	return nil
}

func addressingCanCrossPage(mode uint8) bool {
	switch mode {
	case ABSOLUTE_X, ABSOLUTE_Y, INDIRECT_Y:
		return true
	}
	return false
}

// crossPenaltyApplies excludes instructions that always pay the indexed
// addressing cost up front (stores, read-modify-write) and so never
// charge an extra cycle for crossing a page.
func crossPenaltyApplies(inst uint8) bool {
	switch inst {
	case STA, ASL, LSR, ROL, ROR, INC, DEC, SLO, RLA, SRE, RRA, DCP, ISB:
		return false
	}
	return true
}

// decodeOperand resolves the effective address for mode, advancing pc
// past the operand bytes, and reports whether an indexed computation
// crossed a page boundary.
func (c *CPU) decodeOperand(mode uint8) (addr uint16, pageCrossed bool) {
	switch mode {
	case IMPLICIT, ACCUMULATOR:
		return 0, false

	case IMMEDIATE:
		addr = c.pc
		c.pc++

	case ZERO_PAGE:
		addr = uint16(c.read8(c.pc))
		c.pc++

	case ZERO_PAGE_X:
		addr = uint16(c.read8(c.pc) + c.x)
		c.pc++

	case ZERO_PAGE_Y:
		addr = uint16(c.read8(c.pc) + c.y)
		c.pc++

	case RELATIVE:
		disp := c.read8(c.pc)
		c.pc++
		addr = arith.AddRelative(c.pc, disp)

	case ABSOLUTE:
		addr = c.read16(c.pc)
		c.pc += 2

	case ABSOLUTE_X:
		base := c.read16(c.pc)
		c.pc += 2
		addr = base + uint16(c.x)
		pageCrossed = arith.PageCross(base, addr)

	case ABSOLUTE_Y:
		base := c.read16(c.pc)
		c.pc += 2
		addr = base + uint16(c.y)
		pageCrossed = arith.PageCross(base, addr)

	case INDIRECT:
		ptr := c.read16(c.pc)
		c.pc += 2
		addr = c.read16WrapPage(ptr)

	case INDIRECT_X:
		zp := c.read8(c.pc)
		c.pc++
		ptr := zp + c.x
		lo := c.read8(uint16(ptr))
		hi := c.read8(uint16(ptr + 1))
		addr = arith.Concat(lo, hi)

	case INDIRECT_Y:
		zp := c.read8(c.pc)
		c.pc++
		lo := c.read8(uint16(zp))
		hi := c.read8(uint16(zp + 1))
		base := arith.Concat(lo, hi)
		addr = base + uint16(c.y)
		pageCrossed = arith.PageCross(base, addr)
	}
	return
}

// String renders a trace line in the classic nestest log shape:
// address, accumulator/index/status/stack registers and the running
// cycle count, useful for diffing against known-good execution logs.
func (c *CPU) String() string {
	return fmt.Sprintf("%04X  A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		c.pc, c.acc, c.x, c.y, c.status, c.sp, c.totalCycles)
}
