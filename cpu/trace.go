package cpu

import (
	"fmt"

	"github.com/patlillis/neskimo/arith"
)

// Trace renders the instruction about to execute as a single log
// line, in the field order an instruction-log consumer expects:
// address, raw opcode bytes, mnemonic, decoded operand text, then
// register/cycle state as of just before execution. It peeks at
// memory without disturbing pc or any register.
func (c *CPU) Trace() (string, error) {
	opByte := c.read8(c.pc)
	op, ok := opcodes[opByte]
	if !ok {
		return "", fmt.Errorf("unknown opcode $%02X at $%04X", opByte, c.pc)
	}

	raw := make([]uint8, op.bytes)
	for i := uint8(0); i < op.bytes; i++ {
		raw[i] = c.read8(c.pc + uint16(i))
	}

	var rawHex string
	for _, b := range raw {
		rawHex += fmt.Sprintf("%02X ", b)
	}
	for i := op.bytes; i < 3; i++ {
		rawHex += "   "
	}

	return fmt.Sprintf("%04X  %s %s %-18s A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		c.pc, rawHex, op.name, c.operandText(op, raw), c.acc, c.x, c.y, c.status, c.sp, c.totalCycles), nil
}

// operandText decodes raw's operand bytes into the human-readable
// argument text for a trace line, without performing any indexed
// addition (which would require reading memory this peek must not
// mutate the read-buffered side effects of, e.g. PPUDATA).
func (c *CPU) operandText(op opcode, raw []uint8) string {
	switch op.mode {
	case IMPLICIT:
		return ""
	case ACCUMULATOR:
		return "A"
	case IMMEDIATE:
		return fmt.Sprintf("#$%02X", raw[1])
	case ZERO_PAGE:
		return fmt.Sprintf("$%02X", raw[1])
	case ZERO_PAGE_X:
		return fmt.Sprintf("$%02X,X", raw[1])
	case ZERO_PAGE_Y:
		return fmt.Sprintf("$%02X,Y", raw[1])
	case RELATIVE:
		target := arith.AddRelative(c.pc+uint16(op.bytes), raw[1])
		return fmt.Sprintf("$%04X", target)
	case ABSOLUTE:
		return fmt.Sprintf("$%02X%02X", raw[2], raw[1])
	case ABSOLUTE_X:
		return fmt.Sprintf("$%02X%02X,X", raw[2], raw[1])
	case ABSOLUTE_Y:
		return fmt.Sprintf("$%02X%02X,Y", raw[2], raw[1])
	case INDIRECT:
		return fmt.Sprintf("($%02X%02X)", raw[2], raw[1])
	case INDIRECT_X:
		return fmt.Sprintf("($%02X,X)", raw[1])
	case INDIRECT_Y:
		return fmt.Sprintf("($%02X),Y", raw[1])
	}
	return ""
}

// ExecuteOne either services a pending interrupt or, when none is
// pending, fetches, decodes and executes exactly one instruction, and
// reports the number of cycles that cost, for callers that pace a PPU
// or APU off the CPU's own cycle count rather than driving the CPU one
// cycle at a time. An OAMDMA stall recorded by AddDMACycles is not
// part of the reported count; only Tick consumes it.
func (c *CPU) ExecuteOne() (uint8, error) {
	before := c.totalCycles
	if err := c.step(); err != nil {
		return 0, err
	}
	return uint8(c.totalCycles - before), nil
}
