package cpu

import (
	"testing"

	"github.com/patlillis/neskimo/errs"
	"github.com/patlillis/neskimo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCPU(t *testing.T, program ...uint8) (*CPU, *memory.Flat) {
	t.Helper()
	m := memory.NewFlat()
	// Reset vector points at $8000, where the caller's program lives.
	m.Write16(resetVector, 0x8000)
	m.StoreBytes(0x8000, program)
	return New(m), m
}

func run(c *CPU, steps int) {
	for i := 0; i < steps; i++ {
		for {
			c.Tick()
			if c.cycles == 0 {
				break
			}
		}
	}
}

func TestResetLoadsVectorAndDefaults(t *testing.T) {
	c, _ := newTestCPU(t, 0xEA)
	assert.Equal(t, uint16(0x8000), c.pc)
	assert.Equal(t, initialSP, c.sp)
	assert.True(t, c.flag(FlagI))
	assert.True(t, c.flag(FlagU))
}

func TestLDAImmediateSetsZeroAndNegative(t *testing.T) {
	c, _ := newTestCPU(t, 0xA9, 0x00, 0xA9, 0x80)
	run(c, 1)
	assert.Equal(t, uint8(0), c.acc)
	assert.True(t, c.flag(FlagZ))
	assert.False(t, c.flag(FlagN))

	run(c, 1)
	assert.Equal(t, uint8(0x80), c.acc)
	assert.False(t, c.flag(FlagZ))
	assert.True(t, c.flag(FlagN))
}

func TestADCSetsCarryAndOverflow(t *testing.T) {
	c, _ := newTestCPU(t, 0xA9, 0x7F, 0x69, 0x01) // LDA #$7F; ADC #$01
	run(c, 2)
	assert.Equal(t, uint8(0x80), c.acc)
	assert.True(t, c.flag(FlagV)) // signed overflow: 127+1 -> -128
	assert.False(t, c.flag(FlagC))
}

func TestSBCBorrow(t *testing.T) {
	// LDA #$00; SEC; SBC #$01 -> 0xFF, carry clear (borrow occurred)
	c, _ := newTestCPU(t, 0xA9, 0x00, 0x38, 0xE9, 0x01)
	run(c, 3)
	assert.Equal(t, uint8(0xFF), c.acc)
	assert.False(t, c.flag(FlagC))
	assert.True(t, c.flag(FlagN))
}

func TestAbsoluteXPageCrossAddsCycle(t *testing.T) {
	// LDA $30FF,X with X=1 crosses from page $30 to $31.
	c, m := newTestCPU(t, 0xA2, 0x01, 0xBD, 0xFF, 0x30)
	m.Write(0x3100, 0x42)
	run(c, 1) // LDX
	before := c.totalCycles
	run(c, 1) // LDA abs,X
	assert.Equal(t, uint8(0x42), c.acc)
	assert.Equal(t, uint64(5), c.totalCycles-before) // 4 base + 1 page cross
}

func TestIndirectJMPPageWrapBug(t *testing.T) {
	c, m := newTestCPU(t, 0x6C, 0xFF, 0x10) // JMP ($10FF)
	m.Write(0x10FF, 0x80)
	m.Write(0x1000, 0x12) // high byte wraps to start of page $10, not $1100
	m.Write(0x1100, 0xFF) // if the bug were absent, this would be picked up
	run(c, 1)
	assert.Equal(t, uint16(0x1280), c.pc)
}

func TestBranchTakenAndPageCrossCycles(t *testing.T) {
	// BNE to a target on the same page: Z starts clear (after LDX #$01).
	c, _ := newTestCPU(t, 0xA2, 0x01, 0xD0, 0x02, 0xEA, 0xEA, 0xA9, 0x7F)
	run(c, 1) // LDX #$01
	before := c.totalCycles
	run(c, 1) // BNE +2, taken, no page cross
	assert.Equal(t, uint64(3), c.totalCycles-before)
}

func TestJSRAndRTSRoundTrip(t *testing.T) {
	// JSR $8005; ... ; at $8005: LDA #$42; RTS
	c, _ := newTestCPU(t, 0x20, 0x05, 0x80, 0xEA, 0xEA, 0xA9, 0x42, 0x60)
	run(c, 1) // JSR
	assert.Equal(t, uint16(0x8005), c.pc)
	run(c, 1) // LDA #$42
	assert.Equal(t, uint8(0x42), c.acc)
	run(c, 1) // RTS
	assert.Equal(t, uint16(0x8003), c.pc)
}

func TestStackPushPullRoundTrip(t *testing.T) {
	// LDA #$55; PHA; LDA #$00; PLA
	c, _ := newTestCPU(t, 0xA9, 0x55, 0x48, 0xA9, 0x00, 0x68)
	run(c, 3)
	assert.Equal(t, uint8(0), c.acc)
	run(c, 1)
	assert.Equal(t, uint8(0x55), c.acc)
}

func TestBRKPushesPCPlusOneAndSetsBreakOnStack(t *testing.T) {
	c, m := newTestCPU(t, 0x00, 0x00) // BRK <pad>
	m.Write16(irqVector, 0x9000)
	spBefore := c.sp
	run(c, 1)
	assert.Equal(t, uint16(0x9000), c.pc)
	assert.True(t, c.flag(FlagI))
	assert.Equal(t, spBefore-3, c.sp)

	pushedStatus := m.Read(stackBase + uint16(c.sp) + 1)
	assert.True(t, pushedStatus&FlagB != 0)
	pushedPC := c.read16(stackBase + uint16(c.sp) + 2)
	assert.Equal(t, uint16(0x8002), pushedPC)
}

func TestNMITakesPriorityAndSavesReturnAddress(t *testing.T) {
	c, m := newTestCPU(t, 0xEA, 0xEA)
	m.Write16(nmiVector, 0x9500)
	c.TriggerNMI()
	run(c, 1)
	assert.Equal(t, uint16(0x9500), c.pc)
	assert.True(t, c.flag(FlagI))
	pushedPC := c.read16(stackBase + uint16(c.sp) + 2)
	assert.Equal(t, uint16(0x8000), pushedPC)
}

func TestLAXLoadsAccAndX(t *testing.T) {
	c, m := newTestCPU(t, 0xA7, 0x10) // LAX $10
	m.Write(0x10, 0x37)
	run(c, 1)
	assert.Equal(t, uint8(0x37), c.acc)
	assert.Equal(t, uint8(0x37), c.x)
}

func TestSAXStoresAccAndXAnd(t *testing.T) {
	c, m := newTestCPU(t, 0xA9, 0xF0, 0xA2, 0x3C, 0x87, 0x20) // LDA #$F0; LDX #$3C; SAX $20
	run(c, 3)
	assert.Equal(t, uint8(0xF0&0x3C), m.Read(0x20))
}

func TestDCPDecrementsThenCompares(t *testing.T) {
	// LDA #$10; DCP $30 where mem[$30]=0x11 -> decrements to 0x10, equal
	c, m := newTestCPU(t, 0xA9, 0x10, 0xC7, 0x30)
	m.Write(0x30, 0x11)
	run(c, 2)
	assert.Equal(t, uint8(0x10), m.Read(0x30))
	assert.True(t, c.flag(FlagZ))
	assert.True(t, c.flag(FlagC))
}

func TestUnknownOpcodeReturnsError(t *testing.T) {
	c, m := newTestCPU(t, 0x02) // unimplemented/halt-class opcode
	_ = m
	err := c.step()
	assert.Error(t, err)
}

func TestUnmappedAccessFaultsFatally(t *testing.T) {
	// Fallback only covers $0000-$8FFF; nothing claims or falls back
	// past it, so a read from $9000 must surface as a fatal error.
	m := memory.NewMapped(0x9000)
	m.Claim(0xFFFC, 0xFFFD, 0, memory.DeviceFunc{
		ReadFn: func(off uint16) uint8 {
			if off == 0 {
				return 0x00 // reset vector low byte -> $8000
			}
			return 0x80 // reset vector high byte
		},
	})
	m.Write(0x8000, 0xAD) // LDA $9000
	m.Write(0x8001, 0x00)
	m.Write(0x8002, 0x90)

	c := New(m)
	err := c.step()
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.UnmappedAccess, e.Kind)
}
