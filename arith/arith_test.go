package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNegative(t *testing.T) {
	assert.False(t, IsNegative(0x00))
	assert.False(t, IsNegative(0x7F))
	assert.True(t, IsNegative(0x80))
	assert.True(t, IsNegative(0xFF))
}

func TestConcat(t *testing.T) {
	assert.Equal(t, uint16(0xBEEF), Concat(0xEF, 0xBE))
	assert.Equal(t, uint16(0x0000), Concat(0x00, 0x00))
}

func TestAddRelative(t *testing.T) {
	assert.Equal(t, uint16(0x0102), AddRelative(0x0100, 0x02))
	assert.Equal(t, uint16(0x00FE), AddRelative(0x0100, 0xFE)) // -2
}

func TestPageCross(t *testing.T) {
	assert.False(t, PageCross(0x01F0, 0x01FF))
	assert.True(t, PageCross(0x01FF, 0x0200))
	assert.Equal(t, uint16(0x0100), Page(0x01F0))
}
