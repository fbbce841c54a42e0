package mappers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patlillis/neskimo/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeROM(t *testing.T, prgBlocks, chrBlocks uint8) string {
	t.Helper()
	hdr := []byte{'N', 'E', 'S', 0x1A, prgBlocks, chrBlocks, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	buf := append([]byte(nil), hdr...)
	buf = append(buf, make([]byte, int(prgBlocks)*cartridge.PRG_BLOCK_SIZE)...)
	buf = append(buf, make([]byte, int(chrBlocks)*cartridge.CHR_BLOCK_SIZE)...)
	path := filepath.Join(t.TempDir(), "t.nes")
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func TestGetUnsupportedMapper(t *testing.T) {
	path := writeROM(t, 1, 1)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	buf[6] = 0xF0 // mapper id 15, unregistered
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	c, err := cartridge.Load(path)
	require.NoError(t, err)

	_, err = Get(c)
	assert.Error(t, err)
}

func TestNROMMirrorsSingleBank(t *testing.T) {
	path := writeROM(t, 1, 1) // 16KB PRG, should mirror into both windows
	c, err := cartridge.Load(path)
	require.NoError(t, err)

	m, err := Get(c)
	require.NoError(t, err)

	c.PrgWrite(0x10, 0xAB)
	assert.Equal(t, uint8(0xAB), m.PrgRead(0x8010))
	assert.Equal(t, uint8(0xAB), m.PrgRead(0xC010))
}

func TestNROMSaveRAM(t *testing.T) {
	path := writeROM(t, 2, 1)
	c, err := cartridge.Load(path)
	require.NoError(t, err)
	m, err := Get(c)
	require.NoError(t, err)

	m.PrgWrite(0x6100, 0x7F)
	assert.Equal(t, uint8(0x7F), m.PrgRead(0x6100))
	// PRG ROM above $8000 is untouched by the SRAM write
	assert.Equal(t, uint8(0), m.PrgRead(0x8100))
}
