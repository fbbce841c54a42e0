// Package mappers implements cartridge mapper boards, registered
// numerically the way iNES/NES 2.0 identifies them.
package mappers

import (
	"fmt"

	"github.com/patlillis/neskimo/cartridge"
	"github.com/patlillis/neskimo/errs"
)

// A global registry of mappers, keyed by mapper id.
var allMappers = map[uint16]Mapper{}

func registerMapper(id uint16, m Mapper) {
	if om, ok := allMappers[id]; ok {
		panic(fmt.Sprintf("mapper id %d already registered by %q", id, om.Name()))
	}
	allMappers[id] = m
}

// Get returns the mapper for rom's mapper id, initialized against
// rom, or an error if the id isn't one this emulator implements.
func Get(c *cartridge.Cartridge) (Mapper, error) {
	id := c.MapperNum()
	m, ok := allMappers[id]
	if !ok {
		return nil, errs.New(errs.MalformedROM, "mappers.Get", fmt.Errorf("unsupported mapper id %d", id))
	}
	m.Init(c)
	return m, nil
}

const NES_BASE_MEMORY = 2048 // 2KB built-in console RAM

// Mapper is a cartridge board: it owns PRG/CHR banking and reports
// the cartridge's fixed hardware facts (mirroring, save RAM).
type Mapper interface {
	ID() uint16
	Init(*cartridge.Cartridge)
	Name() string
	PrgRead(uint16) uint8
	PrgWrite(uint16, uint8)
	ChrRead(uint16) uint8
	ChrWrite(uint16, uint8)
	MirroringMode() uint8
	HasSaveRAM() bool
}

// baseMapper factors out the bookkeeping every board needs so
// concrete boards only implement the banking logic that actually
// differs.
type baseMapper struct {
	id   uint16
	c    *cartridge.Cartridge
	name string
}

func (bm *baseMapper) ID() uint16 {
	return bm.id
}

func (bm *baseMapper) String() string {
	return bm.name
}

func (bm *baseMapper) Name() string {
	return bm.name
}

func (bm *baseMapper) Init(c *cartridge.Cartridge) {
	bm.c = c
}

func (bm *baseMapper) MirroringMode() uint8 {
	return bm.c.MirroringMode()
}

func (bm *baseMapper) HasSaveRAM() bool {
	return bm.c.HasSaveRAM()
}
