package mappers

import "github.com/patlillis/neskimo/cartridge"

// dummyMapper is a bare test double other packages' tests wire in
// place of a real cartridge mapper.
type dummyMapper struct {
	mem [0x10000]uint8
	mm  uint8 // mirroring mode; tests can set as needed
}

func (dm *dummyMapper) ID() uint16                    { return 0xFFFF }
func (dm *dummyMapper) Init(*cartridge.Cartridge)     {}
func (dm *dummyMapper) Name() string                  { return "dummy mapper" }
func (dm *dummyMapper) PrgRead(addr uint16) uint8     { return dm.mem[addr] }
func (dm *dummyMapper) PrgWrite(addr uint16, v uint8) { dm.mem[addr] = v }
func (dm *dummyMapper) ChrRead(addr uint16) uint8     { return dm.mem[addr] }
func (dm *dummyMapper) ChrWrite(addr uint16, v uint8) { dm.mem[addr] = v }
func (dm *dummyMapper) MirroringMode() uint8          { return dm.mm }
func (dm *dummyMapper) HasSaveRAM() bool              { return true }
func (dm *dummyMapper) SetMirroringMode(mm uint8)     { dm.mm = mm }

// NewDummy returns a fresh test-double mapper backed by a full 64K
// scratch array, with no real bank switching or cartridge behind it.
func NewDummy() interface {
	Mapper
	SetMirroringMode(uint8)
} {
	return &dummyMapper{}
}

// Dummy is a package-level shared fixture, mirroring the teacher's own
// pattern of a single default test double. Tests that need to
// configure mirroring mode should call NewDummy instead so they don't
// share state with other tests.
var Dummy Mapper = NewDummy()
