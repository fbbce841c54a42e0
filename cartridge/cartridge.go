package cartridge

import (
	"fmt"
	"os"
	"strings"

	"github.com/patlillis/neskimo/errs"
)

// PlayChoicePROM holds the PlayChoice-10 hint-screen PROM data, kept
// around for completeness but never consumed by anything in this
// emulator beyond being parsed.
type PlayChoicePROM struct {
	Data       [16]byte
	CounterOut [16]byte
}

const (
	TRAINER_SIZE   = 512
	PRG_BLOCK_SIZE = 16384
	CHR_BLOCK_SIZE = 8192
	PC_INST_SIZE   = 8192
	PC_PROM_SIZE   = 32
)

// Cartridge is a fully parsed iNES ROM image.
type Cartridge struct {
	path      string
	h         *Header
	trainer   []byte
	prg       []byte
	chr       []byte
	pcInstROM []byte
	pcPROM    *PlayChoicePROM
}

// Load reads and parses an iNES ROM file from path.
func Load(path string) (*Cartridge, error) {
	rf, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.IOError, "cartridge.Load", fmt.Errorf("opening %q: %w", path, err))
	}
	defer rf.Close()

	hbytes := make([]byte, 16)
	if n, err := rf.Read(hbytes); n != 16 || err != nil {
		return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading header: %w", err))
	}

	c := &Cartridge{path: path, h: parseHeader(hbytes)}
	if !c.h.isINesFormat() {
		return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("%q is not an iNES file", path))
	}

	if c.h.hasTrainer() {
		c.trainer = make([]byte, TRAINER_SIZE)
		if n, err := rf.Read(c.trainer); n != TRAINER_SIZE || err != nil {
			return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading trainer: %w", err))
		}
	}

	s := PRG_BLOCK_SIZE * int(c.h.prgSize)
	c.prg = make([]byte, s)
	if n, err := rf.Read(c.prg); n != s || err != nil {
		return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading PRG ROM (read %d, wanted %d): %w", n, s, err))
	}

	s = CHR_BLOCK_SIZE * int(c.h.chrSize)
	c.chr = make([]byte, s)
	if n, err := rf.Read(c.chr); n != s || err != nil {
		return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading CHR ROM (read %d, wanted %d): %w", n, s, err))
	}

	if c.h.hasPlayChoice() {
		c.pcInstROM = make([]byte, PC_INST_SIZE)
		if n, err := rf.Read(c.pcInstROM); n != PC_INST_SIZE || err != nil {
			return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading PlayChoice INST ROM: %w", err))
		}
		c.pcPROM = &PlayChoicePROM{}
		buf := make([]byte, PC_PROM_SIZE)
		if n, err := rf.Read(buf); n != PC_PROM_SIZE || err != nil {
			return nil, errs.New(errs.MalformedROM, "cartridge.Load", fmt.Errorf("reading PlayChoice PROM: %w", err))
		}
		copy(c.pcPROM.Data[:], buf)
	}

	return c, nil
}

func (c *Cartridge) NumPrgBlocks() uint8 {
	return c.h.prgSize
}

func (c *Cartridge) HasTrainer() bool {
	return c.h.hasTrainer()
}

func (c *Cartridge) Trainer() []byte {
	return c.trainer
}

func (c *Cartridge) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", c.h)
	fmt.Fprintf(&sb, "PRG: %d bytes, CHR: %d bytes\n", len(c.prg), len(c.chr))
	return sb.String()
}

// PrgRead/PrgWrite/ChrRead/ChrWrite give mapper implementations raw
// access to the underlying ROM banks; bank selection and windowing
// into CPU/PPU address space is the mapper's job, not the
// cartridge's.
func (c *Cartridge) PrgRead(addr uint16) uint8 {
	if int(addr) >= len(c.prg) {
		return 0
	}
	return c.prg[addr]
}

func (c *Cartridge) PrgWrite(addr uint16, val uint8) {
	if int(addr) < len(c.prg) {
		c.prg[addr] = val
	}
}

func (c *Cartridge) ChrRead(addr uint16) uint8 {
	if int(addr) >= len(c.chr) {
		return 0
	}
	return c.chr[addr]
}

func (c *Cartridge) ChrWrite(addr uint16, val uint8) {
	if int(addr) < len(c.chr) {
		c.chr[addr] = val
	}
}

func (c *Cartridge) MapperNum() uint16 {
	return c.h.MapperNum()
}

func (c *Cartridge) MirroringMode() uint8 {
	return c.h.MirroringMode()
}

func (c *Cartridge) HasSaveRAM() bool {
	return c.h.hasPrgRAM()
}
