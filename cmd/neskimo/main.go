// Command neskimo is the ebiten-driven host for the emulator core: it
// loads a ROM, wires up a console, and pumps its frame buffer to a
// window while polling the keyboard for controller input.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/patlillis/neskimo/cartridge"
	"github.com/patlillis/neskimo/console"
	"github.com/patlillis/neskimo/input"
	"github.com/patlillis/neskimo/mappers"
)

const (
	screenWidth  = 256
	screenHeight = 240
)

var (
	romPath   = flag.String("rom", "", "path to the .nes ROM to run")
	initialPC = flag.String("initial-pc", "", "override the reset vector (hex, e.g. C000)")
	logFile   = flag.String("log-file", "", "write a per-instruction trace to this file")
	dumpPC    = flag.String("dump-pc", "", "dump RAM when PC reaches this address (hex)")
)

func main() {
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}

	cart, err := cartridge.Load(*romPath)
	if err != nil {
		log.Printf("malformed ROM: %v", err)
		os.Exit(2)
	}

	m, err := mappers.Get(cart)
	if err != nil {
		log.Printf("unsupported mapper: %v", err)
		os.Exit(2)
	}

	opts := console.Options{LogFile: *logFile}
	if v, ok := parseHexFlag(*initialPC); ok {
		opts.InitialPC = &v
	}
	if v, ok := parseHexFlag(*dumpPC); ok {
		opts.MemDumpPC = &v
	}

	pads := input.New()
	c, err := console.New(cart, m, pads, opts)
	if err != nil {
		log.Printf("console init failed: %v", err)
		os.Exit(2)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	ebiten.SetWindowSize(screenWidth*2, screenHeight*2)
	ebiten.SetWindowTitle("neskimo")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	game := &gameView{console: c}
	if err := ebiten.RunGame(game); err != nil {
		log.Printf("display error: %v", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	if err := <-errCh; err != nil {
		log.Printf("emulation error: %v", err)
		os.Exit(1)
	}
}

func parseHexFlag(s string) (uint16, bool) {
	if s == "" {
		return 0, false
	}
	var v uint16
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		log.Fatalf("invalid hex address %q: %v", s, err)
	}
	return v, true
}

// gameView adapts a *console.Console to ebiten.Game; the console
// itself stays free of any ebiten dependency so the core emulator can
// be driven headlessly (tests, trace tooling) without pulling in a
// display backend.
type gameView struct {
	console *console.Console
}

func (g *gameView) Update() error { return nil }

func (g *gameView) Draw(screen *ebiten.Image) {
	fb := g.console.FrameBuffer()
	img := image.NewRGBA(image.Rect(0, 0, screenWidth, screenHeight))
	for i, px := range fb {
		img.Pix[i*4+0] = uint8(px >> 24)
		img.Pix[i*4+1] = uint8(px >> 16)
		img.Pix[i*4+2] = uint8(px >> 8)
		img.Pix[i*4+3] = uint8(px)
	}
	screen.WritePixels(img.Pix)
}

func (g *gameView) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}
