package led

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// StripFreq is the SPI clock used to bit-bang WS2812 timing through nrzled.
const StripFreq = 2500 * physic.KiloHertz

// Drawer adapts a periph display.Drawer (a pixel strip or a terminal) to Driver.
// Pixels are laid out as a single row, in raster order unless a Layout is set.
type Drawer struct {
	mu     sync.Mutex
	drawer display.Drawer
	count  int
	port   io.Closer
	closed bool

	layout Layout
	strip  []byte
}

// NewDrawer wraps d for count pixels. port, if non-nil, is closed on Close.
func NewDrawer(d display.Drawer, count int, port io.Closer) (*Drawer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	return &Drawer{drawer: d, count: count, port: port, strip: make([]byte, count*3)}, nil
}

// SetLayout changes how raster frames are laid onto the strip.
func (d *Drawer) SetLayout(l Layout) {
	d.mu.Lock()
	d.layout = l
	d.mu.Unlock()
}

// NewStrip drives count WS2812 pixels over the given SPI port.
func NewStrip(p spi.Port, count int) (*Drawer, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: count,
		Channels:  3,
		Freq:      StripFreq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, fmt.Errorf("nrzled halt: %w", err)
	}
	return NewDrawer(d, count, nil)
}

// OpenStrip opens the named SPI port ("" for the first one available).
// host.Init must have been called.
func OpenStrip(portName string, count int) (*Drawer, error) {
	p, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", portName, err)
	}
	d, err := NewStrip(p, count)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

// NewConsole prints each frame as a row of ANSI coloured cells.
func NewConsole(count int) (*Drawer, error) {
	return NewDrawer(screen.New(count), count, nil)
}

func (d *Drawer) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if len(rgb) != d.count*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), d.count)
	}
	d.layout.Remap(d.strip, rgb)
	px := d.strip
	im := image.NewNRGBA(image.Rect(0, 0, d.count, 1))
	for x := 0; x < d.count; x++ {
		im.SetNRGBA(x, 0, color.NRGBA{R: px[x*3], G: px[x*3+1], B: px[x*3+2], A: 255})
	}
	if err := d.drawer.Draw(d.drawer.Bounds(), im, image.Point{}); err != nil {
		return fmt.Errorf("%s draw: %w", d.drawer, err)
	}
	return nil
}

func (d *Drawer) String() string {
	return d.drawer.String()
}

func (d *Drawer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.drawer.Halt()
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
