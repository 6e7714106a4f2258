package led

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const (
	// SenseHatAddr is the i2c address of the Sense HAT's AVR LED controller.
	SenseHatAddr uint16 = 0x46

	senseHatSide   = 8
	senseHatPixels = senseHatSide * senseHatSide
	// register byte + 8 rows of (8 R, 8 G, 8 B)
	senseHatBufLen = 1 + senseHatPixels*3
)

// SenseHat drives the 8x8 matrix on a Raspberry Pi Sense HAT.
type SenseHat struct {
	mu  sync.Mutex
	bus i2c.Bus
	dev i2c.Dev
	buf [senseHatBufLen]byte
	log zerolog.Logger
}

// OpenSenseHat opens the named i2c bus ("" for the first one available).
// host.Init must have been called.
func OpenSenseHat(busName string, addr uint16) (*SenseHat, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return NewSenseHat(bus, addr), nil
}

// NewSenseHat takes ownership of bus; Close closes it if it is an io.Closer.
func NewSenseHat(bus i2c.Bus, addr uint16) *SenseHat {
	if addr == 0 {
		addr = SenseHatAddr
	}
	return &SenseHat{
		bus: bus,
		dev: i2c.Dev{Bus: bus, Addr: addr},
		log: log.With().Str("driver", "sensehat").Uint16("addr", addr).Logger(),
	}
}

// encode maps interleaved RGB into the controller's row-planar layout. The
// controller takes 6-bit channels, hence the divide by 4.
func (d *SenseHat) encode(rgb []byte) {
	for i := 0; i < senseHatPixels; i++ {
		row := i / senseHatSide
		col := i % senseHatSide
		base := 1 + row*senseHatSide*3 + col
		d.buf[base] = rgb[i*3+0] / 4
		d.buf[base+senseHatSide] = rgb[i*3+1] / 4
		d.buf[base+2*senseHatSide] = rgb[i*3+2] / 4
	}
}

func (d *SenseHat) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus == nil {
		return ErrClosed
	}
	if len(rgb) != senseHatPixels*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), senseHatPixels)
	}
	d.encode(rgb)

	n, err := d.dev.Write(d.buf[:])
	if err != nil {
		return fmt.Errorf("i2c write: %w", err)
	}
	if n != senseHatBufLen {
		return fmt.Errorf("i2c write: %w (%d of %d)", io.ErrShortWrite, n, senseHatBufLen)
	}
	return nil
}

// SelfTest flashes a dim white across the panel, then blanks it.
func (d *SenseHat) SelfTest() error {
	rgb := make([]byte, senseHatPixels*3)
	for i := range rgb {
		rgb[i] = 12
	}
	if err := d.Write(rgb); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	for i := range rgb {
		rgb[i] = 0
	}
	if err := d.Write(rgb); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	d.log.Info().Msg("self test done")
	return nil
}

// Close blanks the panel and releases the bus.
func (d *SenseHat) Close() error {
	if err := d.Write(make([]byte, senseHatPixels*3)); err != nil && !errors.Is(err, ErrClosed) {
		d.log.Warn().Err(err).Msg("blank on close")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	bus := d.bus
	d.bus = nil
	if c, ok := bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
