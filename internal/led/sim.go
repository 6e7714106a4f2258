package led

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sim prints a compact summary of each frame (first pixel & avg), useful for headless runs.
type Sim struct {
	mu     sync.Mutex
	count  int
	closed bool
	log    zerolog.Logger
}

func NewSim() *Sim {
	return &Sim{log: log.With().Str("driver", "sim").Logger()}
}

func (d *Sim) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if len(rgb)%3 != 0 || len(rgb) == 0 {
		return fmt.Errorf("sim: rgb length %d is not a multiple of 3", len(rgb))
	}
	d.count++

	var r, g, b int
	for i := 0; i < len(rgb); i += 3 {
		r += int(rgb[i])
		g += int(rgb[i+1])
		b += int(rgb[i+2])
	}
	n := len(rgb) / 3
	d.log.Debug().
		Int("frame", d.count).
		Ints("avg", []int{r / n, g / n, b / n}).
		Ints("first", []int{int(rgb[0]), int(rgb[1]), int(rgb[2])}).
		Msg("frame")
	return nil
}

// Frames returns how many frames were written.
func (d *Sim) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *Sim) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
