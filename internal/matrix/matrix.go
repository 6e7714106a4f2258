package matrix

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matrixd/internal/led"
)

const housekeeping = time.Second

// Matrix consumes frames and pushes them to an LED driver. Knockers send on
// Frames(); Gone() is closed once Run has returned.
type Matrix struct {
	mu        sync.RWMutex
	drv       led.Driver
	frames    chan Frame
	gone      chan struct{}
	observers map[string]chan<- Frame
	last      Frame
	shown     uint64
	dropped   uint64

	log zerolog.Logger
}

func New(drv led.Driver, buffer int) *Matrix {
	if buffer < 0 {
		buffer = 0
	}
	return &Matrix{
		drv:       drv,
		frames:    make(chan Frame, buffer),
		gone:      make(chan struct{}),
		observers: map[string]chan<- Frame{},
		log:       log.With().Str("component", "matrix").Logger(),
	}
}

func (m *Matrix) Frames() chan<- Frame { return m.frames }

func (m *Matrix) Gone() <-chan struct{} { return m.gone }

// Run blocks until a shutdown notification arrives. Blanking the device is
// left to the driver's Close.
func (m *Matrix) Run(shutdown <-chan struct{}) error {
	defer close(m.gone)

	tick := time.NewTicker(housekeeping)
	defer tick.Stop()

	for {
		select {
		case <-shutdown:
			m.log.Info().Uint64("shown", m.Shown()).Msg("matrix stopping")
			return nil

		case f := <-m.frames:
			m.show(f)

		case <-tick.C:
			m.mu.RLock()
			m.log.Debug().
				Uint64("shown", m.shown).
				Uint64("dropped", m.dropped).
				Int("observers", len(m.observers)).
				Int("queued", len(m.frames)).
				Msg("matrix status")
			m.mu.RUnlock()
		}
	}
}

func (m *Matrix) show(f Frame) {
	if err := m.drv.Write(f.RGB()); err != nil {
		m.log.Error().Err(err).Msg("driver write")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = f
	m.shown++
	m.broadcast(f)
}

// broadcast must be called with mu held.
func (m *Matrix) broadcast(f Frame) {
	for id, ch := range m.observers {
		select {
		case ch <- f:
		default:
			m.dropped++
			m.log.Debug().Str("observer", id).Msg("observer busy, frame dropped")
		}
	}
}

// AddObserver registers ch to receive every shown frame and returns its id.
func (m *Matrix) AddObserver(ch chan<- Frame) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.observers[id] = ch
	m.mu.Unlock()
	m.log.Info().Str("observer", id).Msg("observer added")
	return id
}

// RemoveObserver reports whether id was registered.
func (m *Matrix) RemoveObserver(id string) bool {
	m.mu.Lock()
	_, ok := m.observers[id]
	delete(m.observers, id)
	m.mu.Unlock()
	if ok {
		m.log.Info().Str("observer", id).Msg("observer removed")
	}
	return ok
}

// Last returns the most recently shown frame.
func (m *Matrix) Last() Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Matrix) Shown() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shown
}
