// Package knocker produces randomized frames on a fixed cadence.
//
// A Knocker owns the frame generation; a Scheduler decides when it knocks.
// Cooperative races a timer against the shutdown channel on a goroutine,
// Threaded polls shutdown then sleeps on a goroutine locked to its own OS
// thread.
package knocker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/matrixd/internal/matrix"
)

var ErrDisconnected = errors.New("knocker: frame consumer is gone")

// Sink receives generated frames.
type Sink interface {
	Send(f matrix.Frame) error
}

// ChanSink sends frames on a channel until gone is closed.
type ChanSink struct {
	frames chan<- matrix.Frame
	gone   <-chan struct{}
}

func NewChanSink(frames chan<- matrix.Frame, gone <-chan struct{}) *ChanSink {
	return &ChanSink{frames: frames, gone: gone}
}

func (s *ChanSink) Send(f matrix.Frame) error {
	select {
	case <-s.gone:
		return ErrDisconnected
	default:
	}
	select {
	case s.frames <- f:
		return nil
	case <-s.gone:
		return ErrDisconnected
	}
}

type Knocker struct {
	name  string
	sched Scheduler
	src   matrix.Source
	log   zerolog.Logger
}

// New returns a knocker driven by sched. A nil src uses matrix.NewSource.
func New(name string, sched Scheduler, src matrix.Source) *Knocker {
	if src == nil {
		src = matrix.NewSource()
	}
	return &Knocker{
		name:  name,
		sched: sched,
		src:   src,
		log:   log.With().Str("component", "knocker").Str("knocker", name).Logger(),
	}
}

// NewCooperative knocks every interval; zero or less means DefaultCooperativeInterval.
func NewCooperative(every time.Duration) *Knocker {
	if every <= 0 {
		every = DefaultCooperativeInterval
	}
	return New("async_knocker", Cooperative{Every: every}, nil)
}

// NewThreaded knocks every interval; zero or less means DefaultThreadedInterval.
func NewThreaded(every time.Duration) *Knocker {
	if every <= 0 {
		every = DefaultThreadedInterval
	}
	return New("sync_knocker", Threaded{Every: every}, nil)
}

func (k *Knocker) Name() string { return k.name }

func (k *Knocker) String() string {
	return fmt.Sprintf("%s(%s)", k.name, k.sched)
}

// Start launches the knocker in the background. It stops after the first
// notification on shutdown, or when sink reports an error.
func (k *Knocker) Start(sink Sink, shutdown <-chan struct{}) *Handle {
	h := &Handle{done: make(chan struct{})}
	k.log.Info().Stringer("schedule", k.sched).Msg("knocker starting")

	go func() {
		defer close(h.done)
		err := k.sched.Loop(shutdown, func() error {
			k.log.Debug().Msg("knock")
			if err := sink.Send(matrix.Random(k.src)); err != nil {
				return err
			}
			h.sent.Add(1)
			return nil
		})
		if err != nil {
			h.err = fmt.Errorf("%s: %w", k.name, err)
			lvl := zerolog.ErrorLevel
			if errors.Is(err, ErrDisconnected) {
				lvl = zerolog.InfoLevel
			}
			k.log.WithLevel(lvl).Err(err).Uint64("sent", h.Sent()).Msg("knocker stopped")
			return
		}
		k.log.Info().Uint64("sent", h.Sent()).Msg("knocker stopped")
	}()
	return h
}

// Handle tracks a started knocker.
type Handle struct {
	done chan struct{}
	sent atomic.Uint64
	err  error
}

// Done is closed once the knocker has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the knocker returns. A nil error means it saw shutdown.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Sent returns the number of frames delivered to the sink.
func (h *Handle) Sent() uint64 { return h.sent.Load() }
