// Package signals turns OS interrupts into shutdown notifications.
package signals

import (
	"errors"
	"os"
	"os/signal"
	"sync"

	"github.com/rs/zerolog/log"
)

// Redundancy is how many notifications each interrupt produces, so that
// several independent receivers on the same channel each see one.
const Redundancy = 3

var ErrAlreadyInstalled = errors.New("signals: interrupt handler already installed")

// Notifier abstracts signal registration so tests can inject signals.
type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
}

type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

// Catcher installs one handler for its lifetime.
type Catcher struct {
	once     sync.Once
	notifier Notifier
	signals  []os.Signal
}

func NewCatcher(n Notifier, sig ...os.Signal) *Catcher {
	if len(sig) == 0 {
		sig = shutdownSignals
	}
	return &Catcher{notifier: n, signals: sig}
}

// Install registers the handler and returns the shutdown channel. Every call
// after the first returns ErrAlreadyInstalled.
func (c *Catcher) Install() (<-chan struct{}, error) {
	var out <-chan struct{}
	err := ErrAlreadyInstalled
	c.once.Do(func() {
		out = c.install()
		err = nil
	})
	return out, err
}

func (c *Catcher) install() <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	out := make(chan struct{}, Redundancy*4)
	c.notifier.Notify(sigs, c.signals...)

	go func() {
		for sig := range sigs {
			log.Warn().Str("signal", sig.String()).Msg("got interrupt")
			for i := 0; i < Redundancy; i++ {
				// a full buffer already holds enough notifications
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

var process = NewCatcher(osNotifier{})

// Catch installs the process-wide interrupt handler. It may succeed only once
// per process.
func Catch() (<-chan struct{}, error) {
	return process.Install()
}
