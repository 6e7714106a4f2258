package knocker

import (
	"fmt"
	"runtime"
	"time"
)

const (
	DefaultCooperativeInterval = 2000 * time.Millisecond
	DefaultThreadedInterval    = 1100 * time.Millisecond
)

// Scheduler calls knock on its own cadence until shutdown delivers a value or
// knock fails. Loop returns nil on shutdown.
type Scheduler interface {
	fmt.Stringer
	Loop(shutdown <-chan struct{}, knock func() error) error
}

// Cooperative waits up to Every for shutdown and knocks when the wait times out.
type Cooperative struct {
	Every time.Duration
}

func (c Cooperative) String() string { return "cooperative/" + c.Every.String() }

func (c Cooperative) Loop(shutdown <-chan struct{}, knock func() error) error {
	timer := time.NewTimer(c.Every)
	defer timer.Stop()

	for {
		select {
		case <-shutdown:
			return nil
		case <-timer.C:
			if err := knock(); err != nil {
				return err
			}
			timer.Reset(c.Every)
		}
	}
}

// Threaded checks for shutdown without blocking, knocks, then sleeps Every.
// The loop holds its OS thread for its whole life.
type Threaded struct {
	Every time.Duration
}

func (t Threaded) String() string { return "threaded/" + t.Every.String() }

func (t Threaded) Loop(shutdown <-chan struct{}, knock func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-shutdown:
			return nil
		default:
		}
		if err := knock(); err != nil {
			return err
		}
		time.Sleep(t.Every)
	}
}
