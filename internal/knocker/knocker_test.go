package knocker

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/matrixd/internal/matrix"
)

const tick = 20 * time.Millisecond

type counter struct{ n uint64 }

func (c *counter) Uint64() uint64 {
	c.n++
	return c.n * 0x0101010101010101
}

func schedulers() map[string]Scheduler {
	return map[string]Scheduler{
		"cooperative": Cooperative{Every: tick},
		"threaded":    Threaded{Every: tick},
	}
}

func TestShutdownBeforeFirstTick(t *testing.T) {
	for name, sched := range schedulers() {
		t.Run(name, func(t *testing.T) {
			frames := make(chan matrix.Frame, 16)
			shutdown := make(chan struct{}, 1)
			shutdown <- struct{}{}

			h := New(name, sched, nil).Start(NewChanSink(frames, nil), shutdown)
			require.NoError(t, h.Wait())

			assert.Zero(t, h.Sent())
			assert.Len(t, frames, 0)
		})
	}
}

func TestShutdownBoundsFrames(t *testing.T) {
	for name, sched := range schedulers() {
		t.Run(name, func(t *testing.T) {
			frames := make(chan matrix.Frame, 256)
			shutdown := make(chan struct{}, 1)

			h := New(name, sched, nil).Start(NewChanSink(frames, nil), shutdown)
			require.Eventually(t, func() bool { return h.Sent() >= 3 }, time.Second, time.Millisecond)

			n := h.Sent()
			shutdown <- struct{}{}
			require.NoError(t, h.Wait())

			assert.LessOrEqual(t, h.Sent(), n+1)
			assert.Equal(t, int(h.Sent()), len(frames))
		})
	}
}

func TestEndToEnd(t *testing.T) {
	for name, sched := range schedulers() {
		t.Run(name, func(t *testing.T) {
			frames := make(chan matrix.Frame, 256)
			shutdown := make(chan struct{}, 1)

			h := New(name, sched, nil).Start(NewChanSink(frames, nil), shutdown)

			time.Sleep(3 * tick)
			assert.GreaterOrEqual(t, len(frames), 1)

			shutdown <- struct{}{}
			select {
			case <-h.Done():
			case <-time.After(time.Second):
				t.Fatal("knocker did not stop")
			}
			got := len(frames)

			time.Sleep(3 * tick)
			assert.Equal(t, got, len(frames), "no frames after shutdown")

			for len(frames) > 0 {
				f := <-frames
				assert.Len(t, f.R, 64)
				assert.Len(t, f.G, 64)
				assert.Len(t, f.B, 64)
			}
		})
	}
}

func TestDisconnectStopsKnocker(t *testing.T) {
	for name, sched := range schedulers() {
		t.Run(name, func(t *testing.T) {
			gone := make(chan struct{})
			close(gone)

			h := New(name, sched, nil).Start(NewChanSink(make(chan matrix.Frame), gone), make(chan struct{}))

			select {
			case <-h.Done():
			case <-time.After(time.Second):
				t.Fatal("knocker did not stop")
			}
			assert.ErrorIs(t, h.Wait(), ErrDisconnected)
			assert.Zero(t, h.Sent())
		})
	}
}

func TestDisconnectWhileBlocked(t *testing.T) {
	gone := make(chan struct{})
	h := New("blocked", Cooperative{Every: tick}, nil).
		Start(NewChanSink(make(chan matrix.Frame), gone), make(chan struct{}))

	time.Sleep(3 * tick)
	close(gone)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("knocker did not stop")
	}
	assert.ErrorIs(t, h.Wait(), ErrDisconnected)
}

func TestFramesUseSource(t *testing.T) {
	frames := make(chan matrix.Frame, 16)
	shutdown := make(chan struct{}, 1)

	h := New("seeded", Cooperative{Every: tick}, &counter{}).Start(NewChanSink(frames, nil), shutdown)
	f := <-frames
	shutdown <- struct{}{}
	require.NoError(t, h.Wait())

	assert.Equal(t, byte(1), f.R[0])
	assert.Equal(t, byte(1), f.R[7])
	assert.Equal(t, byte(2), f.R[8])
	assert.Equal(t, byte(9), f.G[0])
	assert.Equal(t, byte(17), f.B[0])
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "async_knocker", NewCooperative(0).Name())
	assert.Equal(t, "sync_knocker", NewThreaded(0).Name())
	assert.Equal(t, "async_knocker(cooperative/2s)", NewCooperative(0).String())
	assert.Equal(t, "sync_knocker(threaded/1.1s)", NewThreaded(-time.Second).String())
	assert.Equal(t, "async_knocker(cooperative/500ms)", NewCooperative(500*time.Millisecond).String())
	assert.Equal(t, "sync_knocker(threaded/3s)", NewThreaded(3*time.Second).String())
}

func TestDisconnectLoggedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	gone := make(chan struct{})
	close(gone)
	h := New("quiet", Threaded{Every: tick}, nil).Start(NewChanSink(make(chan matrix.Frame), gone), make(chan struct{}))
	assert.ErrorIs(t, h.Wait(), ErrDisconnected)

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, "knocker stopped")
	assert.NotContains(t, out, `"level":"error"`)
}
