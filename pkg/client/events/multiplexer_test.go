package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/client/keymap"
	"github.com/aeolun/marain/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func start(t *testing.T, cfg Config) *Multiplexer {
	t.Helper()
	m := New(cfg)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func next(t *testing.T, m *Multiplexer) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := m.Next(ctx)
	require.NoError(t, err)
	return ev
}

func assertQuiet(t *testing.T, m *Multiplexer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ev, err := m.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "unexpected %s event", ev.Kind)
}

func TestKeysKeepProgramOrder(t *testing.T) {
	input := make(chan Input, 16)
	m := start(t, Config{Input: input})

	for _, r := range "hello" {
		input <- Input{Kind: InputKey, Key: keymap.Char(r)}
	}

	var got []rune
	for range "hello" {
		ev := next(t, m)
		require.Equal(t, KindKey, ev.Kind)
		got = append(got, ev.Key.Rune)
	}
	assert.Equal(t, "hello", string(got))
}

func TestPendingCountsQueuedEvents(t *testing.T) {
	input := make(chan Input, 16)
	m := start(t, Config{Input: input})
	assert.Zero(t, m.Pending())

	for _, r := range "abc" {
		input <- Input{Kind: InputKey, Key: keymap.Char(r)}
	}
	require.Eventually(t, func() bool { return m.Pending() == 3 }, 2*time.Second, time.Millisecond)

	next(t, m)
	assert.Equal(t, 2, m.Pending())
}

func TestResizeAndInputError(t *testing.T) {
	input := make(chan Input, 2)
	m := start(t, Config{Input: input})

	input <- Input{Kind: InputResize, Width: 80, Height: 24}
	ev := next(t, m)
	assert.Equal(t, Resize(80, 24), ev)

	boom := errors.New("tty hiccup")
	input <- Input{Kind: InputErr, Err: boom}
	ev = next(t, m)
	assert.Equal(t, KindError, ev.Kind)
	assert.ErrorIs(t, ev.Err, boom)

	// still serving input after the error
	input <- Input{Kind: InputKey, Key: keymap.Special(keymap.CodeEnter)}
	assert.Equal(t, KindKey, next(t, m).Kind)
}

func TestInputCloseReportedOnce(t *testing.T) {
	input := make(chan Input)
	m := start(t, Config{Input: input})

	close(input)
	ev := next(t, m)
	assert.Equal(t, KindError, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrInputClosed)
	assertQuiet(t, m)
}

func TestFramesBecomeEvents(t *testing.T) {
	sess := client.NewMockSession()
	m := start(t, Config{Frames: sess})

	msg := &protocol.ServerMsg{Body: &protocol.NotificationBody{Body: "hi"}}
	sess.SimulateIncoming(msg)
	ev := next(t, m)
	assert.Equal(t, KindRecv, ev.Kind)
	assert.Same(t, msg, ev.Msg)

	sess.SimulateFrameError(errors.New("bad tag"))
	ev = next(t, m)
	assert.Equal(t, KindTransportError, ev.Kind)
	var frameErr *client.FrameError
	assert.ErrorAs(t, ev.Err, &frameErr)

	// recoverable: frames keep flowing
	sess.SimulateIncoming(&protocol.ServerMsg{Body: &protocol.EmptyBody{}})
	assert.Equal(t, KindRecv, next(t, m).Kind)
}

func TestServerCloseEmittedOnce(t *testing.T) {
	sess := client.NewMockSession()
	input := make(chan Input, 1)
	m := start(t, Config{Input: input, Frames: sess})

	sess.SimulateRemoteClose()
	assert.Equal(t, KindServerClose, next(t, m).Kind)

	// transport reading stopped but input is still served
	input <- Input{Kind: InputKey, Key: keymap.Char('q')}
	ev := next(t, m)
	assert.Equal(t, KindKey, ev.Kind)
	assertQuiet(t, m)
}

type failingSource struct{ err error }

func (f failingSource) Receive(context.Context) (*protocol.ServerMsg, error) {
	return nil, f.err
}

func TestUnknownTransportFailureClosesGracefully(t *testing.T) {
	boom := errors.New("socket exploded")
	m := start(t, Config{Frames: failingSource{err: boom}})

	ev := next(t, m)
	assert.Equal(t, KindTransportError, ev.Kind)
	assert.ErrorIs(t, ev.Err, boom)
	assert.Equal(t, KindServerClose, next(t, m).Kind)
	assertQuiet(t, m)
}

func TestTimersEmitTicks(t *testing.T) {
	m := start(t, Config{
		UpdateInterval: 5 * time.Millisecond,
		RenderInterval: 7 * time.Millisecond,
	})

	seen := map[Kind]int{}
	for seen[KindTick] < 3 || seen[KindRender] < 3 {
		ev := next(t, m)
		require.Contains(t, []Kind{KindTick, KindRender}, ev.Kind)
		assert.False(t, ev.Time.IsZero())
		seen[ev.Kind]++
	}
}

func TestTimersDoNotStarveInput(t *testing.T) {
	input := make(chan Input, 1)
	m := start(t, Config{
		Input:          input,
		UpdateInterval: time.Millisecond,
		RenderInterval: time.Millisecond,
	})

	input <- Input{Kind: InputKey, Key: keymap.Char('x')}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("key never delivered")
		default:
		}
		if ev := next(t, m); ev.Kind == KindKey {
			assert.Equal(t, 'x', ev.Key.Rune)
			return
		}
	}
}

func TestStop(t *testing.T) {
	sess := client.NewMockSession()
	m := New(Config{Frames: sess, UpdateInterval: time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop(), "stop is idempotent")

	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, m.Start(context.Background()), ErrStopped)
}

func TestStopWithoutStart(t *testing.T) {
	m := New(Config{})
	require.NoError(t, m.Stop())
	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestParentContextCancelStopsLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(Config{Frames: client.NewMockSession(), RenderInterval: time.Millisecond})
	require.NoError(t, m.Start(ctx))
	cancel()
	require.NoError(t, m.Stop())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "server_close", KindServerClose.String())
	assert.Equal(t, "kind_42", Kind(42).String())
}
