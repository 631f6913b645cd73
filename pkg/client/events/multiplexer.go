package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStopped is returned by Next once Stop has been called
	ErrStopped = errors.New("multiplexer stopped")

	// ErrInputClosed is reported once when the input channel closes
	ErrInputClosed = errors.New("input stream closed")

	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("multiplexer already started")
)

// FrameSource yields decoded server messages. Receive returns a
// *client.FrameError for a frame that could not be read and
// client.ErrClosed once the connection is gone.
type FrameSource interface {
	Receive(ctx context.Context) (*protocol.ServerMsg, error)
}

// Config describes the sources of a Multiplexer. A nil Input or Frames
// source and a zero interval are simply never ready.
type Config struct {
	Input          <-chan Input
	Frames         FrameSource
	UpdateInterval time.Duration
	RenderInterval time.Duration
	Logger         *zap.Logger
}

// Multiplexer forwards whichever source is ready first into a single
// unbounded queue
type Multiplexer struct {
	cfg    Config
	logger *zap.Logger
	queue  *Queue[Event]

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	stopOnce sync.Once
	stopErr  error
}

// New returns a multiplexer over the sources in cfg. Nothing runs until Start.
func New(cfg Config) *Multiplexer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multiplexer{
		cfg:    cfg,
		logger: logger.Named("events"),
		queue:  NewQueue[Event](),
	}
}

// Start launches the select loop and the transport reader. They run until
// ctx is cancelled or Stop is called.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	m.group = g

	frames := make(chan Event)
	if m.cfg.Frames != nil {
		g.Go(func() error { return m.readFrames(gctx, frames) })
	}
	g.Go(func() error { return m.loop(gctx, frames) })
	return nil
}

// Next returns the next event in selection order
func (m *Multiplexer) Next(ctx context.Context) (Event, error) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return Event{}, ErrStopped
	}

	ev, err := m.queue.Pop(ctx)
	if errors.Is(err, ErrQueueClosed) {
		return Event{}, ErrStopped
	}
	return ev, err
}

// Pending returns the number of events waiting to be taken by Next
func (m *Multiplexer) Pending() int {
	return m.queue.Len()
}

// Stop cancels the sources and waits for every goroutine to exit. Calling
// it again returns the first result.
func (m *Multiplexer) Stop() error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		cancel, group := m.cancel, m.group
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if group != nil {
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				m.stopErr = err
			}
		}
		m.queue.Close()
	})
	return m.stopErr
}

func (m *Multiplexer) loop(ctx context.Context, frames <-chan Event) error {
	var updates, renders <-chan time.Time
	if m.cfg.UpdateInterval > 0 {
		t := time.NewTicker(m.cfg.UpdateInterval)
		defer t.Stop()
		updates = t.C
	}
	if m.cfg.RenderInterval > 0 {
		t := time.NewTicker(m.cfg.RenderInterval)
		defer t.Stop()
		renders = t.C
	}

	input := m.cfg.Input
	for {
		select {
		case <-ctx.Done():
			return nil
		case in, ok := <-input:
			if !ok {
				input = nil
				m.logger.Debug("input stream closed")
				m.queue.Push(Error(ErrInputClosed))
				continue
			}
			if in.Kind == InputErr {
				m.logger.Warn("input error", zap.Error(in.Err))
			}
			m.queue.Push(in.event())
		case ev := <-frames:
			m.queue.Push(ev)
		case now := <-updates:
			m.queue.Push(Tick(now))
		case now := <-renders:
			m.queue.Push(Render(now))
		}
	}
}

// readFrames turns every Receive result into an event. It emits exactly one
// ServerClose and then stops, leaving the loop serving input and timers.
func (m *Multiplexer) readFrames(ctx context.Context, out chan<- Event) error {
	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		msg, err := m.cfg.Frames.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var frameErr *client.FrameError
		switch {
		case err == nil:
			if !send(Recv(msg)) {
				return nil
			}
		case errors.As(err, &frameErr):
			m.logger.Warn("dropping unreadable frame", zap.Error(err))
			if !send(TransportError(err)) {
				return nil
			}
		case errors.Is(err, client.ErrClosed):
			m.logger.Info("connection closed by server")
			send(ServerClose())
			return nil
		default:
			m.logger.Error("transport failed", zap.Error(err))
			if send(TransportError(fmt.Errorf("receive: %w", err))) {
				send(ServerClose())
			}
			return nil
		}
	}
}
