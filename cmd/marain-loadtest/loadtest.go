package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur."

var loremWords = strings.Fields(loremIpsum)

// Config describes one load test run
type Config struct {
	Server         string
	Clients        int
	Duration       time.Duration
	Rate           float64 // messages per second per client
	Room           string
	Ramp           time.Duration
	ReportInterval time.Duration
	Metrics        *client.Metrics
}

// Stats tracks performance across all bots
type Stats struct {
	connected      atomic.Int64
	connectFailed  atomic.Int64
	sent           atomic.Int64
	sendFailed     atomic.Int64
	echoed         atomic.Int64
	frameErrors    atomic.Int64
	disconnections atomic.Int64
	totalRoundTrip atomic.Int64 // microseconds
}

func (s *Stats) recordEcho(rtt time.Duration) {
	s.echoed.Add(1)
	s.totalRoundTrip.Add(rtt.Microseconds())
}

func (s *Stats) avgRoundTrip() time.Duration {
	n := s.echoed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.totalRoundTrip.Load()/n) * time.Microsecond
}

// Connected is the number of bots that logged in
func (s *Stats) Connected() int64 { return s.connected.Load() }

// Sent is the number of messages queued to the server
func (s *Stats) Sent() int64 { return s.sent.Load() }

// Echoed is the number of own messages that came back
func (s *Stats) Echoed() int64 { return s.echoed.Load() }

func (s *Stats) report(w io.Writer, elapsed time.Duration) {
	sent := s.sent.Load()
	fmt.Fprintf(w, "Stats: %d clients, %d sent (%.1f/s), %d echoed, %d failed, avg rtt %s, goroutines %d\n",
		s.connected.Load(), sent, float64(sent)/elapsed.Seconds(), s.echoed.Load(),
		s.sendFailed.Load(), s.avgRoundTrip().Round(time.Microsecond), runtime.NumGoroutine())
}

// PrintSummary writes the final results
func (s *Stats) PrintSummary(w io.Writer, d time.Duration) {
	sent := s.sent.Load()
	echoed := s.echoed.Load()
	fmt.Fprintln(w, "\n=== Final Results ===")
	fmt.Fprintf(w, "Clients: %d connected, %d failed to connect\n", s.connected.Load(), s.connectFailed.Load())
	fmt.Fprintf(w, "Duration: %s\n", d)
	fmt.Fprintf(w, "Messages sent: %d (%.1f/s)\n", sent, float64(sent)/d.Seconds())
	fmt.Fprintf(w, "Messages echoed: %d\n", echoed)
	fmt.Fprintf(w, "Send failures: %d\n", s.sendFailed.Load())
	fmt.Fprintf(w, "Frame errors: %d\n", s.frameErrors.Load())
	fmt.Fprintf(w, "Disconnections: %d\n", s.disconnections.Load())
	fmt.Fprintf(w, "Average round trip: %s\n", s.avgRoundTrip().Round(time.Microsecond))
	if sent > 0 {
		fmt.Fprintf(w, "Echo rate: %.1f%%\n", float64(echoed)/float64(sent)*100)
	}
}

// Run starts cfg.Clients bots, lets them post for cfg.Duration and waits
// for all of them to log off. Failing bots are counted, not fatal.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, out io.Writer) (*Stats, error) {
	if cfg.Clients <= 0 {
		return &Stats{}, errors.New("need at least one client")
	}
	if cfg.Rate <= 0 {
		return &Stats{}, errors.New("rate must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stats := &Stats{}
	ctx, cancel := context.WithTimeout(ctx, cfg.Ramp+cfg.Duration)
	defer cancel()

	stagger := cfg.Ramp / time.Duration(cfg.Clients)
	start := time.Now()

	var reporter sync.WaitGroup
	if cfg.ReportInterval > 0 && out != nil {
		reporter.Add(1)
		go func() {
			defer reporter.Done()
			ticker := time.NewTicker(cfg.ReportInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					stats.report(out, time.Since(start))
				}
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Clients; i++ {
		b := &bot{
			id:       i,
			nickname: generateUsername(i),
			cfg:      cfg,
			stats:    stats,
			logger:   logger.With(zap.Int("bot", i)),
			pending:  make(map[int]time.Time),
		}
		g.Go(func() error {
			b.run(gctx)
			return nil
		})

		if stagger > 0 {
			select {
			case <-time.After(stagger):
			case <-gctx.Done():
			}
		}
	}

	err := g.Wait()
	cancel()
	reporter.Wait()
	return stats, err
}

// generateUsername glues fragments of two random words to a bot number
func generateUsername(id int) string {
	w1 := loremWords[rand.Intn(len(loremWords))]
	w2 := loremWords[rand.Intn(len(loremWords))]
	name := strings.ToLower(w1[:min(len(w1), 4)] + w2[:min(len(w2), 4)])
	name = strings.Trim(name, ".,")
	return name + strconv.Itoa(id)
}

type bot struct {
	id       int
	nickname string
	cfg      Config
	stats    *Stats
	logger   *zap.Logger

	mu      sync.Mutex
	seq     int
	pending map[int]time.Time
}

func (b *bot) run(ctx context.Context) {
	session, login, err := client.Handshake(ctx, b.cfg.Server, b.nickname, client.Options{
		Logger:  b.logger,
		Metrics: b.cfg.Metrics,
	})
	if err != nil {
		if ctx.Err() == nil {
			b.stats.connectFailed.Add(1)
			b.logger.Warn("connect failed", zap.Error(err))
		}
		return
	}
	defer session.Close()
	b.stats.connected.Add(1)

	token := login.Token
	if b.cfg.Room != "" {
		move := protocol.ClientMsg{Token: &token, Body: &protocol.MoveBody{Target: b.cfg.Room}, Timestamp: time.Now()}
		if err := session.Send(move); err != nil {
			b.logger.Warn("move failed", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.read(gctx, session) })
	g.Go(func() error { return b.post(gctx, session, token) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		b.logger.Info("bot stopped", zap.Error(err))
	}
}

func (b *bot) post(ctx context.Context, session client.Transport, token string) error {
	limiter := rate.NewLimiter(rate.Limit(b.cfg.Rate), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		b.mu.Lock()
		b.seq++
		seq := b.seq
		b.pending[seq] = time.Now()
		b.mu.Unlock()

		msg := protocol.ClientMsg{
			Token:     &token,
			Body:      &protocol.SendToRoomBody{Contents: chatter(seq)},
			Timestamp: time.Now(),
		}
		if err := session.Send(msg); err != nil {
			b.stats.sendFailed.Add(1)
			b.mu.Lock()
			delete(b.pending, seq)
			b.mu.Unlock()
			if errors.Is(err, client.ErrClosed) {
				return err
			}
			continue
		}
		b.stats.sent.Add(1)
	}
}

func (b *bot) read(ctx context.Context, session client.Transport) error {
	for {
		msg, err := session.Receive(ctx)
		var frameErr *client.FrameError
		switch {
		case err == nil:
			b.handle(msg)
		case errors.As(err, &frameErr):
			b.stats.frameErrors.Add(1)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			b.stats.disconnections.Add(1)
			return err
		}
	}
}

func (b *bot) handle(msg *protocol.ServerMsg) {
	body, ok := msg.Body.(*protocol.ChatRecvBody)
	if !ok || body.ChatMsg.Sender != b.nickname {
		return
	}
	seq, ok := parseChatter(body.ChatMsg.Content)
	if !ok {
		return
	}

	b.mu.Lock()
	sentAt, found := b.pending[seq]
	delete(b.pending, seq)
	b.mu.Unlock()
	if found {
		b.stats.recordEcho(time.Since(sentAt))
	}
}

// chatter is a random sentence tagged with its sequence number
func chatter(seq int) string {
	n := 5 + rand.Intn(16)
	words := make([]string, 0, n+1)
	words = append(words, "#"+strconv.Itoa(seq))
	for i := 0; i < n; i++ {
		words = append(words, loremWords[rand.Intn(len(loremWords))])
	}
	return strings.Join(words, " ")
}

func parseChatter(content string) (int, bool) {
	tag, _, _ := strings.Cut(content, " ")
	if !strings.HasPrefix(tag, "#") {
		return 0, false
	}
	seq, err := strconv.Atoi(tag[1:])
	return seq, err == nil
}
