package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/marain/pkg/client/crypto"
	"github.com/aeolun/marain/pkg/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultPort is used when the server address carries no port
const DefaultPort = 1337

const (
	defaultQueueSize        = 100
	defaultHandshakeTimeout = 5 * time.Second
	closeGracePeriod        = time.Second
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrQueueFull      = errors.New("outgoing queue full")
	ErrNoSharedSecret = errors.New("no shared secret established")
	ErrLoginRejected  = errors.New("login rejected by server")
	ErrMalformedReply = errors.New("malformed login reply")
	ErrAlreadyStarted = errors.New("session already started")
)

// FrameError reports an inbound frame that could not be decrypted or
// decoded. The session stays usable after one.
type FrameError struct {
	Len int
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bad inbound frame (%d bytes): %v", e.Len, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Options configures a Session
type Options struct {
	Logger           *zap.Logger
	Metrics          *Metrics
	HandshakeTimeout time.Duration
	QueueSize        int
	// Throttle limits outbound bytes per second. 0 disables throttling.
	Throttle int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	return o
}

type inbound struct {
	msg *protocol.ServerMsg
	err error
}

// Session is an open WebSocket connection to the chat service. Login runs in
// plaintext; once a shared secret is set every frame in both directions is
// sealed with AES-256-GCM.
type Session struct {
	addr   string
	conn   *websocket.Conn
	logger *zap.Logger

	mu      sync.RWMutex
	cipher  *crypto.SessionCipher
	started bool

	incoming chan inbound
	outgoing chan []byte

	limiter *rate.Limiter
	metrics *Metrics

	// Traffic counters (bytes on the wire)
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial opens a WebSocket to addr ("host", "host:port" or a ws:// / wss:// URL)
func Dial(ctx context.Context, addr string, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	u, err := ServerURL(addr)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	conn.SetReadLimit(protocol.MaxFrameSize + crypto.NonceSize + crypto.TagSize)

	s := &Session{
		addr:     u,
		conn:     conn,
		logger:   opts.Logger.With(zap.String("server", u)),
		incoming: make(chan inbound, opts.QueueSize),
		outgoing: make(chan []byte, opts.QueueSize),
		metrics:  opts.Metrics,
		shutdown: make(chan struct{}),
	}
	if opts.Throttle > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.Throttle), opts.Throttle)
		s.logger.Info("bandwidth throttling enabled", zap.Int("bytes_per_sec", opts.Throttle))
	}
	s.logger.Info("connected")
	return s, nil
}

// Address returns the ws:// URL the session is connected to
func (s *Session) Address() string {
	return s.addr
}

// Login sends msg unencrypted and waits for the first reply. Only a
// successful LoginSuccess reply is accepted. Must be called before Start.
func (s *Session) Login(ctx context.Context, msg protocol.ClientMsg) (string, [protocol.KeySize]byte, error) {
	var serverKey [protocol.KeySize]byte

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		return "", serverKey, ErrAlreadyStarted
	}

	data, err := protocol.EncodeClientMsg(&msg)
	if err != nil {
		return "", serverKey, fmt.Errorf("encode login: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return "", serverKey, fmt.Errorf("send login: %w", err)
	}
	s.bytesSent.Add(uint64(len(data)))

	// unblock the read below when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}

	_, reply, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", serverKey, fmt.Errorf("await login reply: %w", ctxErr)
		}
		return "", serverKey, fmt.Errorf("await login reply: %w", err)
	}
	_ = s.conn.SetReadDeadline(time.Time{})
	s.bytesReceived.Add(uint64(len(reply)))

	resp, err := protocol.DecodeServerMsg(reply)
	if err != nil {
		return "", serverKey, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !resp.Status.OK() {
		return "", serverKey, fmt.Errorf("%w: %s", ErrLoginRejected, resp.Status)
	}
	success, ok := resp.Body.(*protocol.LoginSuccessBody)
	if !ok {
		return "", serverKey, fmt.Errorf("%w: unexpected body type 0x%02X", ErrMalformedReply, resp.Body.Type())
	}

	s.logger.Debug("login accepted")
	return success.Token, success.PublicKey, nil
}

// SetSharedSecret derives the session key from the X25519 shared secret and
// switches the session to encrypted frames
func (s *Session) SetSharedSecret(secret []byte, token string) error {
	key, err := crypto.DeriveSessionKey(secret, token)
	if err != nil {
		return err
	}
	c, err := crypto.NewSessionCipher(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cipher = c
	s.mu.Unlock()
	return nil
}

// Start launches the read and write loops
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	return nil
}

// Send encrypts msg and queues it for the write loop. It never blocks.
func (s *Session) Send(msg protocol.ClientMsg) error {
	select {
	case <-s.shutdown:
		return ErrClosed
	default:
	}

	s.mu.RLock()
	c := s.cipher
	s.mu.RUnlock()
	if c == nil {
		return ErrNoSharedSecret
	}

	data, err := protocol.EncodeClientMsg(&msg)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	sealed, err := c.Seal(data)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	select {
	case s.outgoing <- sealed:
		if s.metrics != nil {
			s.metrics.SetQueueDepth(len(s.outgoing))
		}
		return nil
	case <-s.shutdown:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Receive blocks until the next inbound message, the end of the connection
// (ErrClosed) or ctx cancellation. A *FrameError is recoverable.
func (s *Session) Receive(ctx context.Context) (*protocol.ServerMsg, error) {
	select {
	case in, ok := <-s.incoming:
		if !ok {
			return nil, ErrClosed
		}
		return in.msg, in.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the connection down and waits for both loops to exit
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		err = s.conn.Close()
		s.wg.Wait()

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			close(s.incoming)
		}
		s.logger.Info("session closed",
			zap.Uint64("bytes_sent", s.bytesSent.Load()),
			zap.Uint64("bytes_received", s.bytesReceived.Load()))
	})
	return err
}

// BytesSent returns the total bytes written to the socket
func (s *Session) BytesSent() uint64 {
	return s.bytesSent.Load()
}

// BytesReceived returns the total bytes read from the socket
func (s *Session) BytesReceived() uint64 {
	return s.bytesReceived.Load()
}

// readLoop reads frames until the connection ends. It is the only writer of
// s.incoming and closes it on exit.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.incoming)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.shutdown:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Info("connection closed by server")
				} else {
					s.logger.Warn("read error", zap.Error(err))
				}
			}
			return
		}
		s.bytesReceived.Add(uint64(len(data)))

		msg, err := s.open(data)
		if err != nil {
			s.logger.Warn("dropping inbound frame", zap.Int("len", len(data)), zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordFrameError()
			}
			err = &FrameError{Len: len(data), Err: err}
		} else {
			s.logger.Debug("← RECV", zap.Uint8("type", msg.Body.Type()), zap.Int("len", len(data)))
			if s.metrics != nil {
				s.metrics.RecordReceived(len(data))
			}
		}

		select {
		case s.incoming <- inbound{msg: msg, err: err}:
		case <-s.shutdown:
			return
		}
	}
}

func (s *Session) open(data []byte) (*protocol.ServerMsg, error) {
	s.mu.RLock()
	c := s.cipher
	s.mu.RUnlock()

	if c != nil {
		plain, err := c.Open(data)
		if err != nil {
			return nil, err
		}
		data = plain
	}
	return protocol.DecodeServerMsg(data)
}

// writeLoop drains the outbound queue onto the socket
func (s *Session) writeLoop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case data := <-s.outgoing:
			if err := s.throttle(ctx, len(data)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Warn("write error", zap.Error(err))
				_ = s.conn.Close()
				return
			}
			s.bytesSent.Add(uint64(len(data)))
			if s.metrics != nil {
				s.metrics.RecordSent(len(data))
				s.metrics.SetQueueDepth(len(s.outgoing))
			}
			s.logger.Debug("→ SEND", zap.Int("len", len(data)))

		case <-s.shutdown:
			return
		}
	}
}

// throttle waits until n bytes may be written. Frames larger than the
// limiter burst are paid for in burst-sized chunks.
func (s *Session) throttle(ctx context.Context, n int) error {
	if s.limiter == nil {
		return nil
	}
	burst := s.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// ServerURL normalizes a server address into a ws:// or wss:// URL,
// filling in DefaultPort when none is given
func ServerURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("server address is empty")
	}

	scheme := "ws"
	hostPort := trimmed
	path := ""
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid server address %q: %w", raw, err)
		}
		scheme = strings.ToLower(u.Scheme)
		hostPort = u.Host
		path = u.Path
	}

	switch scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", scheme)
	}

	host, port, err := splitHostPortWithDefault(hostPort, strconv.Itoa(DefaultPort))
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, port), Path: path}
	return u.String(), nil
}

func splitHostPortWithDefault(hostPort, defaultPort string) (string, string, error) {
	hostPort = strings.TrimSpace(hostPort)
	if hostPort == "" {
		return "", "", errors.New("missing host in server address")
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err == nil {
		return host, port, nil
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) && strings.Contains(strings.ToLower(addrErr.Err), "missing port") {
		host = hostPort
		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
		}
		return host, defaultPort, nil
	}

	return "", "", err
}
