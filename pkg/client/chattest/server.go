// Package chattest runs an in-process chat service for tests. It speaks the
// real handshake and encryption, and answers chat requests the way a simple
// single-room server would.
package chattest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/marain/pkg/client/crypto"
	"github.com/aeolun/marain/pkg/protocol"
	"github.com/gorilla/websocket"
)

// Responder maps one decrypted client message to the replies sent back
type Responder func(username string, msg *protocol.ClientMsg) []*protocol.ServerMsg

// Option configures a Server
type Option func(*Server)

// WithResponder replaces the default request handling
func WithResponder(r Responder) Option {
	return func(s *Server) { s.respond = r }
}

// WithLoginReply makes the server answer every login with the raw bytes
// returned by fn and then hang up
func WithLoginReply(fn func(login *protocol.LoginBody) []byte) Option {
	return func(s *Server) { s.loginReply = fn }
}

// Server is a fake chat service on a loopback httptest server
type Server struct {
	// Addr is host:port, suitable for client.Dial
	Addr string

	http       *httptest.Server
	upgrader   websocket.Upgrader
	respond    Responder
	loginReply func(login *protocol.LoginBody) []byte
	nextToken  atomic.Uint64

	mu    sync.Mutex
	peers []*Peer

	received chan *protocol.ClientMsg
	logins   chan string
}

// Peer is one logged-in client connection
type Peer struct {
	Username string
	Token    string

	conn   *websocket.Conn
	cipher *crypto.SessionCipher
	wmu    sync.Mutex
}

// NewServer starts a fake chat service
func NewServer(opts ...Option) *Server {
	s := &Server{
		respond:  DefaultResponder,
		received: make(chan *protocol.ClientMsg, 100),
		logins:   make(chan string, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = httptest.NewServer(http.HandlerFunc(s.serveWS))
	s.Addr = strings.TrimPrefix(s.http.URL, "http://")
	return s
}

// Received yields every decrypted client message after login
func (s *Server) Received() <-chan *protocol.ClientMsg {
	return s.received
}

// Logins yields the username of every completed login
func (s *Server) Logins() <-chan string {
	return s.logins
}

// Broadcast sends msg to every connected peer
func (s *Server) Broadcast(msg *protocol.ServerMsg) error {
	for _, p := range s.snapshot() {
		if err := p.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastRaw writes data unmodified to every connected peer
func (s *Server) BroadcastRaw(data []byte) error {
	for _, p := range s.snapshot() {
		if err := p.write(data); err != nil {
			return err
		}
	}
	return nil
}

// DropClients closes every peer connection with a normal close frame
func (s *Server) DropClients() {
	for _, p := range s.snapshot() {
		p.wmu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		p.wmu.Unlock()
		_ = p.conn.Close()
	}
	s.mu.Lock()
	s.peers = nil
	s.mu.Unlock()
}

// Close drops all clients and stops the server
func (s *Server) Close() {
	s.DropClients()
	s.http.CloseClientConnections()
	s.http.Close()
}

func (s *Server) snapshot() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Peer(nil), s.peers...)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	peer, err := s.handshake(conn)
	if err != nil {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.peers = append(s.peers, peer)
	s.mu.Unlock()
	select {
	case s.logins <- peer.Username:
	default:
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		plain, err := peer.cipher.Open(data)
		if err != nil {
			continue
		}
		msg, err := protocol.DecodeClientMsg(plain)
		if err != nil {
			continue
		}
		select {
		case s.received <- msg:
		default:
		}
		for _, reply := range s.respond(peer.Username, msg) {
			if err := peer.Send(reply); err != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*Peer, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := protocol.DecodeClientMsg(data)
	if err != nil {
		return nil, err
	}
	login, ok := msg.Body.(*protocol.LoginBody)
	if !ok {
		return nil, fmt.Errorf("expected login, got 0x%02X", msg.Body.Type())
	}

	if s.loginReply != nil {
		_ = conn.WriteMessage(websocket.BinaryMessage, s.loginReply(login))
		return nil, fmt.Errorf("login refused")
	}

	kp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	token := fmt.Sprintf("token-%d", s.nextToken.Add(1))

	reply, err := protocol.EncodeServerMsg(&protocol.ServerMsg{
		Body: &protocol.LoginSuccessBody{Token: token, PublicKey: kp.PublicKey},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
		return nil, err
	}

	secret, err := crypto.ComputeSharedSecret(kp.PrivateKey[:], login.PublicKey[:])
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveSessionKey(secret, token)
	if err != nil {
		return nil, err
	}
	c, err := crypto.NewSessionCipher(key)
	if err != nil {
		return nil, err
	}

	return &Peer{Username: login.Username, Token: token, conn: conn, cipher: c}, nil
}

// Send encrypts and writes msg to the peer
func (p *Peer) Send(msg *protocol.ServerMsg) error {
	data, err := protocol.EncodeServerMsg(msg)
	if err != nil {
		return err
	}
	sealed, err := p.cipher.Seal(data)
	if err != nil {
		return err
	}
	return p.write(sealed)
}

func (p *Peer) write(data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// DefaultResponder echoes chat back to the sender, answers GetTime with the
// current time and answers Move with an empty room
func DefaultResponder(username string, msg *protocol.ClientMsg) []*protocol.ServerMsg {
	now := time.Now().UTC().Truncate(time.Millisecond)

	switch body := msg.Body.(type) {
	case *protocol.SendToRoomBody:
		return []*protocol.ServerMsg{{
			Timestamp: &now,
			Body: &protocol.ChatRecvBody{ChatMsg: protocol.ChatMsg{
				Sender:    username,
				Content:   body.Contents,
				Timestamp: now,
			}},
		}}
	case *protocol.GetTimeBody:
		return []*protocol.ServerMsg{{Timestamp: &now, Body: &protocol.EmptyBody{}}}
	case *protocol.MoveBody:
		return []*protocol.ServerMsg{{
			Timestamp: &now,
			Body: &protocol.RoomDataBody{
				Notifications: []string{username + " joined " + body.Target},
				Occupants:     []string{username},
				RoomName:      body.Target,
			},
		}}
	default:
		return nil
	}
}

// EncodeReply encodes msg unencrypted, for WithLoginReply
func EncodeReply(msg *protocol.ServerMsg) []byte {
	data, err := protocol.EncodeServerMsg(msg)
	if err != nil {
		panic(err)
	}
	return data
}
