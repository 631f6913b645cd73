package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// KeySize is the size of an X25519 public key on the wire
const KeySize = 32

// Body type constants (Client → Server)
const (
	TypeLogin      = 0x01
	TypeSendToRoom = 0x02
	TypeGetTime    = 0x03
	TypeMove       = 0x04
)

// Body type constants (Server → Client)
const (
	TypeLoginSuccess = 0x81
	TypeChatRecv     = 0x82
	TypeRoomData     = 0x83
	TypeNotification = 0x84
	TypeEmpty        = 0x85
)

var (
	ErrUnknownBodyType = errors.New("unknown message body type")
	ErrTrailingBytes   = errors.New("unexpected bytes after message body")
	ErrInvalidStatus   = errors.New("invalid status code")
	ErrMissingBody     = errors.New("message has no body")
)

// Body is the variant part of an envelope
type Body interface {
	Type() uint8
	EncodeTo(w io.Writer) error
	DecodeFrom(r io.Reader) error
}

// ClientBody is a body the client sends
type ClientBody interface {
	Body
	isClientBody()
}

// ServerBody is a body the server sends
type ServerBody interface {
	Body
	isServerBody()
}

// ClientMsg is the outbound envelope
type ClientMsg struct {
	Token     *string // nil before login
	Body      ClientBody
	Timestamp time.Time
}

// StatusCode classifies a server reply
type StatusCode uint8

const (
	StatusYes    StatusCode = 0 // success
	StatusNo     StatusCode = 1 // failure with a reason
	StatusJustNo StatusCode = 2 // hard failure, no reason given
)

// Status is the outcome part of a server reply
type Status struct {
	Code   StatusCode
	Reason string // only for StatusNo
}

// OK reports whether the status is a success
func (s Status) OK() bool {
	return s.Code == StatusYes
}

func (s Status) String() string {
	switch s.Code {
	case StatusYes:
		return "yes"
	case StatusNo:
		return "no: " + s.Reason
	case StatusJustNo:
		return "just no"
	default:
		return fmt.Sprintf("status(%d)", s.Code)
	}
}

// ServerMsg is the inbound envelope
type ServerMsg struct {
	Status    Status
	Timestamp *time.Time
	Body      ServerBody
}

// LoginBody (0x01) - announce the user and the client's ephemeral public key
type LoginBody struct {
	Username  string
	PublicKey [KeySize]byte
}

func (*LoginBody) Type() uint8   { return TypeLogin }
func (*LoginBody) isClientBody() {}

func (m *LoginBody) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Username); err != nil {
		return err
	}
	return WriteKey(w, m.PublicKey)
}

func (m *LoginBody) DecodeFrom(r io.Reader) error {
	username, err := ReadString(r)
	if err != nil {
		return err
	}
	key, err := ReadKey(r)
	if err != nil {
		return err
	}
	m.Username = username
	m.PublicKey = key
	return nil
}

// SendToRoomBody (0x02) - post a chat message to the current room
type SendToRoomBody struct {
	Contents string
}

func (*SendToRoomBody) Type() uint8   { return TypeSendToRoom }
func (*SendToRoomBody) isClientBody() {}

func (m *SendToRoomBody) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Contents)
}

func (m *SendToRoomBody) DecodeFrom(r io.Reader) error {
	contents, err := ReadString(r)
	if err != nil {
		return err
	}
	m.Contents = contents
	return nil
}

// GetTimeBody (0x03) - ask for the server clock
type GetTimeBody struct{}

func (*GetTimeBody) Type() uint8                  { return TypeGetTime }
func (*GetTimeBody) isClientBody()                {}
func (*GetTimeBody) EncodeTo(w io.Writer) error   { return nil }
func (*GetTimeBody) DecodeFrom(r io.Reader) error { return nil }

// MoveBody (0x04) - switch rooms
type MoveBody struct {
	Target string
}

func (*MoveBody) Type() uint8   { return TypeMove }
func (*MoveBody) isClientBody() {}

func (m *MoveBody) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Target)
}

func (m *MoveBody) DecodeFrom(r io.Reader) error {
	target, err := ReadString(r)
	if err != nil {
		return err
	}
	m.Target = target
	return nil
}

// ChatMsg is a single chat line as stored by the server
type ChatMsg struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

func (m *ChatMsg) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Sender); err != nil {
		return err
	}
	if err := WriteString(w, m.Content); err != nil {
		return err
	}
	return WriteTimestamp(w, m.Timestamp)
}

func (m *ChatMsg) DecodeFrom(r io.Reader) error {
	sender, err := ReadString(r)
	if err != nil {
		return err
	}
	content, err := ReadString(r)
	if err != nil {
		return err
	}
	ts, err := ReadTimestamp(r)
	if err != nil {
		return err
	}
	m.Sender = sender
	m.Content = content
	m.Timestamp = ts
	return nil
}

// LoginSuccessBody (0x81) - session token and the server's ephemeral public key
type LoginSuccessBody struct {
	Token     string
	PublicKey [KeySize]byte
}

func (*LoginSuccessBody) Type() uint8   { return TypeLoginSuccess }
func (*LoginSuccessBody) isServerBody() {}

func (m *LoginSuccessBody) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Token); err != nil {
		return err
	}
	return WriteKey(w, m.PublicKey)
}

func (m *LoginSuccessBody) DecodeFrom(r io.Reader) error {
	token, err := ReadString(r)
	if err != nil {
		return err
	}
	key, err := ReadKey(r)
	if err != nil {
		return err
	}
	m.Token = token
	m.PublicKey = key
	return nil
}

// ChatRecvBody (0x82) - a chat message from someone in the room
type ChatRecvBody struct {
	ChatMsg ChatMsg
}

func (*ChatRecvBody) Type() uint8                    { return TypeChatRecv }
func (*ChatRecvBody) isServerBody()                  {}
func (m *ChatRecvBody) EncodeTo(w io.Writer) error   { return m.ChatMsg.EncodeTo(w) }
func (m *ChatRecvBody) DecodeFrom(r io.Reader) error { return m.ChatMsg.DecodeFrom(r) }

// RoomDataBody (0x83) - full room state, sent after joining a room
type RoomDataBody struct {
	Logs          []ChatMsg
	Notifications []string
	Occupants     []string
	RoomName      string
}

func (*RoomDataBody) Type() uint8   { return TypeRoomData }
func (*RoomDataBody) isServerBody() {}

func (m *RoomDataBody) EncodeTo(w io.Writer) error {
	if len(m.Logs) > 0xFFFF {
		return ErrListTooLong
	}
	if err := WriteUint16(w, uint16(len(m.Logs))); err != nil {
		return err
	}
	for i := range m.Logs {
		if err := m.Logs[i].EncodeTo(w); err != nil {
			return err
		}
	}
	if err := WriteStrings(w, m.Notifications); err != nil {
		return err
	}
	if err := WriteStrings(w, m.Occupants); err != nil {
		return err
	}
	return WriteString(w, m.RoomName)
}

func (m *RoomDataBody) DecodeFrom(r io.Reader) error {
	n, err := ReadUint16(r)
	if err != nil {
		return err
	}
	logs := make([]ChatMsg, n)
	for i := range logs {
		if err := logs[i].DecodeFrom(r); err != nil {
			return err
		}
	}
	notifications, err := ReadStrings(r)
	if err != nil {
		return err
	}
	occupants, err := ReadStrings(r)
	if err != nil {
		return err
	}
	room, err := ReadString(r)
	if err != nil {
		return err
	}
	m.Logs = logs
	m.Notifications = notifications
	m.Occupants = occupants
	m.RoomName = room
	return nil
}

// NotificationBody (0x84) - a server notice for the user
type NotificationBody struct {
	Body string
}

func (*NotificationBody) Type() uint8   { return TypeNotification }
func (*NotificationBody) isServerBody() {}

func (m *NotificationBody) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Body)
}

func (m *NotificationBody) DecodeFrom(r io.Reader) error {
	body, err := ReadString(r)
	if err != nil {
		return err
	}
	m.Body = body
	return nil
}

// EmptyBody (0x85) - carries nothing but the envelope; the reply to GetTime
type EmptyBody struct{}

func (*EmptyBody) Type() uint8                  { return TypeEmpty }
func (*EmptyBody) isServerBody()                {}
func (*EmptyBody) EncodeTo(w io.Writer) error   { return nil }
func (*EmptyBody) DecodeFrom(r io.Reader) error { return nil }

func newClientBody(t uint8) (ClientBody, error) {
	switch t {
	case TypeLogin:
		return &LoginBody{}, nil
	case TypeSendToRoom:
		return &SendToRoomBody{}, nil
	case TypeGetTime:
		return &GetTimeBody{}, nil
	case TypeMove:
		return &MoveBody{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownBodyType, t)
	}
}

func newServerBody(t uint8) (ServerBody, error) {
	switch t {
	case TypeLoginSuccess:
		return &LoginSuccessBody{}, nil
	case TypeChatRecv:
		return &ChatRecvBody{}, nil
	case TypeRoomData:
		return &RoomDataBody{}, nil
	case TypeNotification:
		return &NotificationBody{}, nil
	case TypeEmpty:
		return &EmptyBody{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownBodyType, t)
	}
}

// EncodeClientMsg serializes an outbound envelope into a frame
func EncodeClientMsg(m *ClientMsg) ([]byte, error) {
	if m.Body == nil {
		return nil, ErrMissingBody
	}
	buf := new(bytes.Buffer)
	if err := WriteOptionalString(buf, m.Token); err != nil {
		return nil, err
	}
	if err := WriteTimestamp(buf, m.Timestamp); err != nil {
		return nil, err
	}
	if err := m.Body.EncodeTo(buf); err != nil {
		return nil, err
	}
	return EncodeMessage(m.Body.Type(), buf.Bytes())
}

// DecodeClientMsg parses a frame produced by EncodeClientMsg
func DecodeClientMsg(data []byte) (*ClientMsg, error) {
	frame, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	body, err := newClientBody(frame.Type)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(frame.Payload)
	token, err := ReadOptionalString(r)
	if err != nil {
		return nil, err
	}
	ts, err := ReadTimestamp(r)
	if err != nil {
		return nil, err
	}
	if err := body.DecodeFrom(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}

	return &ClientMsg{Token: token, Body: body, Timestamp: ts}, nil
}

// EncodeServerMsg serializes an inbound envelope into a frame
func EncodeServerMsg(m *ServerMsg) ([]byte, error) {
	if m.Body == nil {
		return nil, ErrMissingBody
	}
	buf := new(bytes.Buffer)
	if err := WriteUint8(buf, uint8(m.Status.Code)); err != nil {
		return nil, err
	}
	if m.Status.Code == StatusNo {
		if err := WriteString(buf, m.Status.Reason); err != nil {
			return nil, err
		}
	}
	if err := WriteOptionalTimestamp(buf, m.Timestamp); err != nil {
		return nil, err
	}
	if err := m.Body.EncodeTo(buf); err != nil {
		return nil, err
	}
	return EncodeMessage(m.Body.Type(), buf.Bytes())
}

// DecodeServerMsg parses a frame produced by EncodeServerMsg
func DecodeServerMsg(data []byte) (*ServerMsg, error) {
	frame, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	body, err := newServerBody(frame.Type)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(frame.Payload)
	code, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	status := Status{Code: StatusCode(code)}
	switch status.Code {
	case StatusYes, StatusJustNo:
	case StatusNo:
		if status.Reason, err = ReadString(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, code)
	}

	ts, err := ReadOptionalTimestamp(r)
	if err != nil {
		return nil, err
	}
	if err := body.DecodeFrom(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}

	return &ServerMsg{Status: status, Timestamp: ts, Body: body}, nil
}
