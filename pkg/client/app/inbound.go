package app

import (
	"fmt"
	"strings"

	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/protocol"
	"go.uber.org/zap"
)

// ServerTimeFormat renders the reply to GetServerTime
const ServerTimeFormat = "2006-01-02 15:04:05"

// NotificationTitle is the desktop notification title for server notices
const NotificationTitle = "marain"

func (a *App) receive(msg *protocol.ServerMsg) []Effect {
	if msg == nil {
		return nil
	}
	a.logs.Push(chatlog.NewDebugEntry(describe(msg), a.now()))

	switch msg.Status.Code {
	case protocol.StatusYes:
	case protocol.StatusNo:
		a.logger.Error("server refused request", zap.String("reason", msg.Status.Reason))
		a.log(chatlog.SenderServer, msg.Status.Reason)
		return nil
	default:
		a.log(chatlog.SenderClient, "Failed to login")
		return nil
	}

	at := a.now()
	if msg.Timestamp != nil {
		at = *msg.Timestamp
	}

	switch body := msg.Body.(type) {
	case *protocol.LoginSuccessBody:
		token := body.Token
		a.token = &token

	case *protocol.ChatRecvBody:
		if msg.Timestamp == nil && !body.ChatMsg.Timestamp.IsZero() {
			at = body.ChatMsg.Timestamp
		}
		a.logs.Push(chatlog.NewEntry(body.ChatMsg.Sender, body.ChatMsg.Content, at))

	case *protocol.EmptyBody:
		if msg.Timestamp == nil {
			a.logger.Error("server did not supply time")
		}
		a.log(chatlog.SenderServer, "The time is: "+at.Format(ServerTimeFormat))

	case *protocol.RoomDataBody:
		a.roomData(body)

	case *protocol.NotificationBody:
		a.log(chatlog.SenderServer, body.Body)
		return []Effect{{Kind: EffectNotify, Title: NotificationTitle, Body: body.Body}}

	case nil:
		a.logger.Warn("message without body")

	default:
		a.logger.Warn("unexpected message body", zap.Uint8("type", msg.Body.Type()))
	}
	return nil
}

func (a *App) roomData(body *protocol.RoomDataBody) {
	now := a.now()
	batch := make([]chatlog.Entry, 0, len(body.Logs)+len(body.Notifications))
	for _, cm := range body.Logs {
		at := cm.Timestamp
		if at.IsZero() {
			at = now
		}
		batch = append(batch, chatlog.NewEntry(cm.Sender, cm.Content, at))
	}
	for _, n := range body.Notifications {
		batch = append(batch, chatlog.NewEntry(chatlog.SenderServer, n, now))
	}
	a.ReplaceLogs(batch)

	a.room = body.RoomName
	a.occupants = append(a.occupants[:0], body.Occupants...)
	a.logger.Info("entered room",
		zap.String("room", a.room),
		zap.Int("occupants", len(a.occupants)),
		zap.Int("history", len(body.Logs)))
}

// Occupants returns the users in the current room
func (a *App) Occupants() []string {
	return append([]string(nil), a.occupants...)
}

func joinOccupants(names []string) string {
	return strings.Join(names, ", ")
}

// describe renders msg for the debug log. Bodies are pointers, so they are
// formatted on their own to show fields rather than an address.
func describe(msg *protocol.ServerMsg) string {
	ts := "-"
	if msg.Timestamp != nil {
		ts = msg.Timestamp.Format(ServerTimeFormat)
	}
	return fmt.Sprintf("status=%s time=%s body=%+v", msg.Status, ts, msg.Body)
}
