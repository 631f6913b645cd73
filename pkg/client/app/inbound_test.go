package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/aeolun/marain/pkg/client/chatlog"
	"github.com/aeolun/marain/pkg/client/command"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/aeolun/marain/pkg/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(a *App, msg *protocol.ServerMsg) []Effect {
	return a.Update(events.Recv(msg))
}

func TestRecvChat(t *testing.T) {
	a := newApp(t)
	at := fixedNow.Add(-time.Minute)

	recv(a, &protocol.ServerMsg{
		Timestamp: &at,
		Body: &protocol.ChatRecvBody{ChatMsg: protocol.ChatMsg{
			Sender: "bob", Content: "yo", Timestamp: at.Add(-time.Hour),
		}},
	})

	logs := a.Logs().Visible()
	require.Len(t, logs, 1)
	assert.Equal(t, chatlog.NewEntry("bob", "yo", at), logs[0], "envelope time wins")
}

func TestRecvChatFallsBackToMessageTime(t *testing.T) {
	a := newApp(t)
	at := fixedNow.Add(-time.Hour)

	recv(a, &protocol.ServerMsg{Body: &protocol.ChatRecvBody{ChatMsg: protocol.ChatMsg{
		Sender: "bob", Content: "yo", Timestamp: at,
	}}})
	assert.Equal(t, at, a.Logs().Visible()[0].Time)
}

func TestRecvStatusNo(t *testing.T) {
	a := newApp(t)
	recv(a, &protocol.ServerMsg{
		Status: protocol.Status{Code: protocol.StatusNo, Reason: "room is full"},
		Body:   &protocol.RoomDataBody{RoomName: "ignored"},
	})

	logs := a.Logs().Visible()
	require.Len(t, logs, 1)
	assert.Equal(t, chatlog.SenderServer, logs[0].Sender)
	assert.Equal(t, "room is full", logs[0].Body)
	assert.Empty(t, a.Room(), "body is not applied on failure")
}

func TestRecvStatusJustNo(t *testing.T) {
	a := newApp(t)
	recv(a, &protocol.ServerMsg{Status: protocol.Status{Code: protocol.StatusJustNo}, Body: &protocol.EmptyBody{}})

	logs := a.Logs().Visible()
	require.Len(t, logs, 1)
	assert.Equal(t, chatlog.NewEntry(chatlog.SenderClient, "Failed to login", fixedNow), logs[0])
}

func TestRecvServerTime(t *testing.T) {
	a := newApp(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	recv(a, &protocol.ServerMsg{Timestamp: &at, Body: &protocol.EmptyBody{}})

	assert.Equal(t, "The time is: 2026-01-02 03:04:05", a.Logs().Visible()[0].Body)
}

func TestRecvServerTimeMissing(t *testing.T) {
	a := newApp(t)
	recv(a, &protocol.ServerMsg{Body: &protocol.EmptyBody{}})
	assert.Equal(t, "The time is: "+fixedNow.Format(ServerTimeFormat), a.Logs().Visible()[0].Body)
}

func TestRecvLoginSuccessStoresToken(t *testing.T) {
	a := newApp(t)
	recv(a, &protocol.ServerMsg{Body: &protocol.LoginSuccessBody{Token: "tok-2"}})
	assert.Equal(t, "tok-2", a.Token())

	effects := a.Handle(command.GetServerTime())
	require.Len(t, effects, 1)
	assert.Equal(t, "tok-2", *effects[0].Msg.Token)
}

func TestRecvRoomDataReplacesHistory(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 5; i++ {
		a.PushLog(chatlog.NewEntry("old", fmt.Sprint(i), fixedNow))
	}

	t1 := fixedNow.Add(-2 * time.Minute)
	t2 := fixedNow.Add(-time.Minute)
	recv(a, &protocol.ServerMsg{Body: &protocol.RoomDataBody{
		Logs: []protocol.ChatMsg{
			{Sender: "bob", Content: "first", Timestamp: t1},
			{Sender: "carol", Content: "second", Timestamp: t2},
		},
		Notifications: []string{"alice joined lobby"},
		Occupants:     []string{"alice", "bob", "carol"},
		RoomName:      "lobby",
	}})

	want := []chatlog.Entry{
		chatlog.NewEntry(chatlog.SenderServer, "alice joined lobby", fixedNow),
		chatlog.NewEntry("carol", "second", t2),
		chatlog.NewEntry("bob", "first", t1),
	}
	if diff := cmp.Diff(want, a.Logs().Visible()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "lobby", a.Room())
	assert.Equal(t, []string{"alice", "bob", "carol"}, a.Occupants())
	assert.Equal(t, "alice, bob, carol", a.View().Occupants)
}

func TestRecvRoomDataKeepsCapacity(t *testing.T) {
	a := newApp(t)
	logs := make([]protocol.ChatMsg, 150)
	for i := range logs {
		logs[i] = protocol.ChatMsg{Sender: "bob", Content: fmt.Sprint(i), Timestamp: fixedNow}
	}
	recv(a, &protocol.ServerMsg{Body: &protocol.RoomDataBody{Logs: logs, RoomName: "busy"}})

	visible := a.Logs().Visible()
	require.Len(t, visible, chatlog.VisibleCapacity)
	assert.Equal(t, "149", visible[0].Body)
	assert.Equal(t, "50", visible[len(visible)-1].Body)
}

func TestRecvNotification(t *testing.T) {
	a := newApp(t)
	effects := recv(a, &protocol.ServerMsg{Body: &protocol.NotificationBody{Body: "server restarting"}})

	require.Len(t, effects, 1)
	assert.Equal(t, Effect{Kind: EffectNotify, Title: NotificationTitle, Body: "server restarting"}, effects[0])
	assert.Equal(t, "server restarting", a.Logs().Visible()[0].Body)
}

func TestRecvEveryMessageLeavesDebugEntry(t *testing.T) {
	a := newApp(t)
	recv(a, &protocol.ServerMsg{Body: &protocol.LoginSuccessBody{Token: "x"}})
	recv(a, &protocol.ServerMsg{Status: protocol.Status{Code: protocol.StatusNo, Reason: "r"}, Body: &protocol.EmptyBody{}})
	recv(a, &protocol.ServerMsg{})
	recv(a, nil)

	assert.Equal(t, 1, a.Logs().Len(), "only the refusal is visible")
	a.Logs().ToggleDebug()
	assert.Equal(t, 4, a.Logs().Len())
}
