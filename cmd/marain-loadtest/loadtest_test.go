package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/client/chattest"
	"github.com/aeolun/marain/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAgainstFakeServer(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	metrics := client.NewMetrics()
	var out bytes.Buffer
	stats, err := Run(context.Background(), Config{
		Server:         srv.Addr,
		Clients:        3,
		Duration:       500 * time.Millisecond,
		Rate:           20,
		Room:           "bench",
		Ramp:           30 * time.Millisecond,
		ReportInterval: 100 * time.Millisecond,
		Metrics:        metrics,
	}, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Connected())
	assert.Positive(t, stats.Sent())
	assert.Positive(t, stats.Echoed())
	assert.LessOrEqual(t, stats.Echoed(), stats.Sent())
	assert.Contains(t, out.String(), "Stats: ")
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.HandshakesTotal("ok")))

	var summary bytes.Buffer
	stats.PrintSummary(&summary, time.Second)
	assert.Contains(t, summary.String(), "Clients: 3 connected, 0 failed to connect")
}

func TestRunCountsConnectFailures(t *testing.T) {
	srv := chattest.NewServer()
	addr := srv.Addr
	srv.Close()

	stats, err := Run(context.Background(), Config{
		Server:   addr,
		Clients:  2,
		Duration: 50 * time.Millisecond,
		Rate:     1,
	}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Connected())
	assert.Equal(t, int64(2), stats.connectFailed.Load())
}

func TestRunValidatesConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{Clients: 0, Rate: 1}, nil, nil)
	assert.Error(t, err)
	_, err = Run(context.Background(), Config{Clients: 1, Rate: 0}, nil, nil)
	assert.Error(t, err)
}

func TestChatterRoundTrip(t *testing.T) {
	seq, ok := parseChatter(chatter(42))
	require.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = parseChatter("hello there")
	assert.False(t, ok)
	_, ok = parseChatter("#abc rest")
	assert.False(t, ok)
}

func TestGenerateUsernameIsUnique(t *testing.T) {
	a := generateUsername(1)
	b := generateUsername(2)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, " ")
}

func TestHandleMatchesOwnEcho(t *testing.T) {
	stats := &Stats{}
	b := &bot{nickname: "me1", stats: stats, pending: map[int]time.Time{7: time.Now().Add(-time.Millisecond)}}

	echo := func(sender, content string) *protocol.ServerMsg {
		return &protocol.ServerMsg{Body: &protocol.ChatRecvBody{ChatMsg: protocol.ChatMsg{Sender: sender, Content: content}}}
	}

	b.handle(echo("someone", "#7 lorem"))
	b.handle(echo("me1", "no tag"))
	b.handle(&protocol.ServerMsg{Body: &protocol.EmptyBody{}})
	assert.Zero(t, stats.Echoed())

	b.handle(echo("me1", "#7 lorem ipsum"))
	assert.Equal(t, int64(1), stats.Echoed())
	assert.Positive(t, stats.avgRoundTrip())
	assert.Empty(t, b.pending)

	// a repeated echo is not counted twice
	b.handle(echo("me1", "#7 lorem ipsum"))
	assert.Equal(t, int64(1), stats.Echoed())
}
