package client

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDesktopNotifier(t *testing.T) {
	var titles, bodies []string
	n := NewDesktopNotifier("", zap.NewNop())
	n.notify = func(title, body string, icon any) error {
		titles = append(titles, title)
		bodies = append(bodies, body)
		return nil
	}

	n.Notify("marain", "hello")
	n.Notify("marain", strings.Repeat("é", 150))
	assert.Equal(t, []string{"marain", "marain"}, titles)
	assert.Equal(t, "hello", bodies[0])
	assert.Len(t, []rune(bodies[1]), maxNotificationLen)
	assert.True(t, strings.HasSuffix(bodies[1], "..."))

	n.Disabled = true
	n.Notify("marain", "ignored")
	assert.Len(t, titles, 2)
}

func TestDesktopNotifierSwallowsErrors(t *testing.T) {
	n := NewDesktopNotifier("", nil)
	n.notify = func(string, string, any) error { return errors.New("no dbus") }
	assert.NotPanics(t, func() { n.Notify("t", "b") })

	var nilNotifier *DesktopNotifier
	assert.NotPanics(t, func() { nilNotifier.Notify("t", "b") })
}
