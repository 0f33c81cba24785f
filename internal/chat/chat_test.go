package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapmux/tether/internal/supervisor"
)

func fixedConversation(at time.Time) *Conversation {
	c := NewConversation()
	c.now = func() time.Time { return at }
	return c
}

func TestAddLocal_TrimsAndIgnoresBlank(t *testing.T) {
	c := NewConversation()

	_, ok := c.AddLocal("   \t\n")
	assert.False(t, ok)
	_, ok = c.AddLocal("")
	assert.False(t, ok)

	m, ok := c.AddLocal("  hello  ")
	require.True(t, ok)
	assert.Equal(t, "hello", m.Text)
	assert.False(t, m.Remote)
	assert.NotEmpty(t, m.ID)

	assert.Len(t, c.Messages(), 1)
}

func TestAddRemote_KeepsPayload(t *testing.T) {
	c := NewConversation()
	m := c.AddRemote("  spaced  ")
	assert.True(t, m.Remote)
	assert.Equal(t, "  spaced  ", m.Text)
}

func TestMessages_OrderAndCopy(t *testing.T) {
	c := NewConversation()
	c.AddLocal("one")
	c.AddRemote("one")
	c.AddLocal("two")

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.True(t, msgs[1].Remote)
	assert.Equal(t, "two", msgs[2].Text)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	msgs[0].Text = "mutated"
	assert.Equal(t, "one", c.Messages()[0].Text)
}

func TestConversation_ConcurrentAdds(t *testing.T) {
	c := NewConversation()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddRemote("x")
		}()
	}
	wg.Wait()
	assert.Len(t, c.Messages(), 50)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Connecting...", Label(supervisor.Status{State: supervisor.Connecting, IsConnecting: true}))
	assert.Equal(t, "Connected", Label(supervisor.Status{State: supervisor.Open, IsConnected: true}))
	assert.Equal(t, "Disconnected", Label(supervisor.Status{State: supervisor.Closed}))
	assert.Equal(t, "Disconnected", Label(supervisor.Status{State: supervisor.Idle}))
}

func TestStatusLine(t *testing.T) {
	st := supervisor.Status{State: supervisor.Closed, Queued: 2, LastError: errors.New("dial tcp: refused")}
	assert.Equal(t, "Disconnected (2 queued): dial tcp: refused", StatusLine(st))
	assert.Equal(t, "Connected", StatusLine(supervisor.Status{IsConnected: true}))
}

func TestRender(t *testing.T) {
	at := time.Date(2025, 3, 4, 9, 8, 7, 0, time.UTC)
	c := fixedConversation(at)

	local, _ := c.AddLocal("<b>hi</b>")
	assert.Equal(t, "09:08:07  me    <b>hi</b>", Render(local))

	remote := c.AddRemote("<b>hi</b>\x1b[2J")
	assert.Equal(t, "09:08:07  them  hi[2J", Render(remote))
}
