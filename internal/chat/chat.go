// Package chat keeps the transcript of a terminal chat session.
package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leapmux/tether/internal/id"
	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/util/sanitize"
	"github.com/leapmux/tether/internal/util/timefmt"
)

// MaxRemoteText bounds how much of an inbound message is displayed.
const MaxRemoteText = 4096

// Message is one line of the transcript.
type Message struct {
	ID     string
	Text   string
	Remote bool // received from the peer rather than typed locally
	At     time.Time
}

// Conversation is an append-only transcript, safe for concurrent use.
type Conversation struct {
	now func() time.Time

	mu       sync.Mutex
	messages []Message
}

// NewConversation returns an empty Conversation.
func NewConversation() *Conversation {
	return &Conversation{now: time.Now}
}

// AddLocal records typed input. Input is trimmed; blank input is ignored
// and reported with ok=false.
func (c *Conversation) AddLocal(input string) (m Message, ok bool) {
	text := strings.TrimSpace(input)
	if text == "" {
		return Message{}, false
	}
	return c.add(text, false), true
}

// AddRemote records a received payload.
func (c *Conversation) AddRemote(payload string) Message {
	return c.add(payload, true)
}

func (c *Conversation) add(text string, remote bool) Message {
	m := Message{
		ID:     id.Generate(),
		Text:   text,
		Remote: remote,
		At:     c.now(),
	}
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	return m
}

// Messages returns a copy of the transcript in arrival order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Label is the connection indicator shown above the transcript.
func Label(st supervisor.Status) string {
	switch {
	case st.IsConnecting:
		return "Connecting..."
	case st.IsConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// StatusLine is Label plus the last error and queue length, when present.
func StatusLine(st supervisor.Status) string {
	line := Label(st)
	if st.Queued > 0 {
		line += fmt.Sprintf(" (%d queued)", st.Queued)
	}
	if st.LastError != nil {
		line += ": " + st.LastError.Error()
	}
	return line
}

// Render formats m as "HH:MM:SS  me|them  text". Remote text is sanitized.
func Render(m Message) string {
	who, text := "me  ", m.Text
	if m.Remote {
		who, text = "them", sanitize.Text(m.Text, MaxRemoteText)
	}
	return fmt.Sprintf("%s  %s  %s", timefmt.FormatClock(m.At), who, text)
}
