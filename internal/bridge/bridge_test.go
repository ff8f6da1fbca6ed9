// ABOUTME: Tests for sync event filtering and inbound message mapping
// ABOUTME: Drives handleEvent directly with constructed Matrix events

package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/loomhq/loom/internal/conversation"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []*conversation.InboundMessage
	received chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{received: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg *conversation.InboundMessage) error {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
	h.received <- struct{}{}
	return nil
}

func (h *recordingHandler) wait(t *testing.T) *conversation.InboundMessage {
	t.Helper()
	select {
	case <-h.received:
	case <-time.After(time.Second):
		t.Fatal("handler never received a message")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages[len(h.messages)-1]
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func newTestBridge(handler Handler, opts Options) *Bridge {
	opts.Client = &mautrix.Client{UserID: id.UserID("@bot:example.org")}
	opts.Handler = handler
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(opts)
}

func textEvent(eventID, roomID, sender, body string) *event.Event {
	return &event.Event{
		ID:        id.EventID(eventID),
		RoomID:    id.RoomID(roomID),
		Sender:    id.UserID(sender),
		Timestamp: time.Now().UnixMilli(),
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func TestBridge_HandleEvent_DispatchesText(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{})
	defer b.seen.Close()

	evt := textEvent("$e1", "!room:example.org", "@user:example.org", "hello there")
	b.handleEvent(context.Background(), evt)

	msg := handler.wait(t)
	assert.Equal(t, "!room:example.org", msg.ConversationID)
	assert.Equal(t, "@user:example.org", msg.Sender)
	assert.Equal(t, "hello there", msg.Text)
	assert.Empty(t, msg.VoiceRef)
}

func TestBridge_HandleEvent_IgnoresOwnMessages(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{})
	defer b.seen.Close()

	b.handleEvent(context.Background(), textEvent("$e1", "!room:example.org", "@bot:example.org", "echo"))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, handler.count())
}

func TestBridge_HandleEvent_FiltersDisallowedRooms(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{AllowedRooms: []string{"!allowed:example.org"}})
	defer b.seen.Close()

	b.handleEvent(context.Background(), textEvent("$e1", "!other:example.org", "@user:example.org", "hi"))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, handler.count())

	b.handleEvent(context.Background(), textEvent("$e2", "!allowed:example.org", "@user:example.org", "hi"))
	handler.wait(t)
}

func TestBridge_HandleEvent_DeduplicatesByEventID(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{})
	defer b.seen.Close()

	evt := textEvent("$dup", "!room:example.org", "@user:example.org", "once")
	b.handleEvent(context.Background(), evt)
	b.handleEvent(context.Background(), evt)

	handler.wait(t)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, handler.count())
}

func TestBridge_HandleEvent_SkipsBackfilledHistory(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{})
	defer b.seen.Close()
	b.startedAt = time.Now()

	evt := textEvent("$old", "!room:example.org", "@user:example.org", "from last week")
	evt.Timestamp = time.Now().Add(-time.Hour).UnixMilli()
	b.handleEvent(context.Background(), evt)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, handler.count())
}

func TestBridge_HandleEvent_CommandPrefix(t *testing.T) {
	handler := newRecordingHandler()
	b := newTestBridge(handler, Options{CommandPrefix: "!loom"})
	defer b.seen.Close()

	b.handleEvent(context.Background(), textEvent("$e1", "!room:example.org", "@user:example.org", "unprefixed chatter"))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, handler.count())

	b.handleEvent(context.Background(), textEvent("$e2", "!room:example.org", "@user:example.org", "!loom what's up"))
	msg := handler.wait(t)
	assert.Equal(t, "what's up", msg.Text)
}

func TestBridge_BuildInbound_VoiceMessage(t *testing.T) {
	b := newTestBridge(newRecordingHandler(), Options{VoiceReplies: true})
	defer b.seen.Close()

	evt := &event.Event{
		ID:     id.EventID("$v1"),
		RoomID: id.RoomID("!room:example.org"),
		Sender: id.UserID("@user:example.org"),
	}
	content := &event.MessageEventContent{
		MsgType: event.MsgAudio,
		Body:    "voice message",
		URL:     "mxc://example.org/audio123",
	}

	msg := b.buildInbound(evt, content)
	require.NotNil(t, msg)
	assert.Equal(t, "mxc://example.org/audio123", msg.VoiceRef)
	assert.True(t, msg.WantVoiceReply)
	assert.Empty(t, msg.Text)
}

func TestBridge_BuildInbound_ImageWithCaptionAndThumbnail(t *testing.T) {
	b := newTestBridge(newRecordingHandler(), Options{})
	defer b.seen.Close()

	evt := &event.Event{
		ID:     id.EventID("$i1"),
		RoomID: id.RoomID("!room:example.org"),
		Sender: id.UserID("@user:example.org"),
	}
	content := &event.MessageEventContent{
		MsgType:  event.MsgImage,
		Body:     "what breed is this?",
		FileName: "dog.jpg",
		URL:      "mxc://example.org/full",
		Info: &event.FileInfo{
			MimeType:     "image/jpeg",
			Size:         400000,
			ThumbnailURL: "mxc://example.org/thumb",
			ThumbnailInfo: &event.FileInfo{
				MimeType: "image/jpeg",
				Size:     8000,
			},
		},
	}

	msg := b.buildInbound(evt, content)
	require.NotNil(t, msg)
	require.Len(t, msg.Images, 2)
	assert.Equal(t, "mxc://example.org/full", msg.Images[0].Ref)
	assert.Equal(t, 400000, msg.Images[0].Size)
	assert.Equal(t, "mxc://example.org/thumb", msg.Images[1].Ref)
	assert.Equal(t, "what breed is this?", msg.Caption)
}

func TestBridge_BuildInbound_FilenameBodyIsNotACaption(t *testing.T) {
	b := newTestBridge(newRecordingHandler(), Options{})
	defer b.seen.Close()

	evt := &event.Event{
		ID:     id.EventID("$i2"),
		RoomID: id.RoomID("!room:example.org"),
		Sender: id.UserID("@user:example.org"),
	}
	content := &event.MessageEventContent{
		MsgType:  event.MsgImage,
		Body:     "dog.jpg",
		FileName: "dog.jpg",
		URL:      "mxc://example.org/full",
	}

	msg := b.buildInbound(evt, content)
	require.NotNil(t, msg)
	assert.Empty(t, msg.Caption)
}

func TestBridge_BuildInbound_IgnoresUnsupportedTypes(t *testing.T) {
	b := newTestBridge(newRecordingHandler(), Options{})
	defer b.seen.Close()

	evt := &event.Event{ID: id.EventID("$x"), RoomID: id.RoomID("!r:x"), Sender: id.UserID("@u:x")}
	msg := b.buildInbound(evt, &event.MessageEventContent{MsgType: event.MsgLocation, Body: "here"})
	assert.Nil(t, msg)
}
