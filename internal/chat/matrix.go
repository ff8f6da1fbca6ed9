// ABOUTME: Matrix implementation of the outbound chat surface using mautrix
// ABOUTME: Markdown is rendered to formatted_body; edits use m.replace relations

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// typingTimeout is the duration the typing indicator shows.
const typingTimeout = 30 * time.Second

// networkTimeout bounds typing-indicator API calls so they can't hang a turn.
const networkTimeout = 10 * time.Second

// sendTimeout bounds message sends (messages can be large).
const sendTimeout = 30 * time.Second

// Matrix implements Surface against a Matrix homeserver.
type Matrix struct {
	client *mautrix.Client
	logger *slog.Logger
}

// NewMatrix wraps an existing mautrix client as a chat surface.
func NewMatrix(client *mautrix.Client, logger *slog.Logger) *Matrix {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matrix{
		client: client,
		logger: logger.With("component", "chat"),
	}
}

// Send posts a markdown-formatted message and returns its event ID.
func (m *Matrix) Send(ctx context.Context, conversationID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	content := messageContent(text)
	resp, err := m.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, &content)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	return resp.EventID.String(), nil
}

// Edit replaces a previously sent message via an m.replace relation.
func (m *Matrix) Edit(ctx context.Context, conversationID, messageID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	content := messageContent(text)
	content.SetEdit(id.EventID(messageID))
	if _, err := m.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// Typing refreshes the typing indicator.
func (m *Matrix) Typing(ctx context.Context, conversationID string) error {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	if _, err := m.client.UserTyping(ctx, id.RoomID(conversationID), true, typingTimeout); err != nil {
		return fmt.Errorf("setting typing indicator: %w", err)
	}
	return nil
}

// SendVoice uploads audio and posts it as an m.audio message.
func (m *Matrix) SendVoice(ctx context.Context, conversationID string, audio []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	upload, err := m.client.UploadBytes(ctx, audio, "audio/ogg")
	if err != nil {
		return fmt.Errorf("uploading voice audio: %w", err)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgAudio,
		Body:    "voice message",
		URL:     upload.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: "audio/ogg",
			Size:     len(audio),
		},
	}
	if _, err := m.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("sending voice message: %w", err)
	}
	return nil
}

// FetchAttachment downloads media bytes by mxc:// URI.
func (m *Matrix) FetchAttachment(ctx context.Context, ref string) ([]byte, error) {
	uri, err := id.ParseContentURI(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing attachment ref %q: %w", ref, err)
	}

	data, err := m.client.DownloadBytes(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("downloading attachment: %w", err)
	}
	return data, nil
}

// messageContent builds a text message, attaching an HTML body when the
// markdown rendering differs from the plain text.
func messageContent(text string) event.MessageEventContent {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if html, ok := RenderMarkdown(text); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}
	return content
}
