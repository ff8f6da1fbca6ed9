// ABOUTME: Matrix sync bridge: inbound events to orchestrator messages
// ABOUTME: Filters own/disallowed/duplicate events; dispatch never blocks sync

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"

	"github.com/loomhq/loom/internal/conversation"
	"github.com/loomhq/loom/internal/dedupe"
)

// dedupeTTL is how long processed event IDs are remembered. Matrix can
// redeliver events across sync reconnects well after the original delivery.
const dedupeTTL = 10 * time.Minute

// dedupeMax bounds the dedupe cache size.
const dedupeMax = 4096

// Handler consumes bridged messages; satisfied by the orchestrator.
type Handler interface {
	HandleMessage(ctx context.Context, msg *conversation.InboundMessage) error
}

// Options configures a Bridge.
type Options struct {
	Client  *mautrix.Client
	Handler Handler
	// AllowedRooms restricts which rooms are bridged; empty allows all.
	AllowedRooms []string
	// CommandPrefix, when set, requires and strips a leading prefix on
	// text messages (for bots sharing busy rooms).
	CommandPrefix string
	// VoiceReplies makes voice messages answered with voice.
	VoiceReplies bool
	Logger       *slog.Logger
}

// Bridge connects the Matrix sync loop to the orchestrator.
type Bridge struct {
	client  *mautrix.Client
	handler Handler
	seen    *dedupe.Cache
	logger  *slog.Logger

	allowedRooms  map[string]bool
	commandPrefix string
	voiceReplies  bool
	startedAt     time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bridge over an existing mautrix client.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]bool, len(opts.AllowedRooms))
	for _, room := range opts.AllowedRooms {
		allowed[room] = true
	}

	return &Bridge{
		client:        opts.Client,
		handler:       opts.Handler,
		seen:          dedupe.New(dedupeTTL, dedupeMax),
		logger:        logger.With("component", "bridge"),
		allowedRooms:  allowed,
		commandPrefix: opts.CommandPrefix,
		voiceReplies:  opts.VoiceReplies,
		ctx:           context.Background(),
	}
}

// Run starts syncing and blocks until the context is cancelled or the sync
// loop fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	defer b.seen.Close()

	b.startedAt = time.Now()

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleEvent)

	b.logger.Info("bridge connecting", "user_id", b.client.UserID)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(b.ctx)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("bridge shutting down")
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleEvent filters one sync event and dispatches it off the sync loop.
func (b *Bridge) handleEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == b.client.UserID {
		return
	}
	if len(b.allowedRooms) > 0 && !b.allowedRooms[evt.RoomID.String()] {
		b.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID)
		return
	}
	// Backfilled history from before this process started is not a request.
	if time.UnixMilli(evt.Timestamp).Before(b.startedAt) {
		return
	}
	if !b.seen.CheckAndMark(evt.ID.String()) {
		b.logger.Debug("ignoring duplicate event", "event_id", evt.ID)
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	msg := b.buildInbound(evt, content)
	if msg == nil {
		return
	}

	b.logger.Info("message received",
		"room", evt.RoomID,
		"sender", evt.Sender,
		"voice", msg.VoiceRef != "",
		"images", len(msg.Images),
	)

	// Dispatch off the sync goroutine; the orchestrator serializes turns
	// per conversation itself.
	go func() {
		if err := b.handler.HandleMessage(b.ctx, msg); err != nil {
			b.logger.Error("turn failed",
				"room", evt.RoomID,
				"sender", evt.Sender,
				"error", err,
			)
		}
	}()
}

// buildInbound maps a Matrix message event to an orchestrator message.
// Returns nil for message types the bridge does not carry.
func (b *Bridge) buildInbound(evt *event.Event, content *event.MessageEventContent) *conversation.InboundMessage {
	msg := &conversation.InboundMessage{
		ConversationID: evt.RoomID.String(),
		Sender:         evt.Sender.String(),
	}

	switch content.MsgType {
	case event.MsgText:
		body := content.Body
		if b.commandPrefix != "" {
			if !strings.HasPrefix(body, b.commandPrefix) {
				return nil
			}
			body = strings.TrimSpace(strings.TrimPrefix(body, b.commandPrefix))
		}
		if body == "" {
			return nil
		}
		msg.Text = body

	case event.MsgAudio:
		if content.URL == "" {
			return nil
		}
		msg.VoiceRef = string(content.URL)
		msg.WantVoiceReply = b.voiceReplies

	case event.MsgImage:
		if content.URL == "" {
			return nil
		}
		full := conversation.ImageVariant{Ref: string(content.URL)}
		if content.Info != nil {
			full.MimeType = content.Info.MimeType
			full.Size = content.Info.Size
		}
		msg.Images = append(msg.Images, full)
		if content.Info != nil && content.Info.ThumbnailURL != "" {
			thumb := conversation.ImageVariant{Ref: string(content.Info.ThumbnailURL)}
			if content.Info.ThumbnailInfo != nil {
				thumb.MimeType = content.Info.ThumbnailInfo.MimeType
				thumb.Size = content.Info.ThumbnailInfo.Size
			}
			msg.Images = append(msg.Images, thumb)
		}
		// The body doubles as the filename for caption-less uploads.
		if content.Body != "" && content.Body != content.FileName {
			msg.Caption = content.Body
		}

	default:
		return nil
	}

	return msg
}
