// ABOUTME: Outbound chat surface contract
// ABOUTME: Send/edit/typing/media operations consumed by the renderer and orchestrator

package chat

import "context"

// Surface is the outbound boundary to a chat platform. Edit is best-effort
// by contract: callers log and continue on edit failure rather than abort.
type Surface interface {
	// Send posts a new message and returns its platform message ID.
	Send(ctx context.Context, conversationID, text string) (string, error)
	// Edit replaces the text of a previously sent message in place.
	Edit(ctx context.Context, conversationID, messageID, text string) error
	// Typing refreshes the typing indicator; fire-and-forget.
	Typing(ctx context.Context, conversationID string) error
	// SendVoice posts audio as a voice attachment.
	SendVoice(ctx context.Context, conversationID string, audio []byte) error
	// FetchAttachment downloads attachment bytes by platform reference.
	FetchAttachment(ctx context.Context, ref string) ([]byte, error)
}
