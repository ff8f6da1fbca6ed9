// ABOUTME: Conversation orchestrator: per-message entry point for the bridge
// ABOUTME: Serializes turns per conversation and drives renderer, policy, handoff

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/chat"
	"github.com/loomhq/loom/internal/skills"
	"github.com/loomhq/loom/internal/store"
)

const (
	// resetCommand deletes the session record on request.
	resetCommand = "/reset"
	// taskPrefix marks an out-of-band task submission.
	taskPrefix = "/task"
	// continuationKeyword confirms a pending context warning. Matched as a
	// case-insensitive substring, so unrelated messages containing the word
	// also trigger it; that looseness is deliberate and pinned by tests.
	continuationKeyword = "continue"

	// defaultImagePrompt is used when an image arrives with no text at all.
	defaultImagePrompt = "Describe and analyze the attached image."

	// maxSkills bounds prompt augmentation per turn.
	maxSkills = 3
)

const (
	resetNotice         = "Session reset. The next message starts fresh."
	taskNotice          = "Task captured on the board."
	handoffNotice       = "⚠ Context budget reached, handing off to a fresh session automatically."
	warnNotice          = "⚠ Context window nearly exhausted. Reply with \"continue\" to summarize and carry on in a fresh session."
	transcribeNotice    = "Couldn't transcribe that voice message, sorry. Please try again or type it out."
	attachmentNotice    = "Couldn't download that attachment, sorry. Please try again."
	agentFailureNotice  = "Couldn't reach the agent. Please try again in a moment."
	noSessionNotice     = "There's no active session to continue. Just send your next message."
	continuationOpening = "Continuing from a previous session. Summary of the prior context:\n\n"
)

// Speech is the voice collaborator as consumed by the orchestrator.
type Speech interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageVariant is one resolution of an inbound image attachment.
type ImageVariant struct {
	Ref      string
	MimeType string
	Size     int // bytes; the largest variant is forwarded to the agent
}

// InboundMessage is one user message as delivered by the bridge.
type InboundMessage struct {
	ConversationID string
	Sender         string
	Text           string
	// VoiceRef points at voice audio to transcribe; empty for text turns.
	VoiceRef string
	// Images holds resolution variants of an attached image, if any.
	Images  []ImageVariant
	Caption string
	// WantVoiceReply asks for the response to also be spoken.
	WantVoiceReply bool
}

// Orchestrator handles one inbound message at a time per conversation,
// composing the renderer, context policy, and handoff coordinator.
type Orchestrator struct {
	store    store.Store
	channel  agent.Channel
	surface  chat.Surface
	renderer *Renderer
	handoff  *Coordinator
	pending  *PendingSet
	speech   Speech          // nil when voice is disabled
	skills   *skills.Library // nil when no skill library is configured
	logger   *slog.Logger

	workingContext  string
	exchangeTimeout time.Duration // zero means no cutoff

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures an Orchestrator.
type Options struct {
	Store   store.Store
	Channel agent.Channel
	Surface chat.Surface
	Speech  Speech
	Skills  *skills.Library
	// WorkingContext is the workspace handed to new sessions.
	WorkingContext string
	// ExchangeTimeout bounds one exchange; zero disables the cutoff.
	ExchangeTimeout time.Duration
	Logger          *slog.Logger
}

// NewOrchestrator wires the conversation core.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:           opts.Store,
		channel:         opts.Channel,
		surface:         opts.Surface,
		renderer:        NewRenderer(opts.Surface, logger),
		handoff:         NewCoordinator(opts.Channel, opts.Store, opts.Surface, logger),
		pending:         NewPendingSet(),
		speech:          opts.Speech,
		skills:          opts.Skills,
		workingContext:  opts.WorkingContext,
		exchangeTimeout: opts.ExchangeTimeout,
		logger:          logger.With("component", "orchestrator"),
		locks:           make(map[string]*sync.Mutex),
	}
}

// Pending exposes the continuation set (used by the command listener and tests).
func (o *Orchestrator) Pending() *PendingSet {
	return o.pending
}

// HandleMessage processes one inbound message to completion. Turns for the
// same conversation are serialized; turns for different conversations run
// concurrently.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *InboundMessage) error {
	unlock := o.lockConversation(msg.ConversationID)
	defer unlock()

	text := strings.TrimSpace(msg.Text)

	if text == resetCommand {
		return o.handleReset(ctx, msg.ConversationID)
	}

	if o.pending.Contains(msg.ConversationID) && containsContinuation(text) {
		o.pending.Remove(msg.ConversationID)
		return o.handleContinuation(ctx, msg.ConversationID)
	}

	if strings.HasPrefix(text, taskPrefix+" ") || text == taskPrefix {
		return o.handleTask(ctx, msg.ConversationID, strings.TrimSpace(strings.TrimPrefix(text, taskPrefix)))
	}

	return o.handleTurn(ctx, msg, text)
}

// handleReset deletes the session record and acknowledges.
func (o *Orchestrator) handleReset(ctx context.Context, conversationID string) error {
	if err := o.store.DeleteSession(ctx, conversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.pending.Remove(conversationID)
	if _, err := o.surface.Send(ctx, conversationID, resetNotice); err != nil {
		o.logger.Warn("reset acknowledgement failed", "conversation", conversationID, "error", err)
	}
	o.logger.Info("session reset by user", "conversation", conversationID)
	return nil
}

// handleContinuation runs the user-confirmed handoff: summarize, reset, and
// seed a fresh exchange with the summary. Bypasses normal message forwarding.
func (o *Orchestrator) handleContinuation(ctx context.Context, conversationID string) error {
	sess, err := o.store.GetSession(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		if _, sendErr := o.surface.Send(ctx, conversationID, noSessionNotice); sendErr != nil {
			o.logger.Warn("continuation notice failed", "conversation", conversationID, "error", sendErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	summary, err := o.handoff.SummarizeAndReset(ctx, conversationID, sess.AgentSessionID, sess.WorkingContext)
	if err != nil {
		return err
	}

	result, err := o.runExchange(ctx, conversationID, agent.OpenRequest{
		Prompt:         continuationOpening + summary,
		WorkingContext: sess.WorkingContext,
	})
	if err != nil || result.Errored {
		return err
	}

	return o.persistExchange(ctx, conversationID, result, false)
}

// handleTask forwards an out-of-band task submission to the kanban board.
func (o *Orchestrator) handleTask(ctx context.Context, conversationID, body string) error {
	title := body
	if title == "" {
		title = "Untitled task"
	}
	if cut := strings.IndexByte(title, '\n'); cut > 0 {
		title = title[:cut]
	}

	now := time.Now()
	card := &store.Card{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		Column:    "backlog",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateCard(ctx, card); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if _, err := o.surface.Send(ctx, conversationID, taskNotice); err != nil {
		o.logger.Warn("task acknowledgement failed", "conversation", conversationID, "error", err)
	}
	return nil
}

// handleTurn is the normal streaming path.
func (o *Orchestrator) handleTurn(ctx context.Context, msg *InboundMessage, text string) error {
	sess, err := o.ensureSession(ctx, msg.ConversationID)
	if err != nil {
		return err
	}

	if err := o.surface.Typing(ctx, msg.ConversationID); err != nil {
		o.logger.Debug("typing refresh failed", "conversation", msg.ConversationID, "error", err)
	}

	transcript, err := o.transcribeVoice(ctx, msg)
	if err != nil {
		return err
	}

	attachments, err := o.fetchImage(ctx, msg)
	if err != nil {
		return err
	}

	prompt := firstNonEmpty(transcript, text, strings.TrimSpace(msg.Caption))
	if prompt == "" {
		if len(attachments) == 0 {
			return nil // nothing to say, nothing attached
		}
		prompt = defaultImagePrompt
	}
	prompt = o.augmentPrompt(ctx, prompt)

	result, err := o.runExchange(ctx, msg.ConversationID, agent.OpenRequest{
		Prompt:          prompt,
		WorkingContext:  sess.WorkingContext,
		ResumeSessionID: sess.AgentSessionID,
		Attachments:     attachments,
	})
	if err != nil {
		return err
	}
	if result.Errored {
		// The error event has been rendered; no usage handling on this path.
		return nil
	}

	if err := o.persistExchange(ctx, msg.ConversationID, result, true); err != nil {
		return err
	}

	o.sendVoiceReply(ctx, msg, result)
	return nil
}

// runExchange opens an agent exchange and renders its event stream.
func (o *Orchestrator) runExchange(ctx context.Context, conversationID string, req agent.OpenRequest) (*RenderResult, error) {
	exchangeCtx := ctx
	if o.exchangeTimeout > 0 {
		var cancel context.CancelFunc
		exchangeCtx, cancel = context.WithTimeout(ctx, o.exchangeTimeout)
		defer cancel()
	}

	events, err := o.channel.Open(exchangeCtx, req)
	if err != nil {
		if _, sendErr := o.surface.Send(ctx, conversationID, agentFailureNotice); sendErr != nil {
			o.logger.Error("agent failure notice failed", "conversation", conversationID, "error", sendErr)
		}
		return nil, fmt.Errorf("opening exchange: %w", err)
	}

	result := o.renderer.Render(ctx, conversationID, events)
	if exchangeCtx.Err() != nil && ctx.Err() == nil {
		// Timed-out exchange: the renderer surfaced whatever the process
		// reported on its way down; never persist a partial session id.
		result.Errored = true
	}
	return result, nil
}

// persistExchange stores the bound session id and usage, then applies the
// context policy when runPolicy is set.
func (o *Orchestrator) persistExchange(ctx context.Context, conversationID string, result *RenderResult, runPolicy bool) error {
	sess, err := o.store.GetSession(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if result.SessionID != "" {
		sess.AgentSessionID = result.SessionID
	}
	sess.LastActiveAt = time.Now()
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if result.Usage == nil || result.Usage.ContextWindow <= 0 {
		return nil
	}

	percent := result.Usage.Percent()
	if err := o.store.UpdateUsage(ctx, conversationID, percent); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.logger.Debug("context usage recorded", "conversation", conversationID, "percent", percent)

	if !runPolicy {
		return nil
	}

	switch Classify(percent) {
	case ActionHandoff:
		if _, err := o.surface.Send(ctx, conversationID, handoffNotice); err != nil {
			o.logger.Warn("handoff notice failed", "conversation", conversationID, "error", err)
		}
		if _, err := o.handoff.SummarizeAndReset(ctx, conversationID, sess.AgentSessionID, sess.WorkingContext); err != nil {
			return err
		}
		// A handoff supersedes any outstanding warning.
		o.pending.Remove(conversationID)

	case ActionWarn:
		if _, err := o.surface.Send(ctx, conversationID, warnNotice); err != nil {
			o.logger.Warn("context warning failed", "conversation", conversationID, "error", err)
		}
		o.pending.Add(conversationID)
	}

	return nil
}

// ensureSession loads the session record, creating it on first contact.
func (o *Orchestrator) ensureSession(ctx context.Context, conversationID string) (*store.ConversationSession, error) {
	sess, err := o.store.GetSession(ctx, conversationID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	sess = &store.ConversationSession{
		ConversationID: conversationID,
		WorkingContext: o.workingContext,
		LastActiveAt:   time.Now(),
	}
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.logger.Info("session created", "conversation", conversationID)
	return sess, nil
}

// transcribeVoice turns inbound voice audio into text. Failure aborts the
// turn after notifying the user; no agent exchange is started.
func (o *Orchestrator) transcribeVoice(ctx context.Context, msg *InboundMessage) (string, error) {
	if msg.VoiceRef == "" {
		return "", nil
	}

	fail := func(cause error) (string, error) {
		if _, err := o.surface.Send(ctx, msg.ConversationID, transcribeNotice); err != nil {
			o.logger.Error("transcription notice failed", "conversation", msg.ConversationID, "error", err)
		}
		return "", fmt.Errorf("%w: %v", ErrTranscription, cause)
	}

	if o.speech == nil {
		return fail(errors.New("voice support disabled"))
	}

	audio, err := o.surface.FetchAttachment(ctx, msg.VoiceRef)
	if err != nil {
		return fail(err)
	}

	transcript, err := o.speech.Transcribe(ctx, audio)
	if err != nil {
		return fail(err)
	}
	return strings.TrimSpace(transcript), nil
}

// fetchImage downloads the largest variant of an attached image. A failed
// download aborts the turn after notifying the user.
func (o *Orchestrator) fetchImage(ctx context.Context, msg *InboundMessage) ([]agent.Attachment, error) {
	if len(msg.Images) == 0 {
		return nil, nil
	}

	largest := msg.Images[0]
	for _, v := range msg.Images[1:] {
		if v.Size > largest.Size {
			largest = v
		}
	}

	data, err := o.surface.FetchAttachment(ctx, largest.Ref)
	if err != nil {
		if _, sendErr := o.surface.Send(ctx, msg.ConversationID, attachmentNotice); sendErr != nil {
			o.logger.Error("attachment notice failed", "conversation", msg.ConversationID, "error", sendErr)
		}
		return nil, fmt.Errorf("fetching image attachment: %w", err)
	}

	return []agent.Attachment{{Filename: "image", MimeType: largest.MimeType, Data: data}}, nil
}

// augmentPrompt appends matching skill fragments and stored corrections.
func (o *Orchestrator) augmentPrompt(ctx context.Context, prompt string) string {
	var extras []string

	for _, s := range o.skills.Select(prompt, maxSkills) {
		extras = append(extras, s.Prompt)
	}

	corrections, err := o.store.ListCorrections(ctx)
	if err != nil {
		o.logger.Warn("listing corrections failed", "error", err)
	} else {
		lower := strings.ToLower(prompt)
		for _, c := range corrections {
			if c.Pattern != "" && strings.Contains(lower, strings.ToLower(c.Pattern)) {
				extras = append(extras, c.Guidance)
			}
		}
	}

	if len(extras) == 0 {
		return prompt
	}
	return prompt + "\n\nGuidance:\n- " + strings.Join(extras, "\n- ")
}

// sendVoiceReply speaks the response when requested. Synthesis failure is
// logged and skipped; it never fails the turn.
func (o *Orchestrator) sendVoiceReply(ctx context.Context, msg *InboundMessage, result *RenderResult) {
	if !msg.WantVoiceReply || result.FullText == "" || o.speech == nil {
		return
	}

	audio, err := o.speech.Synthesize(ctx, result.FullText)
	if err != nil {
		o.logger.Warn("voice reply skipped", "conversation", msg.ConversationID, "error", fmt.Errorf("%w: %v", ErrSynthesis, err))
		return
	}
	if err := o.surface.SendVoice(ctx, msg.ConversationID, audio); err != nil {
		o.logger.Warn("voice reply send failed", "conversation", msg.ConversationID, "error", err)
	}
}

// lockConversation serializes turns per conversation id.
func (o *Orchestrator) lockConversation(conversationID string) func() {
	o.mu.Lock()
	lock, ok := o.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[conversationID] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// containsContinuation reports whether the message confirms a pending
// warning. Plain substring match.
func containsContinuation(text string) bool {
	return strings.Contains(strings.ToLower(text), continuationKeyword)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
