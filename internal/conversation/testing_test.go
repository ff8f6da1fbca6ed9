// ABOUTME: Shared in-memory fakes for conversation package tests
// ABOUTME: Scriptable surface and agent channel with recorded call logs

package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomhq/loom/internal/agent"
)

type sentMessage struct {
	Conversation string
	Text         string
	ID           string
}

type editedMessage struct {
	Conversation string
	MessageID    string
	Text         string
}

// fakeSurface records every outbound call and hands out sequential
// message IDs.
type fakeSurface struct {
	mu          sync.Mutex
	sends       []sentMessage
	edits       []editedMessage
	voiceSends  [][]byte
	typingCalls int

	attachments map[string][]byte

	// failNextSend makes the next Send return an error, once.
	failNextSend error
	failEdit     error
	failFetch    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{attachments: make(map[string][]byte)}
}

func (s *fakeSurface) Send(ctx context.Context, conversationID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSend != nil {
		err := s.failNextSend
		s.failNextSend = nil
		return "", err
	}
	id := fmt.Sprintf("msg-%d", len(s.sends)+1)
	s.sends = append(s.sends, sentMessage{Conversation: conversationID, Text: text, ID: id})
	return id, nil
}

func (s *fakeSurface) Edit(ctx context.Context, conversationID, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEdit != nil {
		return s.failEdit
	}
	s.edits = append(s.edits, editedMessage{Conversation: conversationID, MessageID: messageID, Text: text})
	return nil
}

func (s *fakeSurface) Typing(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typingCalls++
	return nil
}

func (s *fakeSurface) SendVoice(ctx context.Context, conversationID string, audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceSends = append(s.voiceSends, audio)
	return nil
}

func (s *fakeSurface) FetchAttachment(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFetch != nil {
		return nil, s.failFetch
	}
	data, ok := s.attachments[ref]
	if !ok {
		return nil, fmt.Errorf("no attachment %q", ref)
	}
	return data, nil
}

// sentTexts returns the text of every Send in order.
func (s *fakeSurface) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, len(s.sends))
	for i, m := range s.sends {
		texts[i] = m.Text
	}
	return texts
}

// fakeChannel serves a scripted event sequence per Open call, in order.
type fakeChannel struct {
	mu       sync.Mutex
	scripts  [][]agent.Event
	requests []agent.OpenRequest
	openErr  error

	summary      string
	summaryErr   error
	summarized   []string // session IDs passed to Summarize
}

func (c *fakeChannel) Open(ctx context.Context, req agent.OpenRequest) (<-chan agent.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.openErr != nil {
		return nil, c.openErr
	}
	var script []agent.Event
	if len(c.scripts) > 0 {
		script = c.scripts[0]
		c.scripts = c.scripts[1:]
	}
	out := make(chan agent.Event, len(script))
	for _, evt := range script {
		out <- evt
	}
	close(out)
	return out, nil
}

func (c *fakeChannel) Summarize(ctx context.Context, sessionID, workingContext string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarized = append(c.summarized, sessionID)
	if c.summaryErr != nil {
		return "", c.summaryErr
	}
	return c.summary, nil
}

// resultEvent builds a terminal result with the given usage.
func resultEvent(sessionID string, usage *agent.Usage) agent.Event {
	return agent.Event{Type: agent.EventResult, SessionID: sessionID, Usage: usage}
}

func textEvent(text string) agent.Event {
	return agent.Event{Type: agent.EventText, Text: text}
}
