// ABOUTME: CLIChannel runs the agent as a subprocess emitting JSON-lines events
// ABOUTME: One process per exchange; the decoder stops at the first terminal event

package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// summaryPrompt asks the bound session for a carry-over summary before a
// context handoff.
const summaryPrompt = "Summarize this conversation so far: key decisions, open tasks, " +
	"and anything the next session needs to continue seamlessly. Reply with the summary only."

// maxLineSize bounds a single JSON-lines event (1 MiB).
const maxLineSize = 1 << 20

// CLIChannel implements Channel by spawning the configured agent binary once
// per exchange. The process writes one JSON object per line on stdout:
//
//	{"type":"text","text":"Hello","session_id":"..."}
//	{"type":"tool_call","tool":{"name":"search","input":"..."}}
//	{"type":"tool_result"}
//	{"type":"result","usage":{"input_tokens":1,"output_tokens":2,"context_window":3}}
//	{"type":"error","message":"..."}
type CLIChannel struct {
	binary string
	args   []string
	logger *slog.Logger
}

// NewCLIChannel creates a channel that spawns the given binary with the
// given base arguments for every exchange.
func NewCLIChannel(binary string, args []string, logger *slog.Logger) *CLIChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIChannel{
		binary: binary,
		args:   args,
		logger: logger.With("component", "agent"),
	}
}

// Open spawns the agent process and returns its event stream. The returned
// channel is closed after the terminal event; if the process exits without
// one, a synthesized EventError terminates the sequence.
func (c *CLIChannel) Open(ctx context.Context, req OpenRequest) (<-chan Event, error) {
	args := append([]string{}, c.args...)
	args = append(args, "--output-format", "stream-json")
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", req.ResumeSessionID)
	}

	attachDir, attachPaths, err := writeAttachments(req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("writing attachments: %w", err)
	}
	for _, p := range attachPaths {
		args = append(args, "--attach", p)
	}
	args = append(args, "--prompt", req.Prompt)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	if req.WorkingContext != "" {
		cmd.Dir = req.WorkingContext
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		removeAttachDir(attachDir)
		return nil, fmt.Errorf("opening agent stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		removeAttachDir(attachDir)
		return nil, fmt.Errorf("starting agent: %w", err)
	}

	c.logger.Debug("agent exchange opened",
		"binary", c.binary,
		"resume", req.ResumeSessionID,
		"working_context", req.WorkingContext,
	)

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer removeAttachDir(attachDir)

		terminal := c.decode(stdout, events)

		// Reap the process. A failed exit after a clean terminal event is
		// logged but not surfaced; the sequence contract was already met.
		waitErr := cmd.Wait()
		if !terminal {
			msg := "agent exited without a terminal event"
			if waitErr != nil {
				msg = fmt.Sprintf("agent exited: %v", waitErr)
			}
			events <- Event{Type: EventError, Err: msg}
			return
		}
		if waitErr != nil {
			c.logger.Warn("agent process exit after terminal event", "error", waitErr)
		}
	}()

	return events, nil
}

// decode reads JSON lines into events until the terminal event or EOF.
// Returns true when a terminal event was emitted.
func (c *CLIChannel) decode(r io.Reader, events chan<- Event) bool {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		evt, err := ParseEvent([]byte(line))
		if err != nil {
			c.logger.Warn("skipping malformed agent event", "error", err)
			continue
		}

		events <- evt
		if evt.Terminal() {
			// Nothing follows a terminal event; drain the rest so the
			// process can flush and exit.
			for scanner.Scan() {
			}
			return true
		}
	}
	return false
}

// wireEvent is the JSON-lines representation of an Event.
type wireEvent struct {
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Tool      *ToolCall `json:"tool,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ParseEvent decodes one JSON-lines event.
func ParseEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}

	switch EventType(w.Type) {
	case EventText:
		return Event{Type: EventText, Text: w.Text, SessionID: w.SessionID}, nil
	case EventToolCall:
		if w.Tool == nil {
			return Event{}, fmt.Errorf("tool_call event missing tool descriptor")
		}
		return Event{Type: EventToolCall, Tool: w.Tool}, nil
	case EventToolResult:
		return Event{Type: EventToolResult}, nil
	case EventResult:
		return Event{Type: EventResult, Usage: w.Usage, SessionID: w.SessionID}, nil
	case EventError:
		return Event{Type: EventError, Err: w.Message}, nil
	default:
		return Event{}, fmt.Errorf("unknown event type %q", w.Type)
	}
}

// Summarize runs a one-shot exchange against the bound session and collects
// its text output.
func (c *CLIChannel) Summarize(ctx context.Context, sessionID, workingContext string) (string, error) {
	events, err := c.Open(ctx, OpenRequest{
		Prompt:          summaryPrompt,
		WorkingContext:  workingContext,
		ResumeSessionID: sessionID,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for evt := range events {
		switch evt.Type {
		case EventText:
			b.WriteString(evt.Text)
		case EventError:
			return "", fmt.Errorf("summary exchange failed: %s", evt.Err)
		}
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", fmt.Errorf("summary exchange produced no text")
	}
	return summary, nil
}

// writeAttachments persists attachment bytes to a temp dir so they can be
// handed to the agent process by path. Returns the dir (may be empty) and
// the file paths.
func writeAttachments(attachments []Attachment) (string, []string, error) {
	if len(attachments) == 0 {
		return "", nil, nil
	}

	dir, err := os.MkdirTemp("", "loom-attach-")
	if err != nil {
		return "", nil, err
	}

	paths := make([]string, 0, len(attachments))
	for i, att := range attachments {
		name := att.Filename
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i)
		}
		path := filepath.Join(dir, filepath.Base(name))
		if err := os.WriteFile(path, att.Data, 0600); err != nil {
			removeAttachDir(dir)
			return "", nil, err
		}
		paths = append(paths, path)
	}
	return dir, paths, nil
}

func removeAttachDir(dir string) {
	if dir != "" {
		os.RemoveAll(dir)
	}
}
