// ABOUTME: Failure taxonomy for conversation turns
// ABOUTME: Sentinels let callers branch with errors.Is on the failure class

package conversation

import "errors"

var (
	// ErrTranscription means voice input could not be transcribed; the turn
	// is aborted before any agent exchange.
	ErrTranscription = errors.New("transcription failed")

	// ErrSynthesis means the voice reply could not be synthesized; the turn
	// still completes.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrSummary means the handoff summary request failed; continuity was
	// NOT preserved and the user has been told.
	ErrSummary = errors.New("handoff summary failed")

	// ErrPersistence means a session write failed; the turn must not be
	// reported as success.
	ErrPersistence = errors.New("session persistence failed")
)
