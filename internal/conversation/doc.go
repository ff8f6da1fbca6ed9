// ABOUTME: Package doc for the conversation core
// ABOUTME: Renderer, context policy, handoff coordinator, orchestrator

// Package conversation contains the conversation core: the stream renderer
// that turns agent event sequences into minimal send/edit traffic, the
// context policy that decides when a session hands off, the handoff
// coordinator that summarizes and resets, and the orchestrator that runs
// one turn at a time per conversation.
package conversation
