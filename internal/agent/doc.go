// Package agent defines the event stream contract between loom and the
// agent process, and provides the subprocess-backed Channel implementation.
//
// # Exchange contract
//
// One Open call corresponds to one exchange: a lazy, finite sequence of
// typed events carried on a channel. Exactly one terminal event (result or
// error) ends the sequence and the channel is closed immediately after it;
// sequences never resume.
//
// # Session binding
//
// A text or result event may carry a session ID, emitted at most once per
// sequence. The caller persists it and passes it back as the resume hint on
// the next exchange.
package agent
