// Package session tracks conversation continuity for the relay.
//
// A Session stores the upstream conversation id, the parent message id used
// to thread the next turn, and the id of the message currently being
// generated (the target of a stop notification). A request cycle obtains a
// Run with Begin; identifier refreshes go through the Run and are dropped
// once the Run is no longer running, so a stream the caller abandoned cannot
// overwrite state.
//
// Cancellation is cooperative. Run.Cancel clears the running flag and sends
// at most one stop notification. It does not touch the upstream connection;
// the relay closes that itself during disconnect teardown.
//
// Registry keeps one Session per caller-supplied key so independent
// conversations never share state, and evicts idle sessions on a cron
// schedule.
package session
