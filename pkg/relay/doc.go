// Package relay drives one chat request cycle from the upstream event stream
// to the downstream caller.
//
// A Pipeline opens the upstream stream with the session's continuity
// identifiers, dispatches each event to the session run, and rewrites the
// answer text through a fresh transducer:
//
//	workflow_started  records the conversation id
//	message           records conversation and message ids, emits one chunk
//	message_end       records the parent message id
//	anything else     skipped
//
// Stream writes chunks as they arrive and ends with a terminal frame.
// Upstream failures become one error chunk plus the terminal frame. A caller
// that goes away cancels the run, which asks the upstream to stop the
// message in flight.
//
// Complete consumes the same events but rewrites the accumulated answer once
// at the end and is not cancelled by the caller.
package relay
