// Package upstream is the client for the chat-messages backend.
//
// A Client opens streaming chat requests and exposes the response as an
// EventStream of decoded records:
//
//	stream, err := client.OpenStream(ctx, &upstream.ChatRequest{Query: "hi"})
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//
//	for {
//		ev, err := stream.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Only "data:" lines are decoded. Records that are not JSON objects with a
// string "event" field come back as KindMalformed so callers can count and
// skip them; unrecognised event names come back as KindUnknown.
//
// Failures are typed: StatusError and AuthError for non-success responses,
// TimeoutError when headers do not arrive in time, TransportError when the
// backend is unreachable, and StreamError for read failures after the
// stream is open. Opening a stream retries transport errors and 5xx
// responses with exponential backoff.
//
// NotifyStop implements the session package's StopNotifier. It posts
// {base}/chat-messages/{id}/stop in the background and only logs failures.
package upstream
