package upstream

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

const (
	dataPrefix = "data:"

	// maxLineSize bounds a single event line. message_end records can carry
	// retriever metadata well past bufio's 64KB default.
	maxLineSize = 4 << 20
)

// EventStream yields upstream event records in arrival order.
type EventStream interface {
	// Next blocks until the next data record arrives. It returns io.EOF when
	// the upstream closes the stream normally.
	Next() (*Event, error)

	// Close releases the underlying connection. Closing aborts a Next that is
	// blocked on the network.
	Close() error
}

// eventReader reads "data:" lines from a line-delimited event stream.
type eventReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

func newEventReader(body io.ReadCloser) *eventReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &eventReader{
		body:    body,
		scanner: scanner,
	}
}

// Next implements EventStream.
func (r *eventReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank separators, comments, and "event:" lines carry nothing we use.
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" {
			continue
		}

		return DecodeEvent(payload), nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, &StreamError{Message: "failed to read stream", Cause: err}
	}
	return nil, io.EOF
}

// Close implements EventStream.
func (r *eventReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
