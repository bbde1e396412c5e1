package upstream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

type failingReader struct {
	data string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func TestEventReader_Next(t *testing.T) {
	raw := strings.Join([]string{
		`event: ping`,
		``,
		`data: {"event":"workflow_started","conversation_id":"c1"}`,
		``,
		`: keep-alive`,
		`data: {"event":"message","answer":"Hi","message_id":"m1"}`,
		`data:`,
		`data: not json`,
		`data:{"event":"message_end","message_id":"m1"}`,
		``,
	}, "\n")

	r := newEventReader(io.NopCloser(strings.NewReader(raw)))

	var kinds []Kind
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []Kind{KindWorkflowStarted, KindMessage, KindMalformed, KindMessageEnd}, kinds)
}

func TestEventReader_LargeLine(t *testing.T) {
	answer := strings.Repeat("x", 200*1024)
	raw := `data: {"event":"message","answer":"` + answer + `"}` + "\n"

	r := newEventReader(io.NopCloser(strings.NewReader(raw)))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, answer, ev.Answer)
}

func TestEventReader_ReadError(t *testing.T) {
	cause := errors.New("connection reset")
	body := &failingReader{
		data: `data: {"event":"message","answer":"a"}` + "\n",
		err:  cause,
	}

	r := newEventReader(io.NopCloser(body))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Answer)

	_, err = r.Next()
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, cause)
}

func TestEventReader_CloseOnce(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("")}
	r := newEventReader(body)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, body.closed)
}
