package transducer

import "strings"

// DefaultStartMarker is the opening of the reasoning block emitted by the
// upstream chat backend.
const DefaultStartMarker = `<details style="color:gray;background-color: #f8f8f8;padding: 8px;border-radius: 4px;" open> <summary> 思考中... </summary>`

const (
	// DefaultEndMarker closes the upstream reasoning block.
	DefaultEndMarker = "</details>"

	// DefaultOutputStart replaces DefaultStartMarker in relayed text.
	DefaultOutputStart = "<think>"

	// DefaultOutputEnd replaces DefaultEndMarker in relayed text.
	DefaultOutputEnd = "</think>"
)

// Markers is the pair of literals to recognise in upstream text and the pair
// written in their place.
type Markers struct {
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	OutputStart string `yaml:"output_start"`
	OutputEnd   string `yaml:"output_end"`
}

// DefaultMarkers returns the upstream details markers mapped to think tags.
func DefaultMarkers() Markers {
	return Markers{
		Start:       DefaultStartMarker,
		End:         DefaultEndMarker,
		OutputStart: DefaultOutputStart,
		OutputEnd:   DefaultOutputEnd,
	}
}

// Mode is the matcher state.
type Mode int

const (
	// Passthrough means no block is open; text is searched for the start marker.
	Passthrough Mode = iota

	// InsideBlock means a start marker was seen and the end marker is pending.
	InsideBlock
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case InsideBlock:
		return "inside_block"
	default:
		return "unknown"
	}
}

// Transducer is a two-state, single-buffer streaming matcher.
type Transducer struct {
	markers Markers
	buffer  string
	mode    Mode
}

// New returns a Transducer in passthrough mode with an empty buffer.
func New(m Markers) *Transducer {
	return &Transducer{markers: m}
}

// Process appends fragment to the buffer and returns the text that is safe to
// emit now. Anything that might still turn out to be part of the end marker is
// kept for the next call.
func (t *Transducer) Process(fragment string) string {
	t.buffer += fragment

	var out strings.Builder

	if t.mode == Passthrough {
		idx := strings.Index(t.buffer, t.markers.Start)
		if idx < 0 {
			out.WriteString(t.buffer)
			t.buffer = ""
			return out.String()
		}
		out.WriteString(t.buffer[:idx])
		out.WriteString(t.markers.OutputStart)
		t.buffer = t.buffer[idx+len(t.markers.Start):]
		t.mode = InsideBlock
	}

	// Only reached in InsideBlock, either from a previous call or from the
	// transition above.
	idx := strings.Index(t.buffer, t.markers.End)
	if idx >= 0 {
		out.WriteString(t.buffer[:idx])
		out.WriteString(t.markers.OutputEnd)
		// The remainder is held, unscanned, until the next Process or Flush.
		t.buffer = t.buffer[idx+len(t.markers.End):]
		t.mode = Passthrough
		return out.String()
	}

	candidate := longestSuffixPrefix(t.buffer, t.markers.End)
	switch {
	case candidate == 0:
		out.WriteString(t.buffer)
		t.buffer = ""
	case candidate < len(t.buffer):
		cut := len(t.buffer) - candidate
		out.WriteString(t.buffer[:cut])
		t.buffer = t.buffer[cut:]
	default:
		// The whole buffer may be the start of the end marker.
	}

	return out.String()
}

// Flush returns everything still buffered and resets the transducer. It does
// not write OutputEnd for an unterminated block.
func (t *Transducer) Flush() string {
	out := t.buffer
	t.buffer = ""
	t.mode = Passthrough
	return out
}

// Mode reports the current matcher state.
func (t *Transducer) Mode() Mode {
	return t.mode
}

// Inside reports whether a reasoning block is open.
func (t *Transducer) Inside() bool {
	return t.mode == InsideBlock
}

// Buffered returns the number of bytes held back.
func (t *Transducer) Buffered() int {
	return len(t.buffer)
}

// longestSuffixPrefix returns the length of the longest non-empty suffix of s
// that is also a prefix of marker, or 0.
//
// This rescans the tail on every call. Markers are a few dozen bytes, so a
// precomputed failure function is not worth it yet.
func longestSuffixPrefix(s, marker string) int {
	max := len(marker)
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if s[len(s)-n:] == marker[:n] {
			return n
		}
	}
	return 0
}
