// Package transducer rewrites one literal start/end marker pair into another
// while text arrives in arbitrarily sized fragments.
//
// The upstream chat backend wraps model reasoning in an HTML details block:
//
//	<details style="..." open> <summary> 思考中... </summary>
//	...reasoning...
//	</details>
//
// Clients of the relay expect the same content between <think> and </think>.
// A Transducer converts the stream incrementally:
//
//	t := transducer.New(transducer.DefaultMarkers())
//	for _, fragment := range fragments {
//	    out := t.Process(fragment)
//	    // emit out downstream
//	}
//	rest := t.Flush()
//
// # Buffering
//
// Inside a block the transducer holds back the longest suffix of its buffer
// that could be the beginning of the end marker, so an end marker split across
// fragments is recognised exactly once and never leaks partially. The start
// marker is not held back: a start marker split across two fragments passes
// through unrecognised. Flush returns whatever is still buffered and never
// closes an unterminated block.
//
// A Transducer is not safe for concurrent use. Each request cycle owns one.
package transducer
