package citation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parser is the demultiplexer state for one streaming response. The zero
// value is ready to use. A Parser is not safe for concurrent use.
type Parser struct {
	buf string

	// pending is set while buf starts with a marker whose payload has not
	// been closed yet.
	pending bool
}

// Feed appends an increment and returns the events it completes. Text
// before a marker is emitted trimmed; text with no marker after it stays
// buffered until the next marker or Flush. A marker whose closing brace has
// not arrived is kept in the buffer, so no event ever carries a partial
// marker.
func (p *Parser) Feed(increment string) []Event {
	p.buf += increment

	var events []Event
	for {
		i := strings.Index(p.buf, Marker)
		if i < 0 {
			break
		}
		before, after := p.buf[:i], p.buf[i+len(Marker):]
		if t := strings.TrimSpace(before); t != "" {
			events = append(events, Text(t))
		}

		end := strings.IndexByte(after, '}')
		if end < 0 {
			p.buf = Marker + after
			p.pending = true
			break
		}

		raw := after[:end+1]
		p.buf = after[end+1:]
		p.pending = false

		var c Citation
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			events = append(events, Error(fmt.Errorf("%w: %s", ErrMalformedCitation, raw)))
			continue
		}
		events = append(events, Cite(c))
	}
	return events
}

// Pending reports whether the buffer holds a marker awaiting its payload.
func (p *Parser) Pending() bool {
	return p.pending
}

// Flush returns the remaining buffered text as a final trimmed text event
// and resets the parser. An unterminated marker is emitted verbatim as text.
func (p *Parser) Flush() []Event {
	t := strings.TrimSpace(p.buf)
	p.buf, p.pending = "", false
	if t == "" {
		return nil
	}
	return []Event{Text(t)}
}
