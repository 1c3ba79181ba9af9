// Package citation splits a model's incremental answer stream into ordered
// text, citation and error events.
//
// The model marks each citation inline with the literal Marker followed by
// one JSON object:
//
//	The cat is fluffy. [__CITATIONS__]{"doc_id":"1","filename":"a.pdf","snippet":"s"}
//
// Marker and payload may be split across any number of stream increments.
package citation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Marker precedes every inline citation payload.
const Marker = "[__CITATIONS__]"

var (
	// ErrMalformedCitation marks a citation payload that is not valid JSON.
	// It is reported as an error event and the stream continues.
	ErrMalformedCitation = errors.New("malformed citation")

	// ErrModelStreamFailed marks a failure of the model stream. It ends the
	// event sequence.
	ErrModelStreamFailed = errors.New("model stream failed")
)

// Kind is the wire type of an event.
type Kind string

const (
	KindText     Kind = "chunk"
	KindCitation Kind = "citations"
	KindError    Kind = "error"
)

// Citation references the document fragment an answer drew on.
type Citation struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

// UnmarshalJSON accepts doc_id as a string or a number, since models
// sometimes drop the quotes.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocID    json.RawMessage `json:"doc_id"`
		Filename string          `json:"filename"`
		Snippet  string          `json:"snippet"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Filename, c.Snippet = raw.Filename, raw.Snippet
	c.DocID = ""
	if len(raw.DocID) == 0 || string(raw.DocID) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.DocID, &c.DocID); err == nil {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.DocID, &n); err != nil {
		return fmt.Errorf("doc_id must be a string or number: %w", err)
	}
	c.DocID = n.String()
	return nil
}

// Event is one unit of the demultiplexed stream.
type Event struct {
	Kind Kind

	// Text is set for KindText.
	Text string

	// Citation is set for KindCitation.
	Citation Citation

	// Err is set for KindError.
	Err error
}

// Text returns a text event.
func Text(s string) Event { return Event{Kind: KindText, Text: s} }

// Cite returns a citation event.
func Cite(c Citation) Event { return Event{Kind: KindCitation, Citation: c} }

// Error returns an error event.
func Error(err error) Event { return Event{Kind: KindError, Err: err} }

// String renders the event for logs and test failures.
func (e Event) String() string {
	switch e.Kind {
	case KindText:
		return "Text(" + strconv.Quote(e.Text) + ")"
	case KindCitation:
		return fmt.Sprintf("Citation(%+v)", e.Citation)
	case KindError:
		return fmt.Sprintf("Error(%v)", e.Err)
	}
	return "Event(?)"
}

// MarshalJSON encodes the event in the wire format
// {"type": kind, "data": payload}.
func (e Event) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Kind {
	case KindText:
		data = e.Text
	case KindCitation:
		data = e.Citation
	case KindError:
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		data = msg
	default:
		return nil, fmt.Errorf("citation: unknown event kind %q", e.Kind)
	}
	return json.Marshal(struct {
		Type Kind `json:"type"`
		Data any  `json:"data"`
	}{e.Kind, data})
}
