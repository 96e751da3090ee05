// Package stream decodes the line-oriented chat stream protocol.
//
// The wire format is SSE-shaped, UTF-8 text split into newline-delimited
// frames:
//
//	data: {"choices":[{"delta":{"content":"Hel"}}]}
//	data: {"__articles":[{"id":"a1","title":"...","category":"..."}]}
//	:articles:[{"id":"a1","title":"...","category":"..."}]
//	data: [DONE]
//
// Chunks arrive with arbitrary boundaries: a line may span network reads,
// and a JSON payload may itself span lines when the producer flushed before
// the terminating newline. The Decoder reassembles frames without data loss
// in both cases and emits typed events in decode order.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
)

const (
	dataPrefix     = "data: "
	articlesPrefix = ":articles:"
	doneSentinel   = "[DONE]"
)

// Kind discriminates the event variants produced by the Decoder.
type Kind int

const (
	// KindDelta carries an incremental fragment of assistant text.
	KindDelta Kind = iota

	// KindArticles carries a replacement article list (last-write-wins;
	// it does not merge with previously delivered lists).
	KindArticles

	// KindDone terminates the event sequence. Emitted exactly once.
	KindDone
)

// Event is the tagged variant delivered to the consumer. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Event struct {
	Kind     Kind
	Delta    string
	Articles []conversation.Article
}

// deltaFrame is the JSON shape of a data-line payload. The reserved
// __articles key is an out-of-band article list embedded in a data frame.
type deltaFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Articles []conversation.Article `json:"__articles"`
}

// Decoder reassembles frames from arbitrarily-chunked stream text.
//
// A Decoder is owned by a single stream session and is not safe for
// concurrent use. It is not reusable: once a [DONE] sentinel has been
// decoded, all further input is ignored.
type Decoder struct {
	buf    []byte
	done   bool
	logger log.Logger
}

// NewDecoder creates a decoder for one stream session.
func NewDecoder(logger log.Logger) *Decoder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Decoder{logger: logger}
}

// Done reports whether the terminating sentinel has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends a chunk to the pending buffer and drains every complete
// frame from it, returning the decoded events in order. After the sentinel
// has been seen, Feed discards input and returns nil.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	return d.drain()
}

// drain consumes newline-terminated lines from the buffer until none
// remain, a sentinel terminates the stream, or a data payload fails to
// parse. A parse failure means the JSON was split across a line boundary:
// the line is pushed back onto the buffer and draining stops until the next
// chunk completes it. The buffer therefore never holds a complete,
// consumable frame between calls.
func (d *Decoder) drain() []Event {
	var events []Event

	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return events
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		// Blank and comment lines carry no data, except the :articles:
		// metadata line which smuggles an article list past SSE parsers.
		if line == "" || strings.HasPrefix(line, ":") {
			if raw, ok := strings.CutPrefix(line, articlesPrefix); ok {
				var articles []conversation.Article
				if err := json.Unmarshal([]byte(raw), &articles); err != nil {
					d.logger.Warn("dropping unparseable articles metadata", "error", err)
					continue
				}
				events = append(events, Event{Kind: KindArticles, Articles: articles})
			}
			continue
		}

		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			// Unrecognized frame type; skipped, never fatal.
			continue
		}
		payload = strings.TrimSpace(payload)

		if payload == doneSentinel {
			d.done = true
			d.buf = nil
			return append(events, Event{Kind: KindDone})
		}

		var frame deltaFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// The payload is incomplete, not malformed: the producer
			// flushed mid-frame. Re-buffer the line verbatim and wait for
			// the rest. Dropping it here would lose assistant text.
			d.buf = append([]byte(line+"\n"), d.buf...)
			return events
		}
		events = append(events, frameEvents(frame)...)
	}
}

// Flush performs the end-of-stream pass over residual buffer content. There
// is no more data coming, so a payload that still fails to parse is dropped
// rather than re-buffered.
func (d *Decoder) Flush() []Event {
	if d.done || len(bytes.TrimSpace(d.buf)) == 0 {
		d.buf = nil
		return nil
	}

	lines := strings.Split(string(d.buf), "\n")
	d.buf = nil

	var events []Event
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == doneSentinel {
			d.done = true
			return append(events, Event{Kind: KindDone})
		}
		var frame deltaFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			d.logger.Debug("dropping unfinished frame at stream end", "error", err)
			continue
		}
		events = append(events, frameEvents(frame)...)
	}
	return events
}

// frameEvents extracts the events carried by one decoded data frame: an
// article list when the reserved key is present, then a content delta when
// non-empty.
func frameEvents(frame deltaFrame) []Event {
	var events []Event
	if frame.Articles != nil {
		events = append(events, Event{Kind: KindArticles, Articles: frame.Articles})
	}
	if len(frame.Choices) > 0 && frame.Choices[0].Delta.Content != "" {
		events = append(events, Event{Kind: KindDelta, Delta: frame.Choices[0].Delta.Content})
	}
	return events
}

// Events returns a lazy, finite, single-use event sequence over r.
//
// The sequence always ends with exactly one KindDone event or one error:
// KindDone comes from the [DONE] sentinel or from natural stream closure
// (EOF), whichever happens first; a transport read failure ends the
// sequence with that error instead.
func (d *Decoder) Events(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, ev := range d.Feed(buf[:n]) {
					if !yield(ev, nil) {
						return
					}
					if ev.Kind == KindDone {
						return
					}
				}
			}
			if err == nil {
				continue
			}
			if !errors.Is(err, io.EOF) {
				yield(Event{}, err)
				return
			}
			for _, ev := range d.Flush() {
				if !yield(ev, nil) {
					return
				}
				if ev.Kind == KindDone {
					return
				}
			}
			// Natural closure without a sentinel still completes the turn.
			d.done = true
			yield(Event{Kind: KindDone}, nil)
			return
		}
	}
}

// Events decodes r with a fresh Decoder. See Decoder.Events.
func Events(r io.Reader, logger log.Logger) iter.Seq2[Event, error] {
	return NewDecoder(logger).Events(r)
}
