package openrouter

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// dataPrefix frames every SSE payload line.
const dataPrefix = "data: "

// doneSentinel terminates a stream; any buffered bytes after it are discarded.
const doneSentinel = "[DONE]"

// ErrDecoderClosed is returned when feeding a decoder that already saw [DONE].
var ErrDecoderClosed = errors.New("stream decoder closed")

// StreamDecoder turns raw SSE byte chunks into parsed stream payloads.
//
// Chunks may split lines (and payloads) at arbitrary byte offsets; the
// trailing incomplete line of each chunk is retained and prepended to the
// next one. Feeding the same byte sequence in any chunking produces the
// same payload sequence.
type StreamDecoder struct {
	// handler receives each successfully parsed payload in arrival order.
	handler StreamHandler
	// remainder holds the trailing partial line from the previous chunk.
	remainder string
	// done is set once the [DONE] sentinel was seen.
	done bool
	// logger reports skipped malformed payloads.
	logger zerolog.Logger
}

// NewStreamDecoder constructs a decoder that forwards payloads to handler.
func NewStreamDecoder(handler StreamHandler, logger zerolog.Logger) *StreamDecoder {
	return &StreamDecoder{handler: handler, logger: logger}
}

// Done reports whether the [DONE] sentinel has been observed.
func (d *StreamDecoder) Done() bool {
	return d.done
}

// Feed ingests one chunk of the response body.
func (d *StreamDecoder) Feed(chunk []byte) error {
	if d.done {
		return ErrDecoderClosed
	}
	buffered := d.remainder + string(chunk)
	lines := strings.Split(buffered, "\n")
	// The final element is an incomplete line (possibly empty); keep it
	// for the next chunk instead of parsing a truncated payload.
	d.remainder = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		if err := d.handleLine(line); err != nil {
			return err
		}
		if d.done {
			// Remaining buffered bytes after [DONE] are discarded.
			d.remainder = ""
			return nil
		}
	}
	return nil
}

// Flush parses a residual unterminated final line, if any. It must be
// called after the underlying stream signals completion.
func (d *StreamDecoder) Flush() error {
	if d.done || d.remainder == "" {
		return nil
	}
	line := d.remainder
	d.remainder = ""
	return d.handleLine(line)
}

// handleLine applies SSE framing rules to one complete line.
func (d *StreamDecoder) handleLine(line string) error {
	line = strings.TrimSuffix(line, "\r")
	// Blank keep-alive lines and comment lines carry no payload.
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneSentinel {
		d.done = true
		return nil
	}
	var event StreamResponse
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// Malformed individual events are non-fatal; skip and continue.
		d.logger.Warn().Err(err).Str("payload", payload).Msg("skipping malformed stream event")
		return nil
	}
	if d.handler == nil {
		return nil
	}
	return d.handler(event)
}
