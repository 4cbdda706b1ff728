package openrouter

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/docpal/docpal/internal/testutil"
)

// collectEvents returns a handler that appends payloads to the given slice.
func collectEvents(events *[]StreamResponse) StreamHandler {
	return func(event StreamResponse) error {
		*events = append(*events, event)
		return nil
	}
}

func TestDecoderParsesDataLines(t *testing.T) {
	var events []StreamResponse
	decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())

	stream := "data: {\"id\":\"gen-1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n" +
		"data: [DONE]\n"
	testutil.RequireNoError(t, decoder.Feed([]byte(stream)), "feed full stream")

	testutil.RequireEqual(t, len(events), 2, "payload count")
	testutil.RequireEqual(t, events[0].ID, "gen-1", "first payload id")
	testutil.RequireEqual(t, events[0].Choices[0].Delta.Content, "Hel", "first delta content")
	testutil.RequireEqual(t, events[1].Choices[0].Delta.Content, "lo", "second delta content")
	testutil.RequireTrue(t, decoder.Done(), "decoder should report done")
}

func TestDecoderChunkingIsTransparent(t *testing.T) {
	stream := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"alpha\"}}]}\n" +
		"\r\n" +
		": keep-alive comment\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"beta\"}}]}\r\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n" +
		"data: [DONE]\n"

	// Re-feed the identical byte sequence in several chunk sizes, including
	// sizes that split lines and JSON payloads mid-token.
	for _, chunkSize := range []int{1, 2, 3, 7, 16, len(stream)} {
		var events []StreamResponse
		decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())
		raw := []byte(stream)
		for start := 0; start < len(raw); start += chunkSize {
			end := start + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			testutil.RequireNoError(t, decoder.Feed(raw[start:end]), "feed chunk")
			if decoder.Done() {
				break
			}
		}
		testutil.RequireNoError(t, decoder.Flush(), "flush")

		testutil.RequireEqual(t, len(events), 3, "payload count at each chunk size")
		testutil.RequireEqual(t, events[0].Choices[0].Delta.Content, "alpha", "first content")
		testutil.RequireEqual(t, events[1].Choices[0].Delta.Content, "beta", "second content")
		testutil.RequireTrue(t, events[2].Choices[0].FinishReason != nil, "finish reason present")
		testutil.RequireTrue(t, decoder.Done(), "done sentinel observed")
	}
}

func TestDecoderDiscardsBufferAfterDone(t *testing.T) {
	var events []StreamResponse
	decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())

	chunk := "data: [DONE]\ndata: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ghost\"}}]}\n"
	testutil.RequireNoError(t, decoder.Feed([]byte(chunk)), "feed chunk with trailing data")

	testutil.RequireEqual(t, len(events), 0, "no payloads after the sentinel")
	testutil.RequireTrue(t, decoder.Done(), "decoder is done")
	testutil.RequireErrorIs(t, decoder.Feed([]byte("data: {}\n")), ErrDecoderClosed, "feeding a closed decoder")
}

func TestDecoderSkipsMalformedPayloads(t *testing.T) {
	var events []StreamResponse
	decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())

	stream := "data: {not json at all\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n"
	testutil.RequireNoError(t, decoder.Feed([]byte(stream)), "malformed events are non-fatal")

	testutil.RequireEqual(t, len(events), 1, "only the valid payload survives")
	testutil.RequireEqual(t, events[0].Choices[0].Delta.Content, "ok", "valid payload content")
}

func TestDecoderFlushParsesUnterminatedLine(t *testing.T) {
	var events []StreamResponse
	decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())

	// No trailing newline: the final event stays buffered until Flush.
	testutil.RequireNoError(t, decoder.Feed([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tail\"}}]}")), "feed unterminated line")
	testutil.RequireEqual(t, len(events), 0, "payload is not parsed before flush")

	testutil.RequireNoError(t, decoder.Flush(), "flush")
	testutil.RequireEqual(t, len(events), 1, "payload parsed on flush")
	testutil.RequireEqual(t, events[0].Choices[0].Delta.Content, "tail", "flushed content")
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	var events []StreamResponse
	decoder := NewStreamDecoder(collectEvents(&events), zerolog.Nop())

	stream := "event: message\n" +
		"id: 42\n" +
		"\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n"
	testutil.RequireNoError(t, decoder.Feed([]byte(stream)), "feed mixed framing lines")
	testutil.RequireEqual(t, len(events), 1, "only data lines produce payloads")
}
