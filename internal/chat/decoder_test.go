package chat

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, d *Decoder) ([]Event, int) {
	t.Helper()
	var events []Event
	malformed := 0
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events, malformed
		}
		if _, ok := err.(*ProtocolError); ok {
			malformed++
			continue
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestDecoderReassemblesSplitLines(t *testing.T) {
	stream := "data: {\"type\":\"status\",\"content\":\"Thinking...\"}\n\n" +
		"data: {\"type\":\"token\",\"content\":\"Hel\"}\n\n" +
		"data: {\"type\":\"token\",\"content\":\"lo\"}\n\n" +
		"data: {\"type\":\"done\"}\n\n"

	events, malformed := drain(t, NewDecoder(iotest.OneByteReader(strings.NewReader(stream))))
	assert.Zero(t, malformed)
	assert.Equal(t, []Event{
		{Type: EventStatus, Content: "Thinking..."},
		{Type: EventToken, Content: "Hel"},
		{Type: EventToken, Content: "lo"},
		{Type: EventDone},
	}, events)
}

func TestDecoderHandlesCRLFAndMissingFinalNewline(t *testing.T) {
	stream := "data: {\"type\":\"token\",\"content\":\"a\"}\r\n\r\n" +
		"data: {\"type\":\"done\"}"

	events, _ := drain(t, NewDecoder(strings.NewReader(stream)))
	assert.Equal(t, []Event{{Type: EventToken, Content: "a"}, {Type: EventDone}}, events)
}

func TestDecoderSkipsNoiseAndRecoversFromMalformedLines(t *testing.T) {
	stream := ": keep-alive\n" +
		"event: message\n" +
		"data: {broken\n" +
		"\n" +
		"data: {\"type\":\"token\",\"content\":\"ok\"}\n"

	events, malformed := drain(t, NewDecoder(iotest.HalfReader(strings.NewReader(stream))))
	assert.Equal(t, 1, malformed)
	assert.Equal(t, []Event{{Type: EventToken, Content: "ok"}}, events)
}

func TestDecoderLongLine(t *testing.T) {
	content := strings.Repeat("x", 200*1024)
	stream := "data: {\"type\":\"token\",\"content\":\"" + content + "\"}\n"

	events, _ := drain(t, NewDecoder(strings.NewReader(stream)))
	require.Len(t, events, 1)
	assert.Equal(t, content, events[0].Content)
}

func TestDecoderEmptyStream(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("")).Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderRejectsOversizeLineAndContinues(t *testing.T) {
	stream := "data: {\"type\":\"token\",\"content\":\"" + strings.Repeat("x", MaxLineSize) + "\"}\n" +
		"data: {\"type\":\"token\",\"content\":\"after\"}\n"
	d := NewDecoder(strings.NewReader(stream))

	_, err := d.Next()
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Less(t, len(protoErr.Line), 128)

	ev, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Type: EventToken, Content: "after"}, ev)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderReturnsReadErrors(t *testing.T) {
	broken := errors.New("connection reset by peer")
	r := io.MultiReader(
		strings.NewReader("data: {\"type\":\"token\",\"content\":\"a\"}\ndata: {\"type\":\"tok"),
		iotest.ErrReader(broken),
	)
	d := NewDecoder(r)

	ev, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Content)

	_, err = d.Next()
	assert.ErrorIs(t, err, broken)
}
