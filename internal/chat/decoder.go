package chat

import (
	"bufio"
	"errors"
	"io"
)

// MaxLineSize bounds a single line of the stream.
const MaxLineSize = 512 * 1024

// Decoder reads events from a line-delimited stream. Lines are reassembled
// across reads, so a payload split between two transport chunks decodes as
// one event.
type Decoder struct {
	reader *bufio.Reader
	line   []byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. Non-data lines are skipped. A malformed or
// oversized data line yields a *ProtocolError; the decoder stays usable
// afterwards. io.EOF is returned once the stream is exhausted, and any other
// read error is returned as is.
func (d *Decoder) Next() (Event, error) {
	for {
		line, tooLong, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, err
		}
		if tooLong {
			return Event{}, &ProtocolError{Line: preview(line), Err: ErrLineTooLong}
		}
		if len(line) > 0 {
			ev, ok, perr := ParseLine(line)
			if perr != nil {
				return Event{}, perr
			}
			if ok {
				return ev, nil
			}
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// readLine returns the next line. Past MaxLineSize the rest of the line is
// discarded and tooLong is set.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	d.line = d.line[:0]
	for {
		chunk, err := d.reader.ReadSlice('\n')
		if !tooLong {
			if len(d.line)+len(chunk) > MaxLineSize {
				tooLong = true
			} else {
				d.line = append(d.line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return d.line, tooLong, err
	}
}

func preview(line []byte) string {
	if len(line) > 64 {
		return string(line[:64]) + "..."
	}
	return string(line)
}
