// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxFrameSize is the maximum allowed size of a single SSE frame.
const maxFrameSize = 256 * 1024

// frameReader parses Server-Sent Events frames from a stream. A frame is
// an optional "event:" line plus one or more "data:" lines, terminated by
// a blank line.
type frameReader struct {
	reader *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{reader: bufio.NewReader(r)}
}

// ReadFrame reads the next frame and returns its event kind and joined
// data payload. The kind is empty when the frame has no event line.
// Returns io.EOF when the stream ends.
func (f *frameReader) ReadFrame() (string, []byte, error) {
	var kind string
	var dataLines [][]byte
	var size int

	for {
		line, err := f.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				// Flush a trailing frame that was not blank-line terminated.
				return kind, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, err
		}

		size += len(line)
		if size > maxFrameSize {
			return "", nil, fmt.Errorf("frame too large: %d bytes", size)
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the frame.
		if len(line) == 0 {
			if len(dataLines) > 0 || kind != "" {
				return kind, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			kind = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Other fields (id:, retry:) and comment lines are ignored.
	}
}
