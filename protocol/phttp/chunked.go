// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package phttp

import (
	"bytes"

	"github.com/pkg/errors"
)

// ErrInvalidChunkLength is fatal: the chunk-length line did not parse as a
// non-negative hexadecimal integer.
var ErrInvalidChunkLength = errors.New("http/phttp: invalid chunk length")

type chunkedState uint8

const (
	chunkedLength chunkedState = iota
	chunkedData
	chunkedDataEnd
	chunkedTrailers
)

// chunkedStep is the outcome of one ChunkedDecoder.Feed call.
type chunkedStep uint8

const (
	chunkedNeedMore chunkedStep = iota
	chunkedGotData
	chunkedTrailersBegin
	chunkedTrailerLine
	chunkedDone
)

// ChunkedDecoder implements RFC 7230 ("Transfer-Encoding: chunked") body
// framing: a hex length line, the chunk payload, a trailing CRLF, repeated
// until a zero-length chunk introduces an (optional) trailer block.
type ChunkedDecoder struct {
	la       *LineAssembler
	state    chunkedState
	remain   int64
	trailer  *HeaderBlockParser
	sawChunk bool
}

// NewChunkedDecoder returns a decoder; trailers (if any) are parsed into
// trailerTable.
func NewChunkedDecoder(limit int, trailerTable *HeaderTable) *ChunkedDecoder {
	return &ChunkedDecoder{
		la:      NewLineAssembler(limit),
		trailer: NewHeaderBlockParser(trailerTable),
	}
}

// Feed advances the state machine by at most one meaningful step starting
// at chunk[offset:]. Callers should loop: apply the returned data/advance,
// then call Feed again at the new offset, until the chunk is exhausted or
// it returns chunkedDone. chunkedNeedMore is also returned after a size or
// CRLF line has been consumed, so it does not by itself mean the chunk is
// used up.
func (cd *ChunkedDecoder) Feed(chunk []byte, offset int) (data []byte, consumed int, step chunkedStep, err error) {
	switch cd.state {
	case chunkedLength:
		line, n, ok, _, lerr := cd.la.Next(chunk, offset)
		if lerr != nil {
			return nil, 0, chunkedNeedMore, lerr
		}
		if !ok {
			return nil, n, chunkedNeedMore, nil
		}
		size, perr := parseChunkLengthLine(line)
		if perr != nil {
			return nil, n, chunkedNeedMore, ErrInvalidChunkLength
		}
		cd.sawChunk = true
		if size == 0 {
			cd.state = chunkedTrailers
			return nil, n, chunkedTrailersBegin, nil
		}
		cd.remain = size
		cd.state = chunkedData
		return nil, n, chunkedNeedMore, nil

	case chunkedData:
		avail := int64(len(chunk) - offset)
		if avail == 0 {
			return nil, 0, chunkedNeedMore, nil
		}
		take := cd.remain
		if take > avail {
			take = avail
		}
		cd.remain -= take
		if cd.remain == 0 {
			cd.state = chunkedDataEnd
		}
		return chunk[offset : offset+int(take)], int(take), chunkedGotData, nil

	case chunkedDataEnd:
		line, n, ok, _, lerr := cd.la.Next(chunk, offset)
		if lerr != nil {
			return nil, 0, chunkedNeedMore, lerr
		}
		if !ok {
			return nil, n, chunkedNeedMore, nil
		}
		// Tolerate stray bytes before the CRLF; a single CRLF is expected.
		cd.state = chunkedLength
		return nil, n, chunkedNeedMore, nil

	case chunkedTrailers:
		line, n, ok, _, lerr := cd.la.Next(chunk, offset)
		if lerr != nil {
			return nil, 0, chunkedNeedMore, lerr
		}
		if !ok {
			return nil, n, chunkedNeedMore, nil
		}
		if cd.trailer.FeedLine(line) {
			return line, n, chunkedDone, nil
		}
		return line, n, chunkedTrailerLine, nil
	}
	return nil, 0, chunkedNeedMore, nil
}

// parseChunkLengthLine strips the trailing CRLF and any ";chunk-ext" then
// parses the remainder as case-insensitive hexadecimal.
func parseChunkLengthLine(line []byte) (int64, error) {
	trimmed := TrimCRLF(line)
	if idx := bytes.IndexByte(trimmed, ';'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = bytes.TrimSpace(trimmed)
	if len(trimmed) == 0 {
		return 0, ErrInvalidChunkLength
	}

	var n int64
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		var v int64
		switch {
		case c >= '0' && c <= '9':
			v = int64(c - '0')
		case c >= 'a' && c <= 'f':
			v = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int64(c-'A') + 10
		default:
			return 0, ErrInvalidChunkLength
		}
		if i >= 16 {
			return 0, ErrInvalidChunkLength
		}
		n = n<<4 | v
	}
	if n < 0 {
		return 0, ErrInvalidChunkLength
	}
	return n, nil
}
