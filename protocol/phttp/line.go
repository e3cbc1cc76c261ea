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

	"github.com/packetd/htpgo/internal/splitio"
)

// ErrFieldTooLong is returned by LineAssembler when an assembled line (or
// the header block it belongs to) would exceed the configured hard limit.
var ErrFieldTooLong = errors.New("http/phttp: field exceeds hard size limit")

// LineAssembler accumulates bytes across arbitrarily-sized input chunks
// into logical lines delimited by LF, with an optional preceding CR.
//
// It is used by every header/request-line/chunk-length state. Unlike a
// byte-at-a-time pull API, LineAssembler is fed one chunk at a time and
// returns every complete line found inside that chunk plus the chunk
// offset where the next read should resume; a partial trailing line is
// copied into an internal growable buffer and prefixed onto the next
// chunk's data, so callers never see a line split at a chunk boundary.
//
// Zero-copy contract: a line returned that was fully contained in the
// current chunk aliases the caller's slice directly (fromBuffer == false).
// A line that had to be stitched across chunk boundaries aliases the
// LineAssembler's own persistent buffer instead (fromBuffer == true); that
// buffer is only valid until the next call into the assembler.
type LineAssembler struct {
	pending []byte // bytes carried over from a previous, unterminated chunk
	limit   int
}

// NewLineAssembler returns an assembler enforcing the given hard byte
// limit on any single logical line (0 means unlimited).
func NewLineAssembler(limit int) *LineAssembler {
	return &LineAssembler{limit: limit}
}

// Reset discards any buffered partial line.
func (la *LineAssembler) Reset() {
	la.pending = la.pending[:0]
}

// Pending reports how many bytes are currently held across chunk
// boundaries.
func (la *LineAssembler) Pending() int { return len(la.pending) }

// Next scans chunk starting at offset for the next LF-terminated logical
// line. It returns:
//
//   - line, consumed, true, fromBuffer, nil  -- a complete line was found;
//     resume scanning chunk at offset+consumed.
//   - nil, consumed, false, false, nil        -- chunk was exhausted with
//     no terminator; the remainder was buffered internally and consumed
//     equals len(chunk)-offset.
//   - nil, 0, false, false, ErrFieldTooLong    -- hard limit exceeded.
func (la *LineAssembler) Next(chunk []byte, offset int) (line []byte, consumed int, ok bool, fromBuffer bool, err error) {
	rest := chunk[offset:]
	idx := bytes.IndexByte(rest, splitio.CharLF[0])
	if idx == -1 {
		if la.limit > 0 && len(la.pending)+len(rest) > la.limit {
			return nil, 0, false, false, ErrFieldTooLong
		}
		la.pending = append(la.pending, rest...)
		return nil, len(rest), false, false, nil
	}

	consumed = idx + 1
	if len(la.pending) == 0 {
		return rest[:consumed], consumed, true, false, nil
	}

	if la.limit > 0 && len(la.pending)+consumed > la.limit {
		return nil, 0, false, false, ErrFieldTooLong
	}
	la.pending = append(la.pending, rest[:consumed]...)
	line = la.pending
	la.pending = nil
	return line, consumed, true, true, nil
}

// IsFolded reports whether the byte following a completed line (the first
// byte of the next line, if any is already available) is SP or HT -- the
// definition of a folded continuation line.
func IsFolded(b byte) bool {
	return b == ' ' || b == '\t'
}

// TrimCRLF strips one trailing LF and, if present, the CR before it.
func TrimCRLF(line []byte) []byte {
	n := len(line)
	if n == 0 {
		return line
	}
	if line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return line[:n]
}

// LineEnding reports the flag describing how a raw (non-trimmed) line was
// terminated: FlagCRLFLine, FlagLFLine, or 0 if it has no terminator yet
// (a line fed to a caller must always be terminated, so 0 only happens
// for diagnostics on unterminated fragments).
func LineEnding(line []byte) Flags {
	n := len(line)
	if n == 0 || line[n-1] != '\n' {
		return 0
	}
	if n >= 2 && line[n-2] == '\r' {
		return FlagCRLFLine
	}
	return FlagLFLine
}
