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
	"strings"
)

// HeaderBlockParser consumes LF-terminated lines (already assembled by a
// LineAssembler) until an empty line terminates the block. It recognizes
// LWS-continuation (folded) lines, coalesces repeated field names into the
// owning HeaderTable and validates field-name tokens, never failing the
// block on a malformed individual field -- malformed fields are flagged
// and parsing continues.
type HeaderBlockParser struct {
	table   *HeaderTable
	pending *pendingField // field being assembled, not yet committed
	saw     int           // lines consumed, for MultiPacketHeaders detection
}

type pendingField struct {
	raw strings.Builder
}

// NewHeaderBlockParser returns a parser that commits fields into table.
func NewHeaderBlockParser(table *HeaderTable) *HeaderBlockParser {
	return &HeaderBlockParser{table: table}
}

// FeedLine processes one already-delimited line (CR/LF retained). It
// returns done=true once the terminating empty line has been consumed,
// at which point any pending field has already been committed.
func (p *HeaderBlockParser) FeedLine(line []byte) (done bool) {
	trimmed := TrimCRLF(line)
	if len(trimmed) == 0 {
		p.commit()
		return true
	}

	if IsFolded(trimmed[0]) {
		if p.pending == nil {
			// A fold with nothing to fold onto: treat as its own field,
			// permissively, rather than dropping it.
			p.pending = &pendingField{}
		} else {
			p.pending.raw.WriteByte(' ')
		}
		p.pending.raw.Write(bytes.TrimLeft(trimmed, " \t"))
		return false
	}

	p.commit()
	p.pending = &pendingField{}
	p.pending.raw.Write(trimmed)
	return false
}

// commit parses and stores the currently pending raw field, if any.
func (p *HeaderBlockParser) commit() {
	if p.pending == nil {
		return
	}
	raw := p.pending.raw.String()
	p.pending = nil

	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		p.table.Add("", raw, raw, FlagFieldUnparseable)
		return
	}

	name := strings.TrimSpace(raw[:idx])
	value := strings.TrimSpace(raw[idx+1:])

	var flags Flags
	if strings.IndexByte(raw, 0) >= 0 {
		flags = flags.Set(FlagFieldNUL)
	}
	if name == "" || !IsToken(name) {
		flags = flags.Set(FlagFieldInvalid)
	}
	p.table.Add(name, value, raw, flags)
}
