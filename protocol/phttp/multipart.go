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
	"os"
	"strings"
)

type multipartState uint8

const (
	mpPreamble multipartState = iota
	mpPartHeaders
	mpPartData
	mpEpilogue
)

// MultipartParser implements the nested state machine that recovers
// individual parts of a multipart/form-data request body: a preamble
// (ignored, pre-first-boundary bytes), then repeated header-block/data
// pairs separated by "--boundary" lines, until a "--boundary--" closing
// line is seen, after which any further bytes are the epilogue -- unless
// another boundary-shaped line follows, which is flagged rather than
// silently absorbed (FlagPartAfterLastBoundary).
//
// It is intentionally line-oriented: a boundary is only recognized when
// it begins its own CRLF-terminated line, which covers the overwhelming
// majority of real multipart bodies (including every client library this
// core has been checked against) while staying well clear of the
// part-data byte stream itself, which is delivered to RequestBodyData /
// RequestFileData untouched.
type MultipartParser struct {
	cfg   *Config
	hooks *Hooks
	tx    *Transaction

	boundary      string
	caseSensitive bool

	state       multipartState
	la          *LineAssembler
	partHdr     *HeaderBlockParser
	curPart     *Part
	held        []byte // previous data line, retained to allow CRLF rewind at a boundary
	seenLast    bool
	partCount   int
	sinkFile    *os.File
}

// NewMultipartParser returns a parser for body content-type
// multipart/form-data; boundary is the raw (unquoted) boundary parameter
// value extracted from that header.
func NewMultipartParser(cfg *Config, hooks *Hooks, tx *Transaction, boundary string) *MultipartParser {
	return &MultipartParser{
		cfg:           cfg,
		hooks:         hooks,
		tx:            tx,
		boundary:      boundary,
		caseSensitive: cfg.MultipartBoundaryCaseSensitive,
		la:            NewLineAssembler(cfg.FieldLimit),
	}
}

// Feed consumes as much of chunk[offset:] as forms complete lines,
// driving the part state machine forward. It never blocks on only part
// of a line being available; the remainder is buffered by the internal
// LineAssembler the same way header blocks are.
func (mp *MultipartParser) Feed(chunk []byte, offset int) (consumed int, err error) {
	start := offset
	for offset < len(chunk) {
		line, n, ok, _, lerr := mp.la.Next(chunk, offset)
		offset += n
		if lerr != nil {
			return offset - start, lerr
		}
		if !ok {
			return offset - start, nil
		}
		mp.feedLine(line)
	}
	return offset - start, nil
}

func (mp *MultipartParser) feedLine(line []byte) {
	trimmed := TrimCRLF(line)
	isBoundary, isLast := mp.matchBoundary(trimmed)

	switch mp.state {
	case mpPreamble:
		if isBoundary {
			mp.startPart(isLast)
		}
		// Non-boundary preamble bytes are discarded; the specification
		// treats the preamble as uninspected framing overhead.

	case mpPartHeaders:
		if mp.partHdr.FeedLine(line) {
			mp.processPartHeaders()
			mp.state = mpPartData
		}

	case mpPartData:
		if isBoundary {
			mp.finishPart()
			if mp.seenLast {
				mp.tx.MultipartBody.SeenLastBoundary = true
				if isLast {
					mp.state = mpEpilogue
				} else {
					mp.tx.MultipartBody.Flags = mp.tx.MultipartBody.Flags.Set(FlagPartAfterLastBoundary)
					mp.startPart(isLast)
				}
			} else {
				mp.startPart(isLast)
			}
			return
		}
		mp.appendPartData(line)

	case mpEpilogue:
		if isBoundary {
			mp.tx.MultipartBody.Flags = mp.tx.MultipartBody.Flags.Set(FlagPartAfterLastBoundary)
			mp.startPart(isLast)
		}
	}
}

func (mp *MultipartParser) matchBoundary(trimmed []byte) (isBoundary, isLast bool) {
	candidate := string(bytes.TrimRight(trimmed, " \t"))
	if !strings.HasPrefix(candidate, "--") {
		return false, false
	}
	rest := candidate[2:]
	marker := mp.boundary
	if !mp.caseSensitive {
		rest = strings.ToLower(rest)
		marker = strings.ToLower(marker)
	}
	if strings.HasPrefix(rest, marker) {
		tail := rest[len(marker):]
		if tail == "" {
			return true, false
		}
		if tail == "--" {
			return true, true
		}
	}
	return false, false
}

func (mp *MultipartParser) startPart(isLast bool) {
	mp.tx.MultipartBody.BoundaryCount++
	if isLast {
		mp.seenLast = true
		mp.tx.MultipartBody.SeenLastBoundary = true
		mp.state = mpEpilogue
		return
	}
	mp.partHdr = NewHeaderBlockParser(NewHeaderTable())
	mp.curPart = &Part{Type: PartUnknown, Headers: NewHeaderTable()}
	mp.held = nil
	mp.state = mpPartHeaders
}

func (mp *MultipartParser) processPartHeaders() {
	mp.curPart.Headers = mp.partHdr.table
	cd, ok := mp.curPart.Headers.Get("Content-Disposition")
	if ok {
		name, filename, flags := parseContentDisposition(cd)
		mp.curPart.Name = name
		mp.curPart.Filename = filename
		mp.tx.MultipartBody.Flags = mp.tx.MultipartBody.Flags.Set(flags)
	}
	if ct, ok := mp.curPart.Headers.Get("Content-Type"); ok {
		mp.curPart.ContentType = lowerContentType(ct)
	}
	switch {
	case mp.curPart.Filename != "":
		mp.curPart.Type = PartFile
	case mp.curPart.Name != "":
		mp.curPart.Type = PartText
	}
	mp.tx.MultipartBody.Parts = append(mp.tx.MultipartBody.Parts, mp.curPart)

	if mp.curPart.Type == PartFile && mp.cfg.EnableFileExtraction {
		mp.openFileSink()
	}
}

func (mp *MultipartParser) appendPartData(line []byte) {
	if mp.held != nil {
		mp.deliverPartData(mp.held)
	}
	held := make([]byte, len(line))
	copy(held, line)
	mp.held = held
}

func (mp *MultipartParser) finishPart() {
	if mp.held != nil {
		// The CRLF immediately preceding the boundary line belongs to
		// the boundary delimiter, not the part body; rewind it off.
		mp.deliverPartData(TrimCRLF(mp.held))
		mp.held = nil
	}
	mp.closeFileSink()
	mp.partCount++
	mp.curPart = nil
}

func (mp *MultipartParser) deliverPartData(data []byte) {
	if len(data) == 0 || mp.curPart == nil {
		return
	}
	mp.curPart.Len += len(data)
	if mp.curPart.Type == PartFile && mp.cfg.EnableFileExtraction {
		mp.writeFileSink(data)
		return
	}
	mp.curPart.Value = append(mp.curPart.Value, data...)
}

// parseContentDisposition extracts name= and filename= from a
// form-data Content-Disposition value, tolerating escaped quotes inside
// the quoted-string values and flagging a duplicated parameter or a
// value missing the "form-data" prefix/unterminated quote.
func parseContentDisposition(v string) (name, filename string, flags Flags) {
	fields := strings.SplitN(v, ";", 2)
	if !strings.EqualFold(strings.TrimSpace(fields[0]), "form-data") {
		flags = flags.Set(FlagCDSyntaxInvalid)
	}
	if len(fields) < 2 {
		return "", "", flags
	}
	rest := fields[1]
	seenName, seenFile := false, false
	for _, raw := range splitParams(rest) {
		kv := strings.SplitN(strings.TrimSpace(raw), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val, ok := unquote(strings.TrimSpace(kv[1]))
		if !ok {
			flags = flags.Set(FlagCDSyntaxInvalid)
		}
		switch key {
		case "name":
			if seenName {
				flags = flags.Set(FlagCDParamRepeated)
			}
			seenName = true
			name = val
		case "filename":
			if seenFile {
				flags = flags.Set(FlagCDParamRepeated)
			}
			seenFile = true
			filename = val
		}
	}
	return name, filename, flags
}

// splitParams splits a ';'-delimited parameter list while respecting
// quoted-string boundaries, so a ';' inside a quoted filename does not
// end the parameter early.
func splitParams(s string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i == 0 || s[i-1] != '\\' {
				inQuote = !inQuote
			}
		case ';':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// unquote strips the surrounding quotes from a quoted-string parameter
// value, unescaping "\x" pairs. A value that isn't quoted at all, or that
// ends mid-escape (a trailing unescaped backslash), is syntactically
// invalid per the form-data grammar and reports ok = false.
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, false
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' {
			if i+1 >= len(inner) {
				return b.String(), false
			}
			i++
			b.WriteByte(inner[i])
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String(), true
}
