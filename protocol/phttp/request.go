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
	"net/http"
	"os"
	"strconv"
	"strings"
)

type requestState uint8

const (
	reqIdle requestState = iota
	reqLine
	reqHeaders
	reqConnectWaitResponse
	reqBodyDetermine
	reqBodyChunked
	reqBodyIdentity
	reqFinalize
	reqIgnoreAfter09
)

// stepOutcome is the internal result of driving a state function for as
// long as it can make progress against the current chunk.
type stepOutcome uint8

const (
	outNeedData stepOutcome = iota
	outYield
	outTunnel
	outStop
	outError
)

// RequestParser is the inbound-direction state machine: IDLE -> LINE ->
// HEADERS -> (CONNECT handling) -> BODY_DETERMINE -> body decode ->
// FINALIZE -> IDLE, plus the HTTP/0.9 and CONNECT side states.
type RequestParser struct {
	conn  *ConnectionParser
	state requestState

	tx  *Transaction
	la  *LineAssembler
	hdr *HeaderBlockParser

	chunkDec *ChunkedDecoder
	idDec    *IdentityDecoder
	mp       *MultipartParser
	putSink  *os.File

	whitespaceLines int
	headerLinesSeen int
	lastErr         error
}

func newRequestParser(cp *ConnectionParser) *RequestParser {
	return &RequestParser{
		conn:  cp,
		state: reqIdle,
		la:    NewLineAssembler(cp.cfg.FieldLimit),
	}
}

// run drives the request state machine across as much of chunk as it can
// consume, returning how many bytes were used and the outcome.
func (rp *RequestParser) run(chunk []byte) (consumed int, outcome stepOutcome, err error) {
	offset := 0
	for offset < len(chunk) || rp.state == reqFinalize {
		switch rp.state {
		case reqIdle:
			rp.startTransaction()
			rp.state = reqLine

		case reqLine:
			line, n, ok, _, lerr := rp.la.Next(chunk, offset)
			offset += n
			if lerr != nil {
				return offset, outError, lerr
			}
			if !ok {
				return offset, outNeedData, nil
			}
			if isAllWhitespace(line) {
				rp.whitespaceLines++
				continue
			}
			rp.parseRequestLine(line)
			if rp.tx.Request.ProtocolNumber == Protocol09 {
				rp.tx.Request.Progress = ProgressComplete
				if cb := fire(rp.conn.hooks.RequestLine, rp.tx); cb == HookError {
					return offset, outError, nil
				} else if cb == HookStop {
					return offset, outStop, nil
				}
				rp.state = reqFinalize
				continue
			}
			rp.tx.Request.Progress = ProgressHeaders
			rp.hdr = NewHeaderBlockParser(rp.tx.Request.Headers)
			if cb := fire(rp.conn.hooks.RequestLine, rp.tx); cb == HookError {
				return offset, outError, nil
			} else if cb == HookStop {
				return offset, outStop, nil
			}
			rp.state = reqHeaders

		case reqHeaders:
			if offset == 0 && rp.headerLinesSeen > 0 {
				rp.tx.Request.Flags = rp.tx.Request.Flags.Set(FlagMultiPacketHeaders)
			}
			line, n, ok, _, lerr := rp.la.Next(chunk, offset)
			offset += n
			if lerr != nil {
				return offset, outError, lerr
			}
			if !ok {
				rp.headerLinesSeen++
				return offset, outNeedData, nil
			}
			if cb := fireData(rp.conn.hooks.RequestHeaderData, rp.tx, line); cb == HookError {
				return offset, outError, nil
			}
			rp.headerLinesSeen++
			if rp.hdr.FeedLine(line) {
				rp.processRequestHeaders()
				if cb := fire(rp.conn.hooks.RequestHeaders, rp.tx); cb == HookError {
					return offset, outError, nil
				} else if cb == HookStop {
					return offset, outStop, nil
				}
				if rp.tx.Request.Method == "CONNECT" {
					rp.tx.connectDestination = rp.tx.Request.URI
					rp.state = reqConnectWaitResponse
					return offset, outYield, nil
				}
				if boundary, ok := multipartBoundary(rp.tx.Request); ok {
					rp.tx.MultipartBody = &MultipartBody{Boundary: boundary}
					rp.mp = NewMultipartParser(&rp.conn.cfg, rp.conn.hooks, rp.tx, boundary)
				} else {
					rp.mp = nil
				}
				rp.state = reqBodyDetermine
			}

		case reqConnectWaitResponse:
			if rp.tx.Response.Progress < ProgressLine {
				return offset, outYield, nil
			}
			if rp.tx.Response.StatusNumber >= 200 && rp.tx.Response.StatusNumber < 300 {
				rp.conn.conn.InStatus = StatusTunnel
				rp.conn.conn.OutStatus = StatusTunnel
			}
			rp.state = reqFinalize

		case reqBodyDetermine:
			rp.tx.Request.Progress = ProgressBody
			hasBody := rp.tx.Request.TransferCoding == TransferChunked ||
				(rp.tx.Request.TransferCoding == TransferIdentity && rp.tx.Request.ContentLength != 0)
			if rp.tx.Request.Method == "PUT" && hasBody && rp.conn.cfg.EnableFileExtraction {
				rp.openPutSink()
			}
			switch rp.tx.Request.TransferCoding {
			case TransferChunked:
				rp.tx.Request.Trailers = NewHeaderTable()
				rp.chunkDec = NewChunkedDecoder(rp.conn.cfg.FieldLimit, rp.tx.Request.Trailers)
				rp.state = reqBodyChunked
			case TransferIdentity:
				if rp.tx.Request.ContentLength == 0 {
					rp.state = reqFinalize
				} else {
					rp.idDec = NewIdentityDecoder(rp.tx.Request.ContentLength, true)
					rp.state = reqBodyIdentity
				}
			default: // NO_BODY, INVALID, UNKNOWN
				rp.state = reqFinalize
			}

		case reqBodyChunked:
			data, n, step, cerr := rp.chunkDec.Feed(chunk, offset)
			offset += n
			if cerr != nil {
				return offset, outError, cerr
			}
			switch step {
			case chunkedNeedMore:
				if len(data) > 0 {
					if cb := rp.deliverRequestBody(data); cb == HookError {
						return offset, outError, nil
					}
				}
				if n == 0 {
					return offset, outNeedData, nil
				}
			case chunkedGotData:
				if cb := rp.deliverRequestBody(data); cb == HookError {
					return offset, outError, nil
				}
			case chunkedTrailersBegin:
				rp.tx.Request.Progress = ProgressTrailer
			case chunkedTrailerLine:
				if cb := fireData(rp.conn.hooks.RequestTrailerData, rp.tx, data); cb == HookError {
					return offset, outError, nil
				}
			case chunkedDone:
				if cb := fireData(rp.conn.hooks.RequestTrailerData, rp.tx, data); cb == HookError {
					return offset, outError, nil
				}
				if cb := fire(rp.conn.hooks.RequestTrailer, rp.tx); cb == HookError {
					return offset, outError, nil
				}
				rp.state = reqFinalize
			}

		case reqBodyIdentity:
			data, n, done := rp.idDec.Feed(chunk, offset)
			offset += n
			if len(data) > 0 {
				if cb := rp.deliverRequestBody(data); cb == HookError {
					return offset, outError, nil
				}
			}
			if done {
				rp.state = reqFinalize
			} else if n == 0 {
				return offset, outNeedData, nil
			}

		case reqFinalize:
			rp.closePutSink()
			rp.tx.Request.Progress = ProgressComplete
			if cb := fire(rp.conn.hooks.RequestComplete, rp.tx); cb == HookError {
				return offset, outError, nil
			} else if cb == HookStop {
				return offset, outStop, nil
			}
			if rp.conn.conn.InStatus == StatusTunnel {
				return offset, outTunnel, nil
			}
			rp.state = reqIdle
			if rp.tx.Request.ProtocolNumber == Protocol09 {
				rp.state = reqIgnoreAfter09
			}

		case reqIgnoreAfter09:
			rp.tx.Request.Flags = rp.tx.Request.Flags.Set(FlagHTTP09Extra)
			return len(chunk), outNeedData, nil
		}
	}
	return offset, outNeedData, nil
}

func (rp *RequestParser) onClose() {
	if rp.state == reqBodyIdentity && rp.idDec != nil {
		rp.idDec.Close()
	}
	if rp.mp != nil {
		rp.mp.closeFileSink()
	}
	rp.closePutSink()
}

func (rp *RequestParser) startTransaction() {
	tx := NewTransaction(len(rp.conn.conn.Transactions))
	rp.conn.conn.Transactions = append(rp.conn.conn.Transactions, tx)
	rp.tx = tx
	rp.la = NewLineAssembler(rp.conn.cfg.FieldLimit)
	rp.headerLinesSeen = 0
	fire(rp.conn.hooks.TransactionStart, tx)
	fire(rp.conn.hooks.RequestStart, tx)
}

// parseRequestLine implements the permissive grammar of §4.5: optional
// leading whitespace, METHOD as the longest non-whitespace run, >=1
// whitespace, URI as the longest non-0x20 run, optional whitespace,
// optional PROTOCOL to end of line.
func (rp *RequestParser) parseRequestLine(rawLine []byte) {
	req := rp.tx.Request
	req.Flags = req.Flags.Set(LineEnding(rawLine))
	line := TrimCRLF(rawLine)
	req.Line = string(line)

	if bytes.IndexByte(line, 0) >= 0 {
		req.Flags = req.Flags.Set(FlagFieldNUL)
	}

	pos := 0
	for pos < len(line) && line[pos] == ' ' {
		pos++
	}
	if pos > 0 {
		req.Flags = req.Flags.Set(FlagRequestLineLeadingWhitespace)
	}

	methodStart := pos
	for pos < len(line) && !isWS(line[pos]) {
		pos++
	}
	req.Method = string(line[methodStart:pos])
	if req.Method == "" {
		req.Flags = req.Flags.Set(FlagRequestLineInvalid)
		req.ProtocolNumber = Protocol09
		return
	}

	delimStart := pos
	for pos < len(line) && isWS(line[pos]) {
		if line[pos] == '\t' {
			req.Flags = req.Flags.Set(FlagRequestLineUnusualDelimiter)
		}
		pos++
	}
	if pos == delimStart {
		req.Flags = req.Flags.Set(FlagRequestLineInvalid)
		req.ProtocolNumber = Protocol09
		return
	}

	uriStart := pos
	for pos < len(line) && line[pos] != ' ' {
		pos++
	}
	if pos == len(line) {
		// The URI ran to the end of the line without hitting a space
		// terminator; retry with any whitespace as the terminator
		// before falling back to HTTP/0.9.
		pos = uriStart
		for pos < len(line) && !isWS(line[pos]) {
			pos++
		}
		if pos < len(line) {
			req.Flags = req.Flags.Set(FlagRequestLineUnusualDelimiter)
		}
	}
	req.URI = string(line[uriStart:pos])
	req.Path, req.Scheme, req.URIHost = splitURI(req.URI)

	for pos < len(line) && isWS(line[pos]) {
		pos++
	}
	protoStart := pos
	protocol := string(line[protoStart:])
	if protocol == "" {
		req.ProtocolNumber = Protocol09
		req.Protocol = ""
		return
	}
	req.Protocol = protocol
	req.ProtocolNumber = parseProtocolNumber(protocol)
}

func splitURI(uri string) (path, scheme, host string) {
	if idx := strings.Index(uri, "://"); idx > 0 {
		scheme = uri[:idx]
		rest := uri[idx+3:]
		s := strings.IndexByte(rest, '/')
		if s < 0 {
			return "/", scheme, rest
		}
		return rest[s:], scheme, rest[:s]
	}
	if q := strings.IndexByte(uri, '?'); q >= 0 {
		return uri[:q], "", ""
	}
	return uri, "", ""
}

func parseProtocolNumber(s string) ProtocolNumber {
	const prefix = "HTTP/"
	if !strings.HasPrefix(s, prefix) {
		return ProtocolInvalid
	}
	rest := s[len(prefix):]
	if len(rest) != 3 || rest[1] != '.' {
		return ProtocolInvalid
	}
	maj := rest[0]
	min := rest[2]
	if maj < '0' || maj > '9' || min < '0' || min > '9' {
		return ProtocolInvalid
	}
	return ProtocolNumber(int(maj-'0')*100 + int(min-'0'))
}

func isWS(b byte) bool {
	return b == ' ' || b == '\t' || b == '\v' || b == '\f' || b == '\r'
}

func isAllWhitespace(line []byte) bool {
	trimmed := TrimCRLF(line)
	for _, b := range trimmed {
		if !isWS(b) && b != ' ' {
			return false
		}
	}
	return true
}

// processRequestHeaders implements §4.5's header-processing step: T-E /
// Content-Length resolution, smuggling indicators, Host vs URI authority
// comparison, Content-Type, and the optional Cookie/Authorization
// collaborators.
func (rp *RequestParser) processRequestHeaders() {
	req := rp.tx.Request
	req.Header = http.Header(req.Headers.ToMap())

	teField, hasTE := req.Headers.GetField("Transfer-Encoding")
	clField, hasCL := req.Headers.GetField("Content-Length")

	switch {
	case hasTE:
		if strings.TrimSpace(teField.Value) == "chunked" {
			req.TransferCoding = TransferChunked
		} else {
			req.TransferCoding = TransferInvalid
			req.Flags = req.Flags.Set(FlagInvalidChunking)
		}
		if hasCL {
			req.Flags = req.Flags.Set(FlagRequestSmuggling)
		}
	case hasCL:
		if clField.Flags.Has(FlagRepeated) {
			req.Flags = req.Flags.Set(FlagRequestSmuggling)
		}
		n, err := parseContentLength(clField.Value)
		if err != nil {
			req.TransferCoding = TransferInvalid
			rp.lastErr = err
		} else {
			req.TransferCoding = TransferIdentity
			req.ContentLength = n
			req.Chunked = false
		}
	default:
		req.TransferCoding = TransferNoBody
		req.ContentLength = 0
	}
	req.Chunked = req.TransferCoding == TransferChunked

	if host, ok := req.Headers.Get("Host"); ok {
		hostOnly, _, _ := strings.Cut(host, ":")
		req.RemoteHost = hostOnly
		if req.URIHost != "" {
			uriHostOnly, _, _ := strings.Cut(req.URIHost, ":")
			if !strings.EqualFold(uriHostOnly, hostOnly) {
				req.Flags = req.Flags.Set(FlagHostAmbiguous)
			}
		}
	} else if req.ProtocolNumber >= Protocol11 {
		req.Flags = req.Flags.Set(FlagHostMissing)
	}

	if req.Scheme != "" {
		req.URL = req.URI
	} else if req.RemoteHost != "" {
		req.URL = "http://" + req.RemoteHost + req.URI
	} else {
		req.URL = req.URI
	}

	if ct, ok := req.Headers.Get("Content-Type"); ok {
		req.ContentType = lowerContentType(ct)
	}
	if v, ok := req.Headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		req.Close = true
	}

	if rp.conn.cfg.EnableRequestCookies {
		if v, ok := req.Headers.Get("Cookie"); ok {
			req.Cookies = ParseCookieV0(v)
		}
	}
	if rp.conn.cfg.EnableRequestAuth {
		if v, ok := req.Headers.Get("Authorization"); ok {
			req.AuthScheme, req.AuthUser, req.AuthPassword = ParseAuthorization(v)
		}
	}
}

func parseContentLength(v string) (int64, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, errInvalidContentLength
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errInvalidContentLength
		}
	}
	n, err := strconv.ParseInt(s, 10, 63)
	if err != nil {
		return 0, errInvalidContentLength
	}
	return n, nil
}

func lowerContentType(ct string) string {
	ct = strings.ToLower(ct)
	if idx := strings.IndexAny(ct, " \t;"); idx >= 0 {
		ct = ct[:idx]
	}
	return ct
}

// deliverRequestBody routes body bytes either through the multipart
// parser (when this transaction's Content-Type selected one) or directly
// to the RequestBodyData hook, tracking Request.Size either way.
func (rp *RequestParser) deliverRequestBody(data []byte) CallbackStatus {
	rp.tx.Request.Size += len(data)
	if rp.putSink != nil {
		rp.writePutSink(data)
	}
	if rp.mp != nil {
		// MultipartParser takes ownership of firing RequestFileData for
		// FILE parts; everything else still surfaces as body data so a
		// generic body inspector keeps seeing the whole stream.
		if _, err := rp.mp.Feed(data, 0); err != nil {
			rp.lastErr = err
		}
	}
	return fireData(rp.conn.hooks.RequestBodyData, rp.tx, data)
}

// multipartBoundary extracts the boundary parameter from a
// multipart/form-data Content-Type header, flagging the transaction when
// the header is present but malformed (FlagBoundaryInvalid) or merely
// unusual (FlagBoundaryUnusual: RFC-legal but rarely seen in practice).
func multipartBoundary(req *Request) (string, bool) {
	raw, ok := req.Headers.Get("Content-Type")
	if !ok {
		return "", false
	}
	lower := strings.ToLower(raw)
	trimmed := strings.TrimSpace(lower)
	if !strings.HasPrefix(trimmed, "multipart/form-data") {
		return "", false
	}
	if !strings.HasPrefix(trimmed, "multipart/form-data;") {
		req.Flags = req.Flags.Set(FlagBoundaryInvalid)
	}

	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return "", false
	}
	val := raw[idx+len("boundary="):]
	if end := strings.IndexByte(val, ';'); end >= 0 {
		val = val[:end]
	}

	withLWS := val
	val = strings.TrimSpace(val)
	if withLWS != val {
		req.Flags = req.Flags.Set(FlagBoundaryUnusual)
	}

	quoted := false
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
		quoted = true
	}
	if val == "" || len(val) > 70 {
		req.Flags = req.Flags.Set(FlagBoundaryInvalid)
		return "", false
	}

	unusual := quoted
	for i := 0; i < len(val); i++ {
		c := val[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '-':
			// plain bchars, neither invalid nor unusual
		case c == '\'' || c == '(' || c == ')' || c == '+' || c == '_' ||
			c == ',' || c == '.' || c == '/' || c == ':' || c == '=' || c == '?' || c == ' ':
			unusual = true
		default:
			req.Flags = req.Flags.Set(FlagBoundaryInvalid)
		}
	}
	if unusual {
		req.Flags = req.Flags.Set(FlagBoundaryUnusual)
	}
	return val, true
}
