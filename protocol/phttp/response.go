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
	"net/http"
	"strconv"
	"strings"
)

type responseState uint8

const (
	resIdle responseState = iota
	resLine
	resHeaders
	resBodyDetermine
	resBodyChunked
	resBodyIdentity
	resFinalize
	resRawUntilClose
)

// ResponseParser is the outbound-direction state machine. It is paced by
// the request side on a strict FIFO basis: it only begins parsing the Nth
// response once the Nth transaction exists (created when the first byte of
// its request arrives), which is what allows a 100-Continue interim response, or a
// CONNECT tunnel response, to be observed while the matching request body
// is still (or never) being streamed.
type ResponseParser struct {
	conn  *ConnectionParser
	state responseState

	txIdx int
	tx    *Transaction

	la  *LineAssembler
	hdr *HeaderBlockParser

	chunkDec *ChunkedDecoder
	idDec    *IdentityDecoder
	decomp   *decompressor

	headerLinesSeen int
	saw100Continue  bool
}

func newResponseParser(cp *ConnectionParser) *ResponseParser {
	return &ResponseParser{
		conn: cp,
		la:   NewLineAssembler(cp.cfg.FieldLimit),
	}
}

// run mirrors RequestParser.run for the outbound direction.
func (rp *ResponseParser) run(chunk []byte) (consumed int, outcome stepOutcome, err error) {
	offset := 0
	for offset < len(chunk) || rp.state == resFinalize {
		switch rp.state {
		case resIdle:
			if rp.txIdx >= len(rp.conn.conn.Transactions) {
				return offset, outNeedData, nil
			}
			rp.tx = rp.conn.conn.Transactions[rp.txIdx]
			rp.la = NewLineAssembler(rp.conn.cfg.FieldLimit)
			rp.headerLinesSeen = 0
			fire(rp.conn.hooks.ResponseStart, rp.tx)
			rp.state = resLine

		case resLine:
			line, n, ok, _, lerr := rp.la.Next(chunk, offset)
			offset += n
			if lerr != nil {
				return offset, outError, lerr
			}
			if !ok {
				return offset, outNeedData, nil
			}
			if isAllWhitespace(line) {
				continue
			}
			if !rp.parseStatusLine(line) {
				// Browser-compatible heuristic: a first line that does not
				// look like a status line is itself body data, not a
				// line to discard -- the LineAssembler has already
				// consumed it by the time parseStatusLine declines it, so
				// it must be delivered explicitly here.
				rp.state = resRawUntilClose
				rp.idDec = NewIdentityDecoder(0, false)
				rp.tx.Response.Progress = ProgressBody
				rp.deliverResponseBody(line)
				continue
			}
			rp.tx.Response.Progress = ProgressHeaders
			rp.hdr = NewHeaderBlockParser(rp.tx.Response.Headers)
			if rp.tx.Response.StatusNumber != 100 {
				if cb := fire(rp.conn.hooks.ResponseLine, rp.tx); cb == HookError {
					return offset, outError, nil
				} else if cb == HookStop {
					return offset, outStop, nil
				}
			}
			rp.state = resHeaders

		case resHeaders:
			if offset == 0 && rp.headerLinesSeen > 0 {
				rp.tx.Response.Flags = rp.tx.Response.Flags.Set(FlagMultiPacketHeaders)
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
			if cb := fireData(rp.conn.hooks.ResponseHeaderData, rp.tx, line); cb == HookError {
				return offset, outError, nil
			}
			rp.headerLinesSeen++
			if rp.hdr.FeedLine(line) {
				rp.processResponseHeaders()
				if cb := fire(rp.conn.hooks.ResponseHeaders, rp.tx); cb == HookError {
					return offset, outError, nil
				} else if cb == HookStop {
					return offset, outStop, nil
				}

				if rp.tx.Response.StatusNumber == 100 {
					if rp.saw100Continue {
						rp.tx.Response.Flags = rp.tx.Response.Flags.Set(Flag100ContinueRepeated)
					}
					rp.saw100Continue = true
					rp.tx.Response.Headers = NewHeaderTable()
					rp.tx.Response.Progress = ProgressLine
					rp.state = resLine
					continue
				}

				if rp.tx.Request.Method == "CONNECT" && rp.tx.Response.StatusNumber >= 200 && rp.tx.Response.StatusNumber < 300 {
					rp.state = resFinalize
					continue
				}
				rp.state = resBodyDetermine
			}

		case resBodyDetermine:
			rp.tx.Response.Progress = ProgressBody
			if rp.isNoBodyStatus() {
				rp.state = resFinalize
				continue
			}
			switch rp.tx.Response.TransferCoding {
			case TransferChunked:
				rp.tx.Response.Trailers = NewHeaderTable()
				rp.chunkDec = NewChunkedDecoder(rp.conn.cfg.FieldLimit, rp.tx.Response.Trailers)
				rp.state = resBodyChunked
			case TransferIdentity:
				if rp.tx.Response.ContentLength == 0 {
					rp.state = resFinalize
				} else {
					rp.idDec = NewIdentityDecoder(rp.tx.Response.ContentLength, true)
					rp.state = resBodyIdentity
				}
			default:
				// Unknown framing on a response: legal under HTTP/1.0,
				// consume until the stream closes.
				rp.idDec = NewIdentityDecoder(0, false)
				rp.state = resBodyIdentity
			}
			if rp.conn.cfg.EnableResponseDecompression && rp.tx.Response.ContentEncoding != ContentEncodingNone {
				rp.decomp = newDecompressor(rp.tx.Response.ContentEncoding)
			} else {
				rp.decomp = nil
			}

		case resBodyChunked:
			data, n, step, cerr := rp.chunkDec.Feed(chunk, offset)
			offset += n
			if cerr != nil {
				return offset, outError, cerr
			}
			switch step {
			case chunkedNeedMore:
				rp.deliverResponseBody(data)
				if n == 0 {
					return offset, outNeedData, nil
				}
			case chunkedGotData:
				rp.deliverResponseBody(data)
			case chunkedTrailersBegin:
				rp.tx.Response.Progress = ProgressTrailer
			case chunkedTrailerLine:
				if cb := fireData(rp.conn.hooks.ResponseTrailerData, rp.tx, data); cb == HookError {
					return offset, outError, nil
				}
			case chunkedDone:
				if cb := fireData(rp.conn.hooks.ResponseTrailerData, rp.tx, data); cb == HookError {
					return offset, outError, nil
				}
				if cb := fire(rp.conn.hooks.ResponseTrailer, rp.tx); cb == HookError {
					return offset, outError, nil
				}
				rp.state = resFinalize
			}

		case resBodyIdentity, resRawUntilClose:
			data, n, done := rp.idDec.Feed(chunk, offset)
			offset += n
			rp.deliverResponseBody(data)
			if done {
				rp.state = resFinalize
			} else if n == 0 {
				return offset, outNeedData, nil
			}

		case resFinalize:
			rp.finishDecompression()
			rp.tx.Response.Progress = ProgressComplete
			if cb := fire(rp.conn.hooks.ResponseComplete, rp.tx); cb == HookError {
				return offset, outError, nil
			} else if cb == HookStop {
				return offset, outStop, nil
			}
			fire(rp.conn.hooks.TransactionComplete, rp.tx)
			rp.txIdx++
			if rp.conn.conn.OutStatus == StatusTunnel {
				return offset, outTunnel, nil
			}
			rp.state = resIdle
		}
	}
	return offset, outNeedData, nil
}

// onClose is invoked when the outbound stream has signalled close. An
// unknown-length identity body (legal only under HTTP/1.0 semantics) has
// no other terminator, so this is what drives the response the rest of
// the way to FINALIZE -- the caller must still run() an empty chunk
// afterward for response_complete to fire, since onClose only flips the
// state; it does not loop the state machine itself.
func (rp *ResponseParser) onClose() bool {
	if (rp.state == resBodyIdentity || rp.state == resRawUntilClose) && rp.idDec != nil && !rp.idDec.known {
		rp.idDec.Close()
		rp.state = resFinalize
		return true
	}
	return false
}

func (rp *ResponseParser) deliverResponseBody(data []byte) {
	if len(data) == 0 {
		return
	}
	rp.tx.Response.MessageLength += int64(len(data))
	out := data
	if rp.decomp != nil {
		out = rp.decomp.feed(data)
	}
	if len(out) == 0 {
		return
	}
	rp.tx.Response.EntityLength += int64(len(out))
	rp.tx.Response.Size += len(out)
	fireData(rp.conn.hooks.ResponseBodyData, rp.tx, out)
}

func (rp *ResponseParser) finishDecompression() {
	if rp.decomp == nil {
		return
	}
	tail := rp.decomp.finish()
	if len(tail) > 0 {
		rp.tx.Response.EntityLength += int64(len(tail))
		rp.tx.Response.Size += len(tail)
		fireData(rp.conn.hooks.ResponseBodyData, rp.tx, tail)
	}
	rp.decomp = nil
}

func (rp *ResponseParser) isNoBodyStatus() bool {
	status := rp.tx.Response.StatusNumber
	if status >= 100 && status < 200 {
		return true
	}
	if status == 204 || status == 304 {
		return true
	}
	return rp.tx.Request.Method == "HEAD"
}

// parseStatusLine implements the permissive "HTTP/x.y status-code
// reason-phrase" grammar. It returns false when the line plainly is not a
// status line, triggering the browser-compatible body-bytes heuristic.
func (rp *ResponseParser) parseStatusLine(rawLine []byte) bool {
	res := rp.tx.Response
	res.Flags = res.Flags.Set(LineEnding(rawLine))
	line := TrimCRLF(rawLine)
	if !strings.HasPrefix(string(line), "HTTP/") {
		return false
	}

	rest := string(line[len("HTTP/"):])
	proto, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return false
	}
	res.ProtocolNumber = parseProtocolNumber("HTTP/" + proto)
	res.Protocol = "HTTP/" + proto

	rest = strings.TrimLeft(rest, " ")
	var codeStr, msg string
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		codeStr, msg = rest[:idx], strings.TrimLeft(rest[idx+1:], " ")
	} else {
		codeStr = rest
	}
	if len(codeStr) != 3 {
		res.Flags = res.Flags.Set(FlagStatusLineInvalid)
		return false
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 999 {
		res.Flags = res.Flags.Set(FlagStatusLineInvalid)
		return false
	}
	res.StatusNumber = code
	res.StatusCode = code
	res.Message = msg
	res.Status = strconv.Itoa(code) + " " + msg
	res.Proto = res.Protocol
	return true
}

func (rp *ResponseParser) processResponseHeaders() {
	res := rp.tx.Response
	res.Header = http.Header(res.Headers.ToMap())

	teField, hasTE := res.Headers.GetField("Transfer-Encoding")
	clField, hasCL := res.Headers.GetField("Content-Length")

	switch {
	case hasTE:
		if strings.TrimSpace(teField.Value) == "chunked" {
			res.TransferCoding = TransferChunked
		} else {
			res.TransferCoding = TransferInvalid
			res.Flags = res.Flags.Set(FlagInvalidChunking)
		}
		if hasCL {
			res.Flags = res.Flags.Set(FlagRequestSmuggling)
		}
	case hasCL:
		if clField.Flags.Has(FlagRepeated) {
			res.Flags = res.Flags.Set(FlagRequestSmuggling)
		}
		n, perr := parseContentLength(clField.Value)
		if perr != nil {
			res.TransferCoding = TransferInvalid
		} else {
			res.TransferCoding = TransferIdentity
			res.ContentLength = n
		}
	default:
		res.TransferCoding = TransferUnknown
	}
	res.Chunked = res.TransferCoding == TransferChunked

	if ct, ok := res.Headers.Get("Content-Type"); ok {
		res.ContentType = lowerContentType(ct)
	}
	if ce, ok := res.Headers.Get("Content-Encoding"); ok {
		switch strings.ToLower(strings.TrimSpace(ce)) {
		case "gzip", "x-gzip":
			res.ContentEncoding = ContentEncodingGzip
		case "deflate", "x-deflate":
			res.ContentEncoding = ContentEncodingDeflate
		}
	}
	if v, ok := res.Headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		res.Close = true
	}
}
