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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/htpgo/common/socket"
)

// recorder captures the ordered sequence of hook firings, plus any bytes
// carried by a body-data hook, so tests can assert on both the callback
// order (§5 of the specification) and the delivered slice contents.
type recorder struct {
	events []string
	bodies map[string][]string
}

func newRecorder() *recorder {
	return &recorder{bodies: make(map[string][]string)}
}

func (r *recorder) log(name string) func(tx *Transaction) CallbackStatus {
	return func(tx *Transaction) CallbackStatus {
		r.events = append(r.events, name)
		return HookOK
	}
}

func (r *recorder) logData(name string) func(tx *Transaction, data []byte) CallbackStatus {
	return func(tx *Transaction, data []byte) CallbackStatus {
		r.events = append(r.events, name)
		r.bodies[name] = append(r.bodies[name], string(data))
		return HookOK
	}
}

func (r *recorder) hooks() *Hooks {
	return &Hooks{
		TransactionStart:    r.log("transaction_start"),
		TransactionComplete: r.log("transaction_complete"),

		RequestStart:       r.log("request_start"),
		RequestLine:        r.log("request_line"),
		RequestHeaders:     r.log("request_headers"),
		RequestBodyData:    r.logData("request_body_data"),
		RequestTrailer:     r.log("request_trailer"),
		RequestTrailerData: r.logData("request_trailer_data"),
		RequestComplete:    r.log("request_complete"),

		ResponseStart:       r.log("response_start"),
		ResponseLine:        r.log("response_line"),
		ResponseHeaders:     r.log("response_headers"),
		ResponseBodyData:    r.logData("response_body_data"),
		ResponseTrailer:     r.log("response_trailer"),
		ResponseTrailerData: r.logData("response_trailer_data"),
		ResponseComplete:    r.log("response_complete"),
	}
}

func newTestParser(r *recorder) *ConnectionParser {
	return NewConnectionParser(socket.Tuple{}, DefaultConfig(), r.hooks())
}

func newTestParserWithConfig(r *recorder, cfg Config) *ConnectionParser {
	return NewConnectionParser(socket.Tuple{}, cfg, r.hooks())
}

func indexOf(events []string, name string) int {
	for i, e := range events {
		if e == name {
			return i
		}
	}
	return -1
}

// S1: minimal HTTP/0.9 request, response with no status line.
func TestScenarioMinimalHTTP09(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET /x\n")))
	require.Equal(t, StreamClosed, cp.ReqData(nil))

	require.Equal(t, StreamData, cp.ResData([]byte("hello\n")))
	require.Equal(t, StreamClosed, cp.ResData(nil))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, "GET", tx.Request.Method)
	assert.Equal(t, "/x", tx.Request.URI)
	assert.Equal(t, Protocol09, tx.Request.ProtocolNumber)
	assert.Equal(t, []string{"hello\n"}, r.bodies["response_body_data"])

	assert.Less(t, indexOf(r.events, "request_line"), indexOf(r.events, "request_complete"))
	assert.Less(t, indexOf(r.events, "request_complete"), indexOf(r.events, "response_start"))
	assert.Less(t, indexOf(r.events, "response_start"), indexOf(r.events, "response_body_data"))
	assert.Less(t, indexOf(r.events, "response_body_data"), indexOf(r.events, "response_complete"))
}

// S2: chunked request body.
func TestScenarioChunkedRequest(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, TransferChunked, tx.Request.TransferCoding)
	assert.Equal(t, int64(-1), tx.Request.ContentLength)
	assert.Equal(t, []string{"hello"}, r.bodies["request_body_data"])
	assert.Equal(t, ProgressComplete, tx.Request.Progress)
}

// S3: Content-Length + Transfer-Encoding both present -> smuggling flag,
// chunked coding wins.
func TestScenarioContentLengthAndTransferEncoding(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 10\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.True(t, tx.Request.Flags.Has(FlagRequestSmuggling))
	assert.Equal(t, TransferChunked, tx.Request.TransferCoding)
	assert.Equal(t, []string{"hello"}, r.bodies["request_body_data"])
}

// S4: CONNECT followed by a 2xx response switches both directions to
// tunnel mode; tunnel bytes are never parsed or delivered as body.
func TestScenarioConnectSuccess(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamDataOther, cp.ReqData([]byte("CONNECT h:443 HTTP/1.1\r\nHost: h:443\r\n\r\n")))
	require.Equal(t, StreamData, cp.ResData([]byte("HTTP/1.1 200 OK\r\n\r\n")))

	// The handshake only resolves once the driver re-feeds the inbound
	// direction: the first inbound call after the 2xx response is what
	// flips both directions to tunnel mode.
	require.Equal(t, StreamTunnel, cp.ReqData([]byte("tunnel bytes")))

	assert.Equal(t, StatusTunnel, cp.conn.InStatus)
	assert.Equal(t, StatusTunnel, cp.conn.OutStatus)
	assert.Equal(t, StreamTunnel, cp.ReqData([]byte("more tunnel bytes")))
	assert.Len(t, cp.conn.Transactions, 1)
	assert.Empty(t, r.bodies["request_body_data"])
}

// S5: CONNECT followed by a non-2xx response returns the connection to
// ordinary request/response parsing.
func TestScenarioConnectFailure(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamDataOther, cp.ReqData([]byte("CONNECT h:443 HTTP/1.1\r\nHost: h:443\r\n\r\n")))
	result := cp.ResData([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	assert.NotEqual(t, StreamTunnel, result)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET /after HTTP/1.1\r\nHost: h\r\n\r\n")))
	assert.Equal(t, StatusData, cp.conn.InStatus)
	require.Len(t, cp.conn.Transactions, 2)
	assert.Equal(t, "GET", cp.conn.Transactions[1].Request.Method)
}

// S6: multipart body with one part, fed byte-by-byte across the boundary.
func TestScenarioMultipartAcrossChunks(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	body := "--abc\r\nContent-Disposition: form-data; name=\"f\"\r\n\r\nhi\r\n--abc--\r\n"
	head := "POST /upload HTTP/1.1\r\nHost: h\r\n" +
		"Content-Type: multipart/form-data; boundary=abc\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n\r\n"

	require.Equal(t, StreamData, cp.ReqData([]byte(head)))
	for i := 0; i < len(body); i++ {
		res := cp.ReqData([]byte{body[i]})
		require.Equal(t, StreamData, res)
	}

	tx := cp.conn.Transactions[0]
	require.NotNil(t, tx.MultipartBody)
	require.Len(t, tx.MultipartBody.Parts, 1)
	part := tx.MultipartBody.Parts[0]
	assert.Equal(t, "f", part.Name)
	assert.Equal(t, "hi", string(part.Value))
	assert.True(t, tx.MultipartBody.SeenLastBoundary)
	assert.Equal(t, 2, tx.MultipartBody.BoundaryCount)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// S7: a 100-Continue interim response is discarded; only the final status
// line is reported.
func TestScenario100Continue(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")))
	raw := "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"
	require.Equal(t, StreamData, cp.ResData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, 200, tx.Response.StatusNumber)
	assert.Equal(t, 1, countEvents(r.events, "response_line"))
}

func countEvents(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

// S8: after a completed HTTP/1.1 transaction, an inbound line with no
// "HTTP/" prefix parses as a new 0.9 request; the driver then discards
// trailing inbound bytes via the IGNORE_DATA_AFTER_HTTP_0_9 path.
func TestScenarioHTTP09AfterHTTP11(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")))
	require.Equal(t, StreamData, cp.ResData([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")))
	require.Len(t, cp.conn.Transactions, 1)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET /legacy\nextra-bytes-ignored")))
	require.Len(t, cp.conn.Transactions, 2)
	assert.Equal(t, Protocol09, cp.conn.Transactions[1].Request.ProtocolNumber)
}

// Universal property 1: chunking independence. Feeding the same bytes
// split across arbitrary chunk boundaries produces identical callback
// order and identical delivered slice contents (by value) as feeding it
// whole.
func TestChunkingIndependence(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"

	whole := newRecorder()
	cpWhole := newTestParser(whole)
	require.Equal(t, StreamData, cpWhole.ReqData([]byte(raw)))

	piecewise := newRecorder()
	cpPiecewise := newTestParser(piecewise)
	for i := 0; i < len(raw); i++ {
		cpPiecewise.ReqData([]byte{raw[i]})
	}

	// Line-oriented callbacks (request line, headers, completion) fire at
	// the same logical boundaries regardless of physical chunking, so
	// their order must match exactly once body-data events -- which
	// legitimately fire once per physical read rather than once per
	// logical chunk -- are filtered out.
	assert.Equal(t, withoutEvent(whole.events, "request_body_data"), withoutEvent(piecewise.events, "request_body_data"))
	assert.Equal(t, strings.Join(whole.bodies["request_body_data"], ""), strings.Join(piecewise.bodies["request_body_data"], ""))
}

func withoutEvent(events []string, name string) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e != name {
			out = append(out, e)
		}
	}
	return out
}

// Universal property 2: progress is monotone non-decreasing.
func TestMonotoneProgress(t *testing.T) {
	r := newRecorder()
	var last Progress
	hooks := r.hooks()
	hooks.RequestHeaderData = func(tx *Transaction, raw []byte) CallbackStatus {
		require.GreaterOrEqual(t, tx.Request.Progress, last)
		last = tx.Request.Progress
		return HookOK
	}
	cp := NewConnectionParser(socket.Tuple{}, DefaultConfig(), hooks)

	raw := "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 2\r\n\r\nhi"
	for i := 0; i < len(raw); i++ {
		cp.ReqData([]byte{raw[i]})
	}
}

// Universal property 6: header coalescing. N same-name headers join with
// ", " and the REPEATED flag is set exactly once (tested at the Field
// level, so a second Add call cannot re-trigger it spuriously).
func TestHeaderCoalescing(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "GET / HTTP/1.1\r\nHost: h\r\nX-Foo: a\r\nX-Foo: b\r\nX-Foo: c\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	field, ok := tx.Request.Headers.GetField("X-Foo")
	require.True(t, ok)
	assert.Equal(t, "a, b, c", field.Value)
	assert.True(t, field.Flags.Has(FlagRepeated))
}

// Unknown-length (HTTP/1.0-style) response body: the only terminator is
// the outbound stream closing, which must still drive the response to
// FINALIZE so response_complete fires exactly once.
func TestIdentityUnknownLengthClosesOnStreamEnd(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET / HTTP/1.0\r\n\r\n")))
	require.Equal(t, StreamData, cp.ResData([]byte("HTTP/1.0 200 OK\r\n\r\nbody-without-length")))
	require.Equal(t, StreamClosed, cp.ResData(nil))

	assert.Equal(t, 1, countEvents(r.events, "response_complete"))
	tx := cp.conn.Transactions[0]
	assert.Equal(t, ProgressComplete, tx.Response.Progress)
	assert.Equal(t, []string{"body-without-length"}, r.bodies["response_body_data"])

	// Idempotent finalization (universal property 4): a second close
	// signal on an already-closed direction must not refire the hook.
	assert.Equal(t, StreamClosed, cp.ResData(nil))
	assert.Equal(t, 1, countEvents(r.events, "response_complete"))
}

// A request line whose URI is terminated by a tab rather than a space must
// retry the permissive scan with any whitespace as the terminator instead
// of falling back to HTTP/0.9.
func TestScenarioTabTerminatedURI(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "GET /foo\tHTTP/1.1\r\nHost: h\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, "/foo", tx.Request.URI)
	assert.Equal(t, Protocol11, tx.Request.ProtocolNumber)
	assert.True(t, tx.Request.Flags.Has(FlagRequestLineUnusualDelimiter))
}

// An absolute-form URI whose authority disagrees with the Host header must
// be flagged HOST_AMBIGUOUS while still retaining the URI's own value.
func TestScenarioHostAmbiguous(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "GET http://evil.example/path HTTP/1.1\r\nHost: good.example\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, "http://evil.example/path", tx.Request.URI)
	assert.Equal(t, "evil.example", tx.Request.URIHost)
	assert.True(t, tx.Request.Flags.Has(FlagHostAmbiguous))
}

// A matching Host header and URI authority (differing only in letter case)
// must not be flagged.
func TestScenarioHostMatchesURICaseInsensitive(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "GET http://Good.Example/path HTTP/1.1\r\nHost: good.example\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.False(t, tx.Request.Flags.Has(FlagHostAmbiguous))
}

// Content-Encoding's x-gzip/x-deflate aliases must map to the same
// ContentEncoding values as their canonical spellings.
func TestScenarioContentEncodingAliases(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   ContentEncoding
	}{
		{"gzip", ContentEncodingGzip},
		{"x-gzip", ContentEncodingGzip},
		{"deflate", ContentEncodingDeflate},
		{"x-deflate", ContentEncodingDeflate},
	} {
		r := newRecorder()
		cp := newTestParserWithConfig(r, DefaultConfig())

		require.Equal(t, StreamData, cp.ReqData([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")))
		raw := "HTTP/1.1 200 OK\r\nContent-Encoding: " + tc.header + "\r\nContent-Length: 0\r\n\r\n"
		require.Equal(t, StreamData, cp.ResData([]byte(raw)))

		tx := cp.conn.Transactions[0]
		assert.Equal(t, tc.want, tx.Response.ContentEncoding, "Content-Encoding: %s", tc.header)
	}
}

// A 100-Continue interim response must not leak its headers into the final
// response's HeaderTable: without resetting the table between the two, a
// same-named header on both sides would wrongly coalesce with FlagRepeated.
func TestScenario100ContinueDoesNotLeakHeaders(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	require.Equal(t, StreamData, cp.ReqData([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")))
	raw := "HTTP/1.1 100 Continue\r\nX-Foo: a\r\n\r\n" +
		"HTTP/1.1 200 OK\r\nX-Foo: b\r\nContent-Length: 0\r\n\r\n"
	require.Equal(t, StreamData, cp.ResData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	field, ok := tx.Response.Headers.GetField("X-Foo")
	require.True(t, ok)
	assert.Equal(t, "b", field.Value)
	assert.False(t, field.Flags.Has(FlagRepeated))
}

// A chunked trailer block must fire per-line trailer-data hooks distinct
// from request_body_data, and the final trailer header must still land in
// the parsed trailer table.
func TestScenarioChunkedTrailerData(t *testing.T) {
	r := newRecorder()
	cp := newTestParser(r)

	raw := "POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n0\r\nX-Trailer: done\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Equal(t, []string{"hello"}, r.bodies["request_body_data"])
	require.Contains(t, r.bodies, "request_trailer_data")
	field, ok := tx.Request.Trailers.GetField("X-Trailer")
	require.True(t, ok)
	assert.Equal(t, "done", field.Value)
	assert.Equal(t, 1, countEvents(r.events, "request_trailer"))
}

// PUT request bodies are streamed to a temp file when file extraction is
// enabled, mirroring multipart FILE-part handling.
func TestScenarioPutFileSink(t *testing.T) {
	r := newRecorder()
	cfg := DefaultConfig()
	cfg.EnableFileExtraction = true
	cp := newTestParserWithConfig(r, cfg)

	raw := "PUT /upload HTTP/1.1\r\nHost: h\r\nContent-Length: 11\r\n\r\nhello world"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	require.NotEmpty(t, tx.Request.FilePath)
	defer os.Remove(tx.Request.FilePath)

	got, err := os.ReadFile(tx.Request.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

// A PUT request with no body must not create a sink file at all.
func TestScenarioPutWithoutBodySkipsFileSink(t *testing.T) {
	r := newRecorder()
	cfg := DefaultConfig()
	cfg.EnableFileExtraction = true
	cp := newTestParserWithConfig(r, cfg)

	raw := "PUT /upload HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n"
	require.Equal(t, StreamData, cp.ReqData([]byte(raw)))

	tx := cp.conn.Transactions[0]
	assert.Empty(t, tx.Request.FilePath)
}
