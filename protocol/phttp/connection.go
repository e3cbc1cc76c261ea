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

import "github.com/packetd/htpgo/common/socket"

// StreamResult is the outcome ConnectionParser reports to its driver for
// one req_data/res_data call, mirroring libhtp's STREAM_* vocabulary.
type StreamResult uint8

const (
	// StreamData is ordinary progress: the chunk was consumed (in whole
	// or in part; partial consumption only happens on StreamError).
	StreamData StreamResult = iota
	// StreamDataOther means this direction is blocked on a CONNECT
	// handshake outcome: the driver must feed the other direction
	// (expecting a response status line) before retrying this one.
	StreamDataOther
	// StreamTunnel means the connection has switched to raw byte
	// passthrough (post-CONNECT, or any other non-HTTP tunnel); neither
	// direction parses further and the caller should stop calling in.
	StreamTunnel
	// StreamStop means a hook asked the parser to go inert; further
	// calls are accepted but bytes are silently dropped.
	StreamStop
	// StreamClosed is returned for the zero-length call that signals
	// this direction's stream has closed.
	StreamClosed
	// StreamError is fatal: the direction is now permanently broken.
	StreamError
)

// ConnectionParser is the entry point: one instance per TCP connection,
// owning both directional state machines plus the shared Connection/
// Transaction bookkeeping the CONNECT handoff depends on.
//
// It corresponds to the specification's "ConnectionParser (driver)"
// component; the two directions are driven independently by ReqData and
// ResData, each returning a StreamResult the caller uses to pace which
// side it feeds next.
type ConnectionParser struct {
	cfg   Config
	hooks *Hooks
	conn  *Connection

	req *RequestParser
	res *ResponseParser
}

// NewConnectionParser returns a parser for a single TCP connection
// identified by tuple, with hooks wired to emit transaction events.
func NewConnectionParser(tuple socket.Tuple, cfg Config, hooks *Hooks) *ConnectionParser {
	if hooks == nil {
		hooks = &Hooks{}
	}
	cp := &ConnectionParser{cfg: cfg, hooks: hooks, conn: NewConnection(tuple)}
	cp.req = newRequestParser(cp)
	cp.res = newResponseParser(cp)
	return cp
}

// Connection returns the shared connection/transaction state built up so
// far; the caller's hooks normally get everything they need from the
// Transaction passed to each hook, but this is available for inspection
// at shutdown (e.g. to flush the last, possibly-incomplete transaction).
func (cp *ConnectionParser) Connection() *Connection { return cp.conn }

// Close releases resources held by either direction's in-flight parse
// (notably an open multipart file sink) without requiring the stream to
// have delivered a clean end-of-data signal first.
func (cp *ConnectionParser) Close() {
	cp.req.onClose()
	cp.res.onClose()
}

// ReqData feeds inbound (client->server) bytes. A zero-length data slice
// signals that the inbound half of the connection has closed.
func (cp *ConnectionParser) ReqData(data []byte) StreamResult {
	switch cp.conn.InStatus {
	case StatusError:
		return StreamError
	case StatusStop:
		return StreamStop
	case StatusTunnel:
		return StreamTunnel
	}

	if len(data) == 0 {
		cp.conn.InStatus = StatusClosed
		cp.req.onClose()
		return StreamClosed
	}

	cp.conn.InBytes += uint64(len(data))
	_, outcome, err := cp.req.run(data)
	return cp.translate(outcome, err, true)
}

// ResData feeds outbound (server->client) bytes. A zero-length data slice
// signals that the outbound half of the connection has closed.
func (cp *ConnectionParser) ResData(data []byte) StreamResult {
	switch cp.conn.OutStatus {
	case StatusError:
		return StreamError
	case StatusStop:
		return StreamStop
	case StatusTunnel:
		return StreamTunnel
	}

	if len(data) == 0 {
		cp.conn.OutStatus = StatusClosed
		if cp.res.onClose() {
			_, outcome, err := cp.res.run(nil)
			cp.translate(outcome, err, false)
		}
		return StreamClosed
	}

	cp.conn.OutBytes += uint64(len(data))
	_, outcome, err := cp.res.run(data)
	return cp.translate(outcome, err, false)
}

func (cp *ConnectionParser) translate(outcome stepOutcome, err error, inbound bool) StreamResult {
	switch outcome {
	case outError:
		if inbound {
			cp.conn.InStatus = StatusError
		} else {
			cp.conn.OutStatus = StatusError
		}
		return StreamError
	case outStop:
		if inbound {
			cp.conn.InStatus = StatusStop
		} else {
			cp.conn.OutStatus = StatusStop
		}
		return StreamStop
	case outYield:
		cp.conn.InStatus = StatusDataOther
		return StreamDataOther
	case outTunnel:
		cp.conn.InStatus = StatusTunnel
		cp.conn.OutStatus = StatusTunnel
		return StreamTunnel
	default:
		if inbound && cp.conn.InStatus == StatusDataOther {
			cp.conn.InStatus = StatusData
		}
		return StreamData
	}
}
