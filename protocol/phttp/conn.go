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
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/htpgo/common"
	"github.com/packetd/htpgo/common/socket"
	"github.com/packetd/htpgo/connstream"
	"github.com/packetd/htpgo/internal/zerocopy"
	"github.com/packetd/htpgo/protocol"
)

// Conn is the per-TCP-connection protocol.Conn implementation for HTTP.
//
// Unlike protocol.L7TCPConn, which hands each direction its own,
// independent Decoder, Conn drives a single shared ConnectionParser: the
// CONNECT handoff and the 100-Continue interim response both require the
// response side to observe (and influence) the request side's progress,
// which two decoders with no shared state cannot express.
//
// serverPort decides the direction of a given socket.Tuple: a packet whose
// destination port equals serverPort belongs to the request direction
// (inbound), and the converse direction is the response (outbound).
type Conn struct {
	mut        sync.Mutex
	conn       *connstream.Conn
	serverPort socket.Port
	parser     *ConnectionParser

	ch          chan<- socket.RoundTrip
	lastArrived time.Time
}

// NewConn returns a protocol.Conn that parses st as an HTTP/1.x connection.
func NewConn(st socket.Tuple, serverPort socket.Port, cfg Config) protocol.Conn {
	c := &Conn{
		conn:       connstream.NewConn(st, connstream.NewTCPStream),
		serverPort: serverPort,
	}

	c.parser = NewConnectionParser(st, cfg, &Hooks{
		RequestStart: func(tx *Transaction) CallbackStatus {
			tx.Request.Time = c.lastArrived
			return HookOK
		},
		ResponseComplete: func(tx *Transaction) CallbackStatus {
			tx.Response.Time = c.lastArrived
			return HookOK
		},
		TransactionComplete: func(tx *Transaction) CallbackStatus {
			c.emit(tx)
			return HookOK
		},
	})
	return c
}

// emit pushes a completed transaction onto the active OnL4Packet call's
// channel, annotating Request/Response with the peer addresses the
// exporters key their labels on.
func (c *Conn) emit(tx *Transaction) {
	if c.ch == nil {
		return
	}

	st := c.parser.Connection().Tuple
	clientIP, clientPort, serverIP, serverPort := c.endpoints(st)

	tx.Request.Host = clientIP
	tx.Request.Port = clientPort
	tx.Response.Host = serverIP
	tx.Response.Port = serverPort

	rt := RoundTrip{tx: tx}
	if !rt.Validate() {
		return
	}
	c.ch <- rt
}

// endpoints splits the connection's identifying tuple into client/server
// address pairs using serverPort to tell which side is which.
func (c *Conn) endpoints(st socket.Tuple) (clientIP string, clientPort uint16, serverIP string, serverPort uint16) {
	if st.DstPort == c.serverPort {
		return st.SrcIP.String(), uint16(st.SrcPort), st.DstIP.String(), uint16(st.DstPort)
	}
	return st.DstIP.String(), uint16(st.DstPort), st.SrcIP.String(), uint16(st.SrcPort)
}

// OnL4Packet feeds one Layer-4 segment through the parser, emitting any
// transactions it completes onto ch.
func (c *Conn) OnL4Packet(pkt socket.L4Packet, ch chan<- socket.RoundTrip) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.ch = ch
	c.lastArrived = pkt.ArrivedTime()

	tuple := pkt.SocketTuple()
	inbound := tuple.DstPort == c.serverPort

	err := c.conn.Write(pkt, func(r zerocopy.Reader) {
		b, rerr := r.Read(common.ReadWriteBlockSize)
		if rerr != nil {
			return
		}
		if inbound {
			c.parser.ReqData(b)
		} else {
			c.parser.ResData(b)
		}
	})
	if err != nil {
		if errors.Is(err, connstream.ErrClosed) {
			return protocol.ErrConnClosed
		}
		return err
	}

	if seg, ok := pkt.(*socket.TCPSegment); ok && seg.FIN {
		if inbound {
			c.parser.ReqData(nil)
		} else {
			c.parser.ResData(nil)
		}
	}
	return nil
}

// Stats returns the underlying connstream.Conn's per-direction counters.
func (c *Conn) Stats() []connstream.TupleStats {
	return c.conn.Stats()
}

// Free releases resources held by the connection, notably an open
// multipart file sink left behind by a transaction truncated mid-part.
func (c *Conn) Free() {
	c.parser.Close()
}

// IsClosed reports whether both directions of the connection have closed.
func (c *Conn) IsClosed() bool {
	return c.conn.IsClosed()
}

// ActiveAt returns the connection's last-active time.
func (c *Conn) ActiveAt() time.Time {
	return c.conn.ActiveAt()
}
