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
	"time"

	"github.com/packetd/htpgo/common"
	"github.com/packetd/htpgo/common/socket"
	"github.com/packetd/htpgo/protocol"
)

func init() {
	protocol.Register(socket.L7ProtoHTTP, NewConnPool)
}

// NewConnPool builds the HTTP connection pool. Unlike the generic
// protocol.NewL7TCPConnPool helper, the per-connection Conn here owns a
// single shared ConnectionParser across both directions, because the
// CONNECT handoff and 100-Continue pacing both require one side to see
// the other's parse progress -- something two independent, symmetric
// decoders cannot express.
func NewConnPool(opts common.Options) protocol.ConnPool {
	cfg := configFromOptions(opts)
	return protocol.NewConnPool(
		socket.L4ProtoTCP,
		func(st socket.Tuple, serverPort socket.Port) protocol.Conn {
			return NewConn(st, serverPort, cfg)
		},
		socket.NewTTLCache(socket.TCPMsl*2),
	)
}

func configFromOptions(opts common.Options) Config {
	cfg := DefaultConfig()
	if v, err := opts.GetBool("enableRequestCookies"); err == nil {
		cfg.EnableRequestCookies = v
	}
	if v, err := opts.GetBool("enableRequestAuth"); err == nil {
		cfg.EnableRequestAuth = v
	}
	if v, err := opts.GetBool("enableResponseDecompression"); err == nil {
		cfg.EnableResponseDecompression = v
	}
	if v, err := opts.GetBool("multipartBoundaryCaseSensitive"); err == nil {
		cfg.MultipartBoundaryCaseSensitive = v
	}
	if v, err := opts.GetBool("enableFileExtraction"); err == nil {
		cfg.EnableFileExtraction = v
	}
	if v, err := opts.GetInt("fieldLimit"); err == nil && v > 0 {
		cfg.FieldLimit = v
	}
	return cfg
}

var _ socket.RoundTrip = (*RoundTrip)(nil)

// RoundTrip is one complete request/response pair, exposed through the
// socket.RoundTrip interface the rest of the pipeline (metrics, traces,
// roundtrip sinker) consumes.
type RoundTrip struct {
	tx *Transaction
}

func (rt RoundTrip) Proto() socket.L7Proto { return socket.L7ProtoHTTP }

func (rt RoundTrip) Request() any { return rt.tx.Request }

func (rt RoundTrip) Response() any { return rt.tx.Response }

func (rt RoundTrip) Duration() time.Duration {
	return rt.tx.Response.Time.Sub(rt.tx.Request.Time)
}

func (rt RoundTrip) Validate() bool {
	return rt.tx.Request.Progress == ProgressComplete && rt.tx.Response.Progress == ProgressComplete
}
