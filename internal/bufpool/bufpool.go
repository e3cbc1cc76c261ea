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

// Package bufpool hands out pooled, growable byte buffers backed by
// valyala/bytebufferpool.
package bufpool

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
)

var pool bytebufferpool.Pool

// Acquire returns an empty, ready-to-use buffer. The returned
// *bytes.Buffer wraps a pooled byte slice; callers must return it via
// Release once they are done so the backing array can be reused.
func Acquire() *bytes.Buffer {
	bb := pool.Get()
	return bytes.NewBuffer(bb.B[:0])
}

// Release returns buf's backing array to the pool. buf must not be used
// again afterward.
func Release(buf *bytes.Buffer) {
	pool.Put(&bytebufferpool.ByteBuffer{B: buf.Bytes()[:0]})
}
