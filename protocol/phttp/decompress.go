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
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// decompressor incrementally inflates a gzip- or deflate-encoded response
// body. It is deliberately tolerant of a truncated tail (a body cut short
// by a stream close still yields whatever bytes the codec could produce)
// since the core's job is passive inspection, not strict transport
// validation.
//
// A connection is single-threaded cooperative, so this re-decodes the
// compressed bytes accumulated so far from the start on every feed rather
// than running a concurrent inflate loop behind a pipe: simpler and
// deadlock-free at the cost of doing O(n^2) work over a pathological
// number of tiny feeds, which a passive body inspector can afford.
type decompressor struct {
	encoding   ContentEncoding
	compressed bytes.Buffer
	emitted    int
}

func newDecompressor(encoding ContentEncoding) *decompressor {
	return &decompressor{encoding: encoding}
}

// feed appends compressed bytes and returns whatever newly-decodable
// plaintext they produced.
func (d *decompressor) feed(compressed []byte) []byte {
	d.compressed.Write(compressed)
	return d.decodeNew()
}

// finish signals no more compressed bytes are coming and returns any
// plaintext not yet surfaced by feed, including the tail of a stream
// truncated mid-codec-frame.
func (d *decompressor) finish() []byte {
	return d.decodeNew()
}

// decodeNew drives the codec over the entire compressed buffer collected
// so far and returns only the plaintext suffix not already emitted.
func (d *decompressor) decodeNew() []byte {
	var r io.Reader
	switch d.encoding {
	case ContentEncodingGzip:
		gz, err := gzip.NewReader(bytes.NewReader(d.compressed.Bytes()))
		if err != nil {
			return nil
		}
		r = gz
	case ContentEncodingDeflate:
		r = flate.NewReader(bytes.NewReader(d.compressed.Bytes()))
	default:
		return nil
	}

	plain, _ := io.ReadAll(r) // a truncated frame still yields its decodable prefix
	if len(plain) <= d.emitted {
		return nil
	}
	fresh := make([]byte, len(plain)-d.emitted)
	copy(fresh, plain[d.emitted:])
	d.emitted = len(plain)
	return fresh
}
