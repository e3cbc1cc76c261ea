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

// IdentityDecoder frames a body either by a known Content-Length (consume
// exactly N bytes then terminate) or, when the length is unknown -- legal
// only for a response body under HTTP/1.0 semantics -- by consuming until
// the stream itself closes.
type IdentityDecoder struct {
	remain  int64 // bytes left to consume; meaningful only when known is true
	known   bool
	drained int64
}

// NewIdentityDecoder returns a decoder for a body of the given length, or
// of unknown length if known is false.
func NewIdentityDecoder(length int64, known bool) *IdentityDecoder {
	return &IdentityDecoder{remain: length, known: known}
}

// Feed borrows up to len(chunk)-offset bytes of body data. done is true
// once a known-length body has consumed its final byte; for an
// unknown-length body done is only ever signalled by the caller noticing
// stream closure and calling Close.
func (id *IdentityDecoder) Feed(chunk []byte, offset int) (data []byte, consumed int, done bool) {
	avail := len(chunk) - offset
	if avail <= 0 {
		return nil, 0, false
	}

	if !id.known {
		id.drained += int64(avail)
		return chunk[offset:], avail, false
	}

	take := id.remain
	if take > int64(avail) {
		take = int64(avail)
	}
	id.remain -= take
	id.drained += take
	return chunk[offset : offset+int(take)], int(take), id.remain == 0
}

// Close signals that the underlying stream has closed; for an
// unknown-length decoder this is the only way the body is considered
// complete.
func (id *IdentityDecoder) Close() { id.known = true; id.remain = 0 }

// Drained reports the number of bytes delivered so far.
func (id *IdentityDecoder) Drained() int64 { return id.drained }
