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

// Package json centralizes this module's JSON codec behind the
// standard library's surface so callers never import encoding/json (or
// goccy/go-json) directly; swapping the backend only touches this file.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// RawMessage mirrors encoding/json.RawMessage: a value that is already
// valid JSON and is copied verbatim into/out of a surrounding document.
type RawMessage = gojson.RawMessage

// Marshal renders v as JSON.
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal parses JSON data into v.
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// Encoder streams successive JSON values to an io.Writer, one per line.
type Encoder struct {
	enc *gojson.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) Encoder {
	return Encoder{enc: gojson.NewEncoder(w)}
}

// Encode writes the JSON encoding of v to the underlying writer, followed
// by a newline.
func (e Encoder) Encode(v any) error {
	return e.enc.Encode(v)
}
