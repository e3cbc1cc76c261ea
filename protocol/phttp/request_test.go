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

import "testing"

func newTestRequest(contentType string) *Request {
	req := NewTransaction(0).Request
	req.Headers.Add("Content-Type", contentType, "Content-Type: "+contentType, 0)
	return req
}

func TestMultipartBoundaryPlain(t *testing.T) {
	req := newTestRequest("multipart/form-data; boundary=abc123")
	boundary, ok := multipartBoundary(req)
	if !ok || boundary != "abc123" {
		t.Fatalf("got (%q, %v), want (\"abc123\", true)", boundary, ok)
	}
	if req.Flags.Has(FlagBoundaryInvalid) || req.Flags.Has(FlagBoundaryUnusual) {
		t.Fatalf("unexpected flags on a well-formed boundary: %v", req.Flags)
	}
}

func TestMultipartBoundaryNotMultipart(t *testing.T) {
	req := newTestRequest("application/json")
	if _, ok := multipartBoundary(req); ok {
		t.Fatal("expected no boundary for a non-multipart content type")
	}
}

func TestMultipartBoundaryMissingSemicolon(t *testing.T) {
	// The boundary parameter is still found, but the header didn't use
	// the expected "multipart/form-data;" delimiter -- flagged invalid.
	req := newTestRequest("multipart/form-data boundary=abc")
	boundary, ok := multipartBoundary(req)
	if !ok || boundary != "abc" {
		t.Fatalf("got (%q, %v), want (\"abc\", true)", boundary, ok)
	}
	if !req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("expected FlagBoundaryInvalid when the ';' delimiter is missing")
	}
}

func TestMultipartBoundaryEmptyIsInvalid(t *testing.T) {
	req := newTestRequest("multipart/form-data; boundary=")
	_, ok := multipartBoundary(req)
	if ok {
		t.Fatal("expected an empty boundary to be rejected")
	}
	if !req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("expected FlagBoundaryInvalid on an empty boundary")
	}
}

func TestMultipartBoundaryTooLongIsInvalid(t *testing.T) {
	long := make([]byte, 71)
	for i := range long {
		long[i] = 'a'
	}
	req := newTestRequest("multipart/form-data; boundary=" + string(long))
	_, ok := multipartBoundary(req)
	if ok {
		t.Fatal("expected a >70 byte boundary to be rejected")
	}
	if !req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("expected FlagBoundaryInvalid on an oversized boundary")
	}
}

func TestMultipartBoundaryUnusualCharacters(t *testing.T) {
	req := newTestRequest("multipart/form-data; boundary=a_b,c")
	boundary, ok := multipartBoundary(req)
	if !ok || boundary != "a_b,c" {
		t.Fatalf("got (%q, %v), want (\"a_b,c\", true)", boundary, ok)
	}
	if !req.Flags.Has(FlagBoundaryUnusual) {
		t.Fatal("expected FlagBoundaryUnusual for RFC-legal but rare boundary characters")
	}
	if req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("did not expect FlagBoundaryInvalid for a merely unusual boundary")
	}
}

func TestMultipartBoundaryQuotedIsUnusual(t *testing.T) {
	req := newTestRequest(`multipart/form-data; boundary="abc123"`)
	boundary, ok := multipartBoundary(req)
	if !ok || boundary != "abc123" {
		t.Fatalf("got (%q, %v), want (\"abc123\", true)", boundary, ok)
	}
	if !req.Flags.Has(FlagBoundaryUnusual) {
		t.Fatal("expected FlagBoundaryUnusual for a quoted boundary value")
	}
}

func TestMultipartBoundaryInvalidCharacter(t *testing.T) {
	req := newTestRequest("multipart/form-data; boundary=a$b")
	_, ok := multipartBoundary(req)
	if !ok {
		t.Fatal("a boundary with an illegal character is still extracted, just flagged")
	}
	if !req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("expected FlagBoundaryInvalid for a non-RFC-2046 boundary character")
	}
}

func TestMultipartBoundaryWrongPrefixIsInvalid(t *testing.T) {
	// Shares the "multipart/form-data" prefix but the parameter delimiter
	// isn't exactly "multipart/form-data;" -- the boundary is still
	// extracted, but the mismatch is flagged as invalid.
	req := newTestRequest("multipart/form-dataX; boundary=abc")
	boundary, ok := multipartBoundary(req)
	if !ok || boundary != "abc" {
		t.Fatalf("got (%q, %v), want (\"abc\", true)", boundary, ok)
	}
	if !req.Flags.Has(FlagBoundaryInvalid) {
		t.Fatal("expected FlagBoundaryInvalid for a non-exact content-type prefix")
	}
}
