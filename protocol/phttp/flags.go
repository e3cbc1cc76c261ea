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

// Flags is a bitset of permissive-parsing anomaly and evasion indicators.
//
// Flags never stop parsing by themselves: they accumulate on a Transaction
// or on an individual header field and are reported at the transaction
// boundary so a downstream detector can decide what to do with them.
type Flags uint64

const (
	// FlagRepeated marks a header field that had more than one
	// occurrence in the same block; its value is the comma-joined
	// concatenation of every occurrence.
	FlagRepeated Flags = 1 << iota

	// FlagFieldUnparseable marks a header line with no colon.
	FlagFieldUnparseable

	// FlagFieldInvalid marks a header whose name is not a valid token.
	// A NUL byte in a header is reported with FlagFieldNUL instead.
	FlagFieldInvalid

	// FlagFieldFolded is defined for a header field continued onto the
	// next line (leading SP/HT). HeaderBlockParser joins folded lines into
	// the field without setting it.
	FlagFieldFolded

	// FlagRequestSmuggling marks a header configuration an intermediary
	// might interpret differently than the origin: Transfer-Encoding
	// together with Content-Length, or a repeated Content-Length. A folded
	// Content-Length does not set it.
	FlagRequestSmuggling

	// FlagInvalidChunking marks a Transfer-Encoding value other than the
	// exact token "chunked".
	FlagInvalidChunking

	// FlagHostMissing marks an HTTP/1.1+ request with no Host header.
	FlagHostMissing

	// FlagHostAmbiguous marks a request whose Host header disagrees with
	// the authority carried in the request URI.
	FlagHostAmbiguous

	// FlagLFLine marks a line terminated by a bare LF (no CR).
	FlagLFLine

	// FlagCRLFLine marks a line terminated by CRLF.
	FlagCRLFLine

	// FlagMultiPacketHeaders marks a header block that was not delivered
	// in a single req_data/res_data call.
	FlagMultiPacketHeaders

	// FlagHTTP09Extra marks an HTTP/0.9 request after which further
	// inbound bytes arrived; those bytes are consumed and discarded.
	FlagHTTP09Extra

	// FlagStatusLineInvalid marks a response first line that does not
	// look like "HTTP/x.y status-code reason"; it is treated as body
	// bytes instead (browser-compatible heuristic).
	FlagStatusLineInvalid

	// Flag100ContinueRepeated marks a response stream that saw a second
	// 100-Continue before the final status line.
	Flag100ContinueRepeated

	// FlagRequestLineLeadingWhitespace marks a request line with leading
	// whitespace before the method.
	FlagRequestLineLeadingWhitespace

	// FlagRequestLineUnusualDelimiter marks a request line using a tab
	// (or other non-space whitespace) as a field delimiter.
	FlagRequestLineUnusualDelimiter

	// FlagRequestLineInvalid marks a request line that could not be
	// meaningfully split into method/URI/protocol at all.
	FlagRequestLineInvalid

	// FlagBoundaryInvalid marks a multipart boundary parameter that is
	// empty, longer than 70 bytes, carries a non-RFC-2046 character, or
	// whose Content-Type prefix is not "multipart/form-data;".
	FlagBoundaryInvalid

	// FlagBoundaryUnusual marks an RFC-legal but rarely-seen boundary:
	// quoted, or containing punctuation real clients avoid.
	FlagBoundaryUnusual

	// FlagPartAfterLastBoundary marks part-looking data (a boundary
	// followed by headers) appearing after SEEN_LAST_BOUNDARY.
	FlagPartAfterLastBoundary

	// FlagCDParamRepeated marks a Content-Disposition header with a
	// duplicated name= or filename= parameter.
	FlagCDParamRepeated

	// FlagCDSyntaxInvalid marks a Content-Disposition header that failed
	// to parse (missing form-data prefix, unterminated quote, dangling
	// backslash escape).
	FlagCDSyntaxInvalid

	// FlagPartHeaderFolding is defined for a folded header line inside a
	// multipart part's header block -- legal but unusual. The multipart
	// parser does not set it.
	FlagPartHeaderFolding

	// FlagFieldNUL marks a header or request line containing an
	// embedded NUL byte.
	FlagFieldNUL

	// FlagPathTraversal is reserved for URI-layer evasion indicators
	// surfaced by the external URI collaborator.
	FlagPathTraversal
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Set returns f with every bit in mask set.
func (f Flags) Set(mask Flags) Flags { return f | mask }
