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
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// errInvalidContentLength is returned internally when a Content-Length
// header value is not a clean non-negative decimal integer.
var errInvalidContentLength = errors.New("http/phttp: invalid content-length")

// ParseCookieV0 parses a "Cookie" header value into its name=value pairs,
// per the original Netscape ("v0") cookie grammar: semicolon-separated,
// optionally space-padded, first '=' splits name from value. Malformed
// pairs (no '=') are skipped rather than failing the whole header, in
// keeping with the permissive posture of the rest of the core.
func ParseCookieV0(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// ParseAuthorization parses an "Authorization" header value of scheme
// Basic or Digest, returning the scheme plus (for Basic) the decoded
// user/password. Digest is recognized but its parameter list is left to
// the caller; an unrecognized scheme is returned as-is with empty
// user/password.
func ParseAuthorization(raw string) (scheme, user, password string) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), " ")
	if !ok {
		return raw, "", ""
	}
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(scheme) {
	case "basic":
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return scheme, "", ""
		}
		user, password, _ = strings.Cut(string(decoded), ":")
		return scheme, user, password
	default:
		return scheme, "", ""
	}
}
