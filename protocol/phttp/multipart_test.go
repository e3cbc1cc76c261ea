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

func TestUnquotePlain(t *testing.T) {
	got, ok := unquote(`"foo"`)
	if !ok || got != "foo" {
		t.Fatalf("unquote(%q) = %q, %v; want %q, true", `"foo"`, got, ok, "foo")
	}
}

func TestUnquoteWithEscape(t *testing.T) {
	got, ok := unquote(`"fo\"o"`)
	if !ok || got != `fo"o` {
		t.Fatalf("unquote with escape = %q, %v; want %q, true", got, ok, `fo"o`)
	}
}

// An unquoted value is syntactically invalid per the form-data grammar.
func TestUnquoteRejectsUnquotedValue(t *testing.T) {
	_, ok := unquote("foo")
	if ok {
		t.Fatalf("unquote(%q) reported ok; want false for an unquoted value", "foo")
	}
}

// A value ending in a dangling, unescaped backslash is invalid.
func TestUnquoteRejectsTrailingBackslash(t *testing.T) {
	_, ok := unquote(`"foo\`)
	if ok {
		t.Fatalf("unquote with trailing backslash reported ok; want false")
	}
}

func TestParseContentDispositionFlagsUnquotedName(t *testing.T) {
	name, _, flags := parseContentDisposition(`form-data; name=foo`)
	if name != "foo" {
		t.Fatalf("name = %q; want %q", name, "foo")
	}
	if !flags.Has(FlagCDSyntaxInvalid) {
		t.Fatal("expected FlagCDSyntaxInvalid for an unquoted name value")
	}
}

func TestParseContentDispositionWellFormed(t *testing.T) {
	name, filename, flags := parseContentDisposition(`form-data; name="field"; filename="a.txt"`)
	if name != "field" || filename != "a.txt" {
		t.Fatalf("name, filename = %q, %q; want %q, %q", name, filename, "field", "a.txt")
	}
	if flags.Has(FlagCDSyntaxInvalid) {
		t.Fatal("did not expect FlagCDSyntaxInvalid for well-formed quoted params")
	}
}
