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

// Config is the immutable, borrowed configuration a ConnectionParser is
// built from. configFromOptions (http.go) assembles it from the
// protocol's common.Options; the parser never owns or mutates it.
type Config struct {
	// FieldLimit bounds the bytes a single line (including bytes carried
	// across chunk boundaries) may occupy before the parser fails the
	// direction with a size error. 0 disables the cap. Folded continuation
	// lines are joined into the pending header field without a further cap.
	FieldLimit int `config:"fieldLimit" mapstructure:"fieldLimit"`

	// EnableRequestCookies turns on Cookie (v0) header extraction.
	EnableRequestCookies bool `config:"enableRequestCookies" mapstructure:"enableRequestCookies"`

	// EnableRequestAuth turns on Authorization header extraction
	// (Basic/Digest).
	EnableRequestAuth bool `config:"enableRequestAuth" mapstructure:"enableRequestAuth"`

	// EnableResponseDecompression routes a gzip/deflate-encoded response
	// body through a streaming decompressor before the body-data hook
	// fires; when false, entity length equals message length and bytes
	// flow through unchanged.
	EnableResponseDecompression bool `config:"enableResponseDecompression" mapstructure:"enableResponseDecompression"`

	// MultipartBoundaryCaseSensitive selects which of the two historical
	// multipart boundary-matching behaviors to use. The specification
	// prefers case-sensitive (the later, better-tested implementation);
	// set false to restore the earlier lowercase-and-compare behavior.
	MultipartBoundaryCaseSensitive bool `config:"multipartBoundaryCaseSensitive" mapstructure:"multipartBoundaryCaseSensitive"`

	// EnableFileExtraction turns on streaming a multipart FILE part to a
	// temp file instead of buffering it in memory.
	EnableFileExtraction bool `config:"enableFileExtraction" mapstructure:"enableFileExtraction"`

	// MaxFilePartsPerTransaction caps how many FILE parts of a single
	// transaction may be extracted to disk; 0 means unlimited.
	MaxFilePartsPerTransaction int `config:"maxFilePartsPerTransaction" mapstructure:"maxFilePartsPerTransaction"`

	// TempDir is the directory temp files are created in (os.CreateTemp,
	// owner-only mode 0600, re-applied with Chmod); empty means the OS
	// default temp directory.
	TempDir string `config:"tempDir" mapstructure:"tempDir"`
}

// DefaultConfig returns the parser's out-of-the-box configuration.
func DefaultConfig() Config {
	return Config{
		FieldLimit:                     1 << 20, // 1 MiB
		EnableRequestCookies:           true,
		EnableRequestAuth:              true,
		EnableResponseDecompression:    true,
		MultipartBoundaryCaseSensitive: true,
		EnableFileExtraction:           false,
		MaxFilePartsPerTransaction:     64,
		TempDir:                        "",
	}
}
