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
	"os"

	"github.com/packetd/htpgo/logger"
)

// openFileSink creates a mkstemp-style, owner-only-permission temp file
// for the current FILE part and swaps the part's in-memory Value buffer
// for streaming writes to disk, honoring MaxFilePartsPerTransaction.
func (mp *MultipartParser) openFileSink() {
	if mp.cfg.MaxFilePartsPerTransaction > 0 {
		count := 0
		for _, p := range mp.tx.MultipartBody.Parts {
			if p.Type == PartFile {
				count++
			}
		}
		if count > mp.cfg.MaxFilePartsPerTransaction {
			return
		}
	}

	f, err := os.CreateTemp(mp.cfg.TempDir, "htpgo-multipart-file-*")
	if err != nil {
		logger.Warnf("phttp: create multipart file sink failed: %v", err)
		return
	}
	if err := f.Chmod(0o600); err != nil {
		logger.Warnf("phttp: chmod multipart file sink failed: %v", err)
	}
	mp.curPart.FilePath = f.Name()
	mp.sinkFile = f
}

func (mp *MultipartParser) writeFileSink(data []byte) {
	if mp.sinkFile == nil {
		mp.curPart.Value = append(mp.curPart.Value, data...)
		return
	}
	if _, err := mp.sinkFile.Write(data); err != nil {
		logger.Warnf("phttp: write multipart file sink failed: %v", err)
	}
	if mp.hooks != nil {
		fireData(mp.hooks.RequestFileData, mp.tx, data)
	}
}

func (mp *MultipartParser) closeFileSink() {
	if mp.sinkFile == nil {
		return
	}
	if err := mp.sinkFile.Close(); err != nil {
		logger.Warnf("phttp: close multipart file sink failed: %v", err)
	}
	mp.sinkFile = nil
}

// openPutSink creates a temp file a PUT request body is streamed to
// in addition to the ordinary body-data hook, mirroring
// openFileSink's mkstemp-style handling for multipart FILE parts.
func (rp *RequestParser) openPutSink() {
	f, err := os.CreateTemp(rp.conn.cfg.TempDir, "htpgo-put-*")
	if err != nil {
		logger.Warnf("phttp: create put file sink failed: %v", err)
		return
	}
	if err := f.Chmod(0o600); err != nil {
		logger.Warnf("phttp: chmod put file sink failed: %v", err)
	}
	rp.tx.Request.FilePath = f.Name()
	rp.putSink = f
}

func (rp *RequestParser) writePutSink(data []byte) {
	if rp.putSink == nil {
		return
	}
	if _, err := rp.putSink.Write(data); err != nil {
		logger.Warnf("phttp: write put file sink failed: %v", err)
	}
}

func (rp *RequestParser) closePutSink() {
	if rp.putSink == nil {
		return
	}
	if err := rp.putSink.Close(); err != nil {
		logger.Warnf("phttp: close put file sink failed: %v", err)
	}
	rp.putSink = nil
}
