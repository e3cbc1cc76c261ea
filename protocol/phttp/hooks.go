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

// CallbackStatus is the status a Hooks callback returns. It is the only
// channel a caller has to influence an in-flight parse: ERROR short
// circuits the owning state function with a fatal error, STOP marks the
// direction inert (further bytes are dropped, not errored), OK continues.
type CallbackStatus uint8

const (
	HookOK CallbackStatus = iota
	HookStop
	HookError
)

// Hooks is the callback-registry ("hook") plumbing the connection and
// request/response parsers drive transaction events through. Every field
// is optional; a nil hook is equivalent to one that always returns
// HookOK. Within each direction hooks fire in parse order: start, line,
// header data, headers, body data, trailer data, trailer, complete;
// TransactionComplete follows ResponseComplete.
type Hooks struct {
	TransactionStart    func(tx *Transaction) CallbackStatus
	TransactionComplete func(tx *Transaction) CallbackStatus

	RequestStart       func(tx *Transaction) CallbackStatus
	RequestLine        func(tx *Transaction) CallbackStatus
	RequestHeaders     func(tx *Transaction) CallbackStatus
	RequestHeaderData  func(tx *Transaction, raw []byte) CallbackStatus
	RequestBodyData    func(tx *Transaction, data []byte) CallbackStatus
	RequestFileData    func(tx *Transaction, data []byte) CallbackStatus
	RequestTrailer     func(tx *Transaction) CallbackStatus
	RequestTrailerData func(tx *Transaction, raw []byte) CallbackStatus
	RequestComplete    func(tx *Transaction) CallbackStatus

	ResponseStart       func(tx *Transaction) CallbackStatus
	ResponseLine        func(tx *Transaction) CallbackStatus
	ResponseHeaders     func(tx *Transaction) CallbackStatus
	ResponseHeaderData  func(tx *Transaction, raw []byte) CallbackStatus
	ResponseBodyData    func(tx *Transaction, data []byte) CallbackStatus
	ResponseTrailer     func(tx *Transaction) CallbackStatus
	ResponseTrailerData func(tx *Transaction, raw []byte) CallbackStatus
	ResponseComplete    func(tx *Transaction) CallbackStatus
}

func fire(cb func(*Transaction) CallbackStatus, tx *Transaction) CallbackStatus {
	if cb == nil {
		return HookOK
	}
	return cb(tx)
}

func fireData(cb func(*Transaction, []byte) CallbackStatus, tx *Transaction, data []byte) CallbackStatus {
	if cb == nil {
		return HookOK
	}
	return cb(tx, data)
}
