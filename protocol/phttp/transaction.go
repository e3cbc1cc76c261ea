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
	"net/http"
	"time"

	"github.com/packetd/htpgo/common/socket"
)

// Progress is the ordered, monotone-non-decreasing lifecycle of one side
// (request or response) of a Transaction.
type Progress uint8

const (
	ProgressNotStarted Progress = iota
	ProgressLine
	ProgressHeaders
	ProgressBody
	ProgressTrailer
	ProgressComplete
)

// ProtocolNumber encodes "HTTP/X.Y" as X*100+Y, plus two sentinels.
type ProtocolNumber int

const (
	ProtocolInvalid ProtocolNumber = -1
	ProtocolUnknown ProtocolNumber = 0
	Protocol09      ProtocolNumber = 9
	Protocol10      ProtocolNumber = 100
	Protocol11      ProtocolNumber = 101
)

// TransferCoding is how a message body is framed.
type TransferCoding uint8

const (
	TransferUnknown TransferCoding = iota
	TransferIdentity
	TransferChunked
	TransferNoBody
	TransferInvalid
)

// ContentEncoding is the body's compression, if any.
type ContentEncoding uint8

const (
	ContentEncodingNone ContentEncoding = iota
	ContentEncodingGzip
	ContentEncodingDeflate
)

// StreamStatus is one direction's lifecycle state, per §3 of the
// specification.
type StreamStatus uint8

const (
	StatusNew StreamStatus = iota
	StatusData
	StatusDataOther
	StatusTunnel
	StatusStop
	StatusClosed
	StatusError
)

// Request is one HTTP request as reconstructed from an inbound byte
// stream. It is a superset of the teacher's trimmed net/http.Request
// view: the Host/Port/Header/Proto/Size/Chunked/Time fields keep the
// RoundTrip exporters (metrics, traces, JSON sink) working unmodified,
// while everything else is the data the permissive core is specified to
// recover.
type Request struct {
	Method         string
	Line           string // raw request line, CR/LF stripped
	URI            string
	URL            string // absolute form, reconstructed for exporter compatibility
	Path           string
	Scheme         string
	URIHost        string // authority carried by an absolute-form URI, if any
	Protocol       string
	ProtocolNumber ProtocolNumber
	Headers        *HeaderTable
	Header         http.Header // derived view, for exporter compatibility
	ContentLength  int64       // -1 == unknown
	TransferCoding TransferCoding
	ContentType    string
	Cookies        map[string]string
	AuthScheme     string
	AuthUser       string
	AuthPassword   string
	Trailers       *HeaderTable
	Flags          Flags
	Progress       Progress

	Host       string
	Port       uint16
	RemoteHost string
	Close      bool
	Size       int
	Chunked    bool
	Time       time.Time

	// FilePath is set when a PUT body is streamed to a temp file rather
	// than delivered only through RequestBodyData (EnableFileExtraction).
	FilePath string
}

// Response is one HTTP response as reconstructed from an outbound byte
// stream.
type Response struct {
	Protocol        string
	ProtocolNumber  ProtocolNumber
	StatusNumber    int // -1 == unknown; otherwise 100..=999
	Message         string
	Headers         *HeaderTable
	Header          http.Header
	TransferCoding  TransferCoding
	ContentLength   int64
	ContentType     string
	ContentEncoding ContentEncoding
	EntityLength    int64 // post-decompression byte count
	MessageLength   int64 // raw bytes consumed, pre-decompression
	Trailers        *HeaderTable
	Flags           Flags
	Progress        Progress
	Body            []byte // optional captured JSON body (exporter use)

	Host       string
	Port       uint16
	Status     string
	StatusCode int
	Proto      string
	Close      bool
	Size       int
	Chunked    bool
	Time       time.Time
}

// Part is one segment of a multipart/form-data body, in appearance order.
type PartType uint8

const (
	PartUnknown PartType = iota
	PartText
	PartFile
	PartPreamble
	PartEpilogue
)

type Part struct {
	Type        PartType
	Name        string
	Filename    string
	Headers     *HeaderTable
	ContentType string
	Value       []byte // TEXT/UNKNOWN content
	FilePath    string // FILE content, streamed to disk
	Len         int    // raw bytes including this part's own headers
}

// MultipartBody is the parsed representation of a request body whose
// Content-Type is multipart/form-data, in appearance order.
type MultipartBody struct {
	Parts            []*Part
	Boundary         string
	BoundaryCount    int
	SeenLastBoundary bool
	Flags            Flags
}

// Transaction is one request/response pair plus the state the
// ConnectionParser needs to pace the two sides against each other.
type Transaction struct {
	Index int

	Request  *Request
	Response *Response

	MultipartBody *MultipartBody

	// connectDestination records the CONNECT target, while the parser is
	// in CONNECT_WAIT_RESPONSE, to decide whether the tunnel should open.
	connectDestination string
}

// NewTransaction returns a freshly-initialized transaction at position
// idx within its connection.
func NewTransaction(idx int) *Transaction {
	return &Transaction{
		Index: idx,
		Request: &Request{
			ContentLength:  -1,
			ProtocolNumber: ProtocolUnknown,
			Headers:        NewHeaderTable(),
		},
		Response: &Response{
			ContentLength:  -1,
			StatusNumber:   -1,
			ProtocolNumber: ProtocolUnknown,
			Headers:        NewHeaderTable(),
		},
	}
}

// Connection is the lifetime root for a single TCP flow: two directional
// parser states plus the ordered transactions they have produced.
type Connection struct {
	Tuple socket.Tuple

	InStatus  StreamStatus
	OutStatus StreamStatus

	InBytes  uint64
	OutBytes uint64

	Transactions []*Transaction
}

// NewConnection returns a freshly-initialized connection.
func NewConnection(tuple socket.Tuple) *Connection {
	return &Connection{
		Tuple:     tuple,
		InStatus:  StatusNew,
		OutStatus: StatusNew,
	}
}
