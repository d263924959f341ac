// Copyright 2020 DataStax
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cqlframe implements the outermost envelope of the CQL binary
// protocol: the fixed 9-byte header, optional body compression, and the
// plumbing that turns a raw frame into an opcode-tagged body a caller can
// hand to package request or package result.
package cqlframe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/primitive"
)

// OpCode distinguishes the kind of payload a frame carries.
type OpCode uint8

const (
	OpCodeError    OpCode = 0x00
	OpCodeStartup  OpCode = 0x01
	OpCodeReady    OpCode = 0x02
	OpCodeOptions  OpCode = 0x05
	OpCodeSupported OpCode = 0x06
	OpCodeQuery    OpCode = 0x07
	OpCodeResult   OpCode = 0x08
	OpCodePrepare  OpCode = 0x09
	OpCodeExecute  OpCode = 0x0A
	OpCodeRegister OpCode = 0x0B
	OpCodeEvent    OpCode = 0x0C
	OpCodeBatch    OpCode = 0x0D
)

// Flag bits of the header's flags byte.
type Flag uint8

const (
	FlagCompressed Flag = 0x01
	FlagTracing    Flag = 0x02
)

func (f Flag) Contains(other Flag) bool { return f&other != 0 }

const (
	headerLength  = 9
	protoVersion  = uint8(4)
	responseBit   = 0x80
)

// Header is the fixed-size preamble of every frame: version, flags, stream
// id, opcode, and the length of the body that follows.
type Header struct {
	IsResponse bool
	Flags      Flag
	StreamID   int16
	OpCode     OpCode
	BodyLength int32
}

// Frame pairs a decoded Header with its still-possibly-compressed body
// bytes. Callers decompress (if FlagCompressed is set) and hand the result
// to the opcode-appropriate decoder in package request or package result.
type Frame struct {
	Header *Header
	Body   []byte
}

// BodyCompressor pluggably compresses/decompresses a frame body. Selecting
// which compressor (if any) a connection negotiates via STARTUP is outside
// this package's concern; this interface only has to carry bytes through
// whichever algorithm was agreed on.
type BodyCompressor interface {
	Algorithm() string
	Compress(source io.Reader, dest io.Writer) error
	Decompress(source io.Reader, dest io.Writer) error
}

// EncodeHeader writes h's 9 bytes. bodyLength is taken as a parameter
// rather than from h.BodyLength so the length written is that of the body
// as actually sent (after compression, in EncodeFrame) without updating h.
func EncodeHeader(h *Header, bodyLength int32, dest *bytes.Buffer) {
	version := protoVersion
	if h.IsResponse {
		version |= responseBit
	}
	primitive.WriteByte(version, dest)
	primitive.WriteByte(uint8(h.Flags), dest)
	primitive.WriteShort(uint16(h.StreamID), dest)
	primitive.WriteByte(uint8(h.OpCode), dest)
	primitive.WriteInt(bodyLength, dest)
}

func DecodeHeader(c *primitive.Cursor) (*Header, error) {
	version, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("cannot read version: %w", err)
	}
	h := &Header{IsResponse: version&responseBit != 0}
	rawFlags, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("cannot read flags: %w", err)
	}
	h.Flags = Flag(rawFlags)
	streamID, err := c.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("cannot read stream id: %w", err)
	}
	h.StreamID = int16(streamID)
	opcode, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("cannot read opcode: %w", err)
	}
	h.OpCode = OpCode(opcode)
	bodyLength, err := c.ReadIntLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read body length: %w", err)
	}
	h.BodyLength = int32(bodyLength)
	return h, nil
}

// EncodeFrame writes a full frame: header followed by body, compressing the
// body first if h.Flags requests it. A compression request with a nil
// compressor fails with cqlerr.Unsupported.
func EncodeFrame(h *Header, body []byte, compressor BodyCompressor, dest *bytes.Buffer) error {
	payload := body
	if h.Flags.Contains(FlagCompressed) {
		if compressor == nil {
			return cqlerr.Unsupported("frame requests compression but no compressor is configured")
		}
		var compressed bytes.Buffer
		if err := compressor.Compress(bytes.NewReader(body), &compressed); err != nil {
			return fmt.Errorf("cannot compress frame body: %w", err)
		}
		payload = compressed.Bytes()
	}
	EncodeHeader(h, int32(len(payload)), dest)
	dest.Write(payload)
	return nil
}

// DecodeFrame reads a header and its raw (still possibly compressed) body
// out of c, which must be scoped to at least one complete frame. It does
// not decompress; call DecodeBody for that, once the header's declared
// length has told the caller how much to read off the wire.
func DecodeFrame(c *primitive.Cursor) (*Frame, error) {
	h, err := DecodeHeader(c)
	if err != nil {
		return nil, err
	}
	body, err := c.Sub(int(h.BodyLength))
	if err != nil {
		return nil, fmt.Errorf("cannot read frame body (declared length %d): %w", h.BodyLength, err)
	}
	return &Frame{Header: h, Body: body.Remaining()}, nil
}

// DecodeBody decompresses f.Body if the header's Compressed flag is set,
// returning the plain message body ready for opcode dispatch.
func DecodeBody(f *Frame, compressor BodyCompressor) ([]byte, error) {
	if !f.Header.Flags.Contains(FlagCompressed) {
		return f.Body, nil
	}
	if compressor == nil {
		return nil, cqlerr.Unsupported("frame body is compressed but no compressor is configured")
	}
	var out bytes.Buffer
	if err := compressor.Decompress(bytes.NewReader(f.Body), &out); err != nil {
		return nil, fmt.Errorf("cannot decompress frame body: %w", err)
	}
	return out.Bytes(), nil
}
