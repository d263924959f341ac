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

package cqlframe_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-native-driver/cql/cqlframe"
	"github.com/cassandra-native-driver/cql/cqlframe/compress"
	"github.com/cassandra-native-driver/cql/primitive"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &cqlframe.Header{IsResponse: true, Flags: cqlframe.FlagTracing, StreamID: 7, OpCode: cqlframe.OpCodeResult}
	buf := &bytes.Buffer{}
	cqlframe.EncodeHeader(h, 42, buf)
	out, err := cqlframe.DecodeHeader(primitive.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, out.IsResponse)
	assert.Equal(t, cqlframe.FlagTracing, out.Flags)
	assert.Equal(t, int16(7), out.StreamID)
	assert.Equal(t, cqlframe.OpCodeResult, out.OpCode)
	assert.Equal(t, int32(42), out.BodyLength)
}

func TestFrameRoundTripUncompressed(t *testing.T) {
	h := &cqlframe.Header{OpCode: cqlframe.OpCodeQuery, StreamID: 1}
	body := []byte("SELECT * FROM t")
	buf := &bytes.Buffer{}
	require.NoError(t, cqlframe.EncodeFrame(h, body, nil, buf))
	f, err := cqlframe.DecodeFrame(primitive.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	out, err := cqlframe.DecodeBody(f, nil)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestFrameRoundTripSnappyCompressed(t *testing.T) {
	h := &cqlframe.Header{OpCode: cqlframe.OpCodeQuery, StreamID: 2, Flags: cqlframe.FlagCompressed}
	body := []byte("SELECT * FROM t WHERE k = ?")
	buf := &bytes.Buffer{}
	require.NoError(t, cqlframe.EncodeFrame(h, body, compress.Snappy{}, buf))
	f, err := cqlframe.DecodeFrame(primitive.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	out, err := cqlframe.DecodeBody(f, compress.Snappy{})
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestFrameRoundTripLZ4Compressed(t *testing.T) {
	h := &cqlframe.Header{OpCode: cqlframe.OpCodeResult, StreamID: 3, Flags: cqlframe.FlagCompressed}
	body := bytes.Repeat([]byte("row-data"), 50)
	buf := &bytes.Buffer{}
	require.NoError(t, cqlframe.EncodeFrame(h, body, compress.LZ4{}, buf))
	f, err := cqlframe.DecodeFrame(primitive.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	out, err := cqlframe.DecodeBody(f, compress.LZ4{})
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestEncodeFrameCompressedWithoutCompressorFails(t *testing.T) {
	h := &cqlframe.Header{OpCode: cqlframe.OpCodeQuery, Flags: cqlframe.FlagCompressed}
	err := cqlframe.EncodeFrame(h, []byte("x"), nil, &bytes.Buffer{})
	require.Error(t, err)
}

func TestDecodeFrameRejectsTruncatedBody(t *testing.T) {
	h := &cqlframe.Header{OpCode: cqlframe.OpCodeQuery}
	buf := &bytes.Buffer{}
	cqlframe.EncodeHeader(h, 100, buf) // claims 100 bytes of body, writes none
	_, err := cqlframe.DecodeFrame(primitive.NewCursor(buf.Bytes()))
	require.Error(t, err)
}
