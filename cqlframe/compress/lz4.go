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

package compress

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/pierrec/lz4/v4"
)

// LZ4 satisfies cqlframe.BodyCompressor for the LZ4 algorithm.
//
// Cassandra expects LZ4-compressed bodies to start with a 4-byte big-endian
// integer holding the decompressed length; pierrec/lz4's block API doesn't
// include one, so it's prepended and stripped by hand here.
type LZ4 struct{}

func (LZ4) Algorithm() string { return "LZ4" }

func (LZ4) Compress(source io.Reader, dest io.Writer) error {
	uncompressed, err := readAll(source)
	if err != nil {
		return fmt.Errorf("cannot read uncompressed body: %w", err)
	}
	maxCompressedSize := lz4.CompressBlockBound(len(uncompressed))
	out := make([]byte, maxCompressedSize+4)
	binary.BigEndian.PutUint32(out, uint32(len(uncompressed)))
	written, err := lz4.CompressBlock(uncompressed, out[4:], nil)
	if err != nil {
		return fmt.Errorf("cannot compress body: %w", err)
	}
	if _, err := dest.Write(out[:written+4]); err != nil {
		return fmt.Errorf("cannot write compressed body: %w", err)
	}
	return nil
}

func (LZ4) Decompress(source io.Reader, dest io.Writer) error {
	var decompressedLength uint32
	if err := binary.Read(source, binary.BigEndian, &decompressedLength); err != nil {
		return fmt.Errorf("cannot read decompressed length: %w", err)
	}
	if decompressedLength == 0 {
		if _, err := io.CopyN(ioutil.Discard, source, 1); err != nil {
			return fmt.Errorf("cannot read empty body: %w", err)
		}
		return nil
	}
	compressed, err := readAll(source)
	if err != nil {
		return fmt.Errorf("cannot read compressed body: %w", err)
	}
	decompressed := make([]byte, decompressedLength)
	written, err := lz4.UncompressBlock(compressed, decompressed)
	if err != nil {
		return fmt.Errorf("cannot decompress body: %w", err)
	}
	if written != int(decompressedLength) {
		return fmt.Errorf("decompressed length mismatch, expected %d, got %d", decompressedLength, written)
	}
	if _, err := dest.Write(decompressed[:written]); err != nil {
		return fmt.Errorf("cannot write decompressed body: %w", err)
	}
	return nil
}
