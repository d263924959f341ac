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

// Package compress provides concrete cqlframe.BodyCompressor implementations.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// Snappy satisfies cqlframe.BodyCompressor for the SNAPPY algorithm.
type Snappy struct{}

func (Snappy) Algorithm() string { return "SNAPPY" }

func (Snappy) Compress(source io.Reader, dest io.Writer) error {
	uncompressed, err := readAll(source)
	if err != nil {
		return fmt.Errorf("cannot read uncompressed body: %w", err)
	}
	compressed := snappy.Encode(nil, uncompressed)
	if _, err := dest.Write(compressed); err != nil {
		return fmt.Errorf("cannot write compressed body: %w", err)
	}
	return nil
}

func (Snappy) Decompress(source io.Reader, dest io.Writer) error {
	compressed, err := readAll(source)
	if err != nil {
		return fmt.Errorf("cannot read compressed body: %w", err)
	}
	decompressed, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("cannot decompress body: %w", err)
	}
	if _, err := dest.Write(decompressed); err != nil {
		return fmt.Errorf("cannot write decompressed body: %w", err)
	}
	return nil
}

func readAll(source io.Reader) ([]byte, error) {
	if b, ok := source.(*bytes.Buffer); ok {
		return b.Bytes(), nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(source); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
