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

package compress_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassandra-native-driver/cql/cqlframe/compress"
)

func TestSnappyRoundTrip(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times")
	var compressed, decompressed bytes.Buffer
	require.NoError(t, compress.Snappy{}.Compress(bytes.NewReader(src), &compressed))
	require.NoError(t, compress.Snappy{}.Decompress(&compressed, &decompressed))
	assert.Equal(t, src, decompressed.Bytes())
}

func TestSnappyEmptyRoundTrip(t *testing.T) {
	var compressed, decompressed bytes.Buffer
	require.NoError(t, compress.Snappy{}.Compress(bytes.NewReader(nil), &compressed))
	require.NoError(t, compress.Snappy{}.Decompress(&compressed, &decompressed))
	assert.Empty(t, decompressed.Bytes())
}

func TestLZ4RoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("cassandra native protocol frame body "), 200)
	var compressed, decompressed bytes.Buffer
	require.NoError(t, compress.LZ4{}.Compress(bytes.NewReader(src), &compressed))
	require.NoError(t, compress.LZ4{}.Decompress(&compressed, &decompressed))
	assert.Equal(t, src, decompressed.Bytes())
}

func TestLZ4EmptyRoundTrip(t *testing.T) {
	var compressed, decompressed bytes.Buffer
	require.NoError(t, compress.LZ4{}.Compress(bytes.NewReader(nil), &compressed))
	require.NoError(t, compress.LZ4{}.Decompress(&compressed, &decompressed))
	assert.Empty(t, decompressed.Bytes())
}

func TestAlgorithmNames(t *testing.T) {
	assert.Equal(t, "SNAPPY", compress.Snappy{}.Algorithm())
	assert.Equal(t, "LZ4", compress.LZ4{}.Algorithm())
}
