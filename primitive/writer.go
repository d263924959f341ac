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

package primitive

import "bytes"

// The Write* functions are the symmetric encode side of the Cursor reads
// in cursor.go. They write onto a caller-owned *bytes.Buffer rather than returning
// allocated slices, so a request can be built up field by field into one
// growing buffer.

func WriteByte(b uint8, dest *bytes.Buffer) {
	dest.WriteByte(b)
}

func WriteShort(s uint16, dest *bytes.Buffer) {
	dest.WriteByte(byte(s >> 8))
	dest.WriteByte(byte(s))
}

func WriteInt(i int32, dest *bytes.Buffer) {
	u := uint32(i)
	dest.WriteByte(byte(u >> 24))
	dest.WriteByte(byte(u >> 16))
	dest.WriteByte(byte(u >> 8))
	dest.WriteByte(byte(u))
}

func WriteLong(l int64, dest *bytes.Buffer) {
	u := uint64(l)
	dest.WriteByte(byte(u >> 56))
	dest.WriteByte(byte(u >> 48))
	dest.WriteByte(byte(u >> 40))
	dest.WriteByte(byte(u >> 32))
	dest.WriteByte(byte(u >> 24))
	dest.WriteByte(byte(u >> 16))
	dest.WriteByte(byte(u >> 8))
	dest.WriteByte(byte(u))
}

func WriteString(s string, dest *bytes.Buffer) {
	WriteShort(uint16(len(s)), dest)
	dest.WriteString(s)
}

func WriteLongString(s string, dest *bytes.Buffer) {
	WriteInt(int32(len(s)), dest)
	dest.WriteString(s)
}

// WriteBytes writes a [bytes] value. A nil slice is written as the NULL
// sentinel (length -1); a non-nil empty slice is written as length 0.
func WriteBytes(b []byte, dest *bytes.Buffer) {
	if b == nil {
		WriteInt(-1, dest)
		return
	}
	WriteInt(int32(len(b)), dest)
	dest.Write(b)
}

func WriteShortBytes(b []byte, dest *bytes.Buffer) {
	WriteShort(uint16(len(b)), dest)
	dest.Write(b)
}

func LengthOfString(s string) int     { return LengthOfShort + len(s) }
func LengthOfLongString(s string) int { return LengthOfInt + len(s) }
func LengthOfBytes(b []byte) int      { return LengthOfInt + len(b) }
func LengthOfShortBytes(b []byte) int { return LengthOfShort + len(b) }
