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

// Package primitive implements the fixed-width and length-prefixed wire
// primitives of the CQL binary protocol, read and written through a Cursor
// over an immutable byte slice.
package primitive

import (
	"fmt"
	"unicode/utf8"

	"github.com/cassandra-native-driver/cql/cqlerr"
)

const (
	LengthOfByte  = 1
	LengthOfShort = 2
	LengthOfInt   = 4
	LengthOfLong  = 8
)

// Cursor reads primitives out of a borrowed byte slice. It is the sole
// mutable state during decoding: advancing it never copies the underlying
// array, so every ReadBytes/ReadBytesOpt/ReadShortBytes result is a
// zero-copy slice into buf. ReadString and ReadLongString return Go
// strings, which are copies.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for reading. buf is not copied; the caller must not
// mutate it while the Cursor is in use.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// Remaining returns the unread tail of the cursor's buffer, without
// advancing the cursor.
func (c *Cursor) Remaining() []byte {
	return c.buf[c.pos:]
}

// Sub carves out a child Cursor scoped to exactly n bytes starting at the
// current position, and advances this cursor past them. A malformed length
// inside the child cannot consume bytes belonging to the outer frame,
// because the child's buf ends exactly where the parent's slice ends.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	b, err := c.advance(n)
	if err != nil {
		return nil, err
	}
	return NewCursor(b), nil
}

func (c *Cursor) advance(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, cqlerr.ErrShortRead
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) ReadByte() (uint8, error) {
	b, err := c.advance(LengthOfByte)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadShort() (uint16, error) {
	b, err := c.advance(LengthOfShort)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (c *Cursor) ReadInt() (int32, error) {
	b, err := c.advance(LengthOfInt)
	if err != nil {
		return 0, err
	}
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

// ReadIntLength reads an [int] that must be interpreted as a non-negative
// length (as opposed to one that may carry the [bytes] "absent" sentinel).
func (c *Cursor) ReadIntLength() (uint32, error) {
	n, err := c.ReadInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, cqlerr.BadData("negative length where non-negative required")
	}
	return uint32(n), nil
}

func (c *Cursor) ReadLong() (int64, error) {
	b, err := c.advance(LengthOfLong)
	if err != nil {
		return 0, err
	}
	hi := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	lo := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	return int64(uint64(hi)<<32 | uint64(lo)), nil
}

// ReadString reads a [string]: a [short] length prefix followed by UTF-8
// bytes. The returned string is a copy; it does not alias the cursor's
// backing array.
func (c *Cursor) ReadString() (string, error) {
	length, err := c.ReadShort()
	if err != nil {
		return "", err
	}
	b, err := c.advance(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", cqlerr.BadData(fmt.Sprintf("string is not valid UTF-8 (%d bytes)", len(b)))
	}
	return string(b), nil
}

// ReadLongString reads a [long string]: an [int] length prefix followed by
// UTF-8 bytes.
func (c *Cursor) ReadLongString() (string, error) {
	length, err := c.ReadIntLength()
	if err != nil {
		return "", err
	}
	b, err := c.advance(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", cqlerr.BadData(fmt.Sprintf("long string is not valid UTF-8 (%d bytes)", len(b)))
	}
	return string(b), nil
}

// ReadBytes reads a [bytes] value whose length must not be negative: an
// [int] length prefix followed by that many raw bytes.
func (c *Cursor) ReadBytes() ([]byte, error) {
	length, err := c.ReadIntLength()
	if err != nil {
		return nil, err
	}
	return c.advance(int(length))
}

// ReadBytesOpt reads a [bytes] value that may be absent: a negative length
// prefix decodes to (nil, nil); any other length decodes the raw payload.
func (c *Cursor) ReadBytesOpt() ([]byte, error) {
	length, err := c.ReadInt()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, nil
	}
	return c.advance(int(length))
}

// ReadShortBytes reads a [short bytes] value: a [short] length prefix
// followed by that many raw bytes.
func (c *Cursor) ReadShortBytes() ([]byte, error) {
	length, err := c.ReadShort()
	if err != nil {
		return nil, err
	}
	return c.advance(int(length))
}
