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

// Package request encodes the client-to-server request bodies: QUERY,
// PREPARE and EXECUTE, together with the [value] and query-options
// sub-structures they share.
package request

import (
	"bytes"
	"fmt"

	"github.com/cassandra-native-driver/cql/cqlerr"
	"github.com/cassandra-native-driver/cql/primitive"
)

// ValueKind distinguishes the three [value] wire shapes.
type ValueKind int

const (
	ValueRegular ValueKind = iota
	ValueNull
	ValueNotSet
)

// valueNullLength and valueNotSetLength are the [int] length sentinels that
// open a [value]: -1 means NULL, -2 means NOT_SET (an unbound bind marker
// left out of the batch of values sent, asking the server to keep whatever
// default it already has).
const (
	valueNullLength   int32 = -1
	valueNotSetLength int32 = -2
)

// Value is one bound query parameter.
type Value struct {
	Kind     ValueKind
	Contents []byte
}

func NullValue() Value               { return Value{Kind: ValueNull} }
func NotSetValue() Value             { return Value{Kind: ValueNotSet} }
func RegularValue(b []byte) Value    { return Value{Kind: ValueRegular, Contents: b} }

// WriteValue writes one [value]. notSetAllowed must be true for the caller
// to use ValueNotSet; callers that haven't negotiated an EXECUTE that
// supports unset values get cqlerr.Unsupported instead of silently sending
// a NULL.
func WriteValue(v Value, notSetAllowed bool, dest *bytes.Buffer) error {
	switch v.Kind {
	case ValueNull:
		primitive.WriteInt(valueNullLength, dest)
		return nil
	case ValueNotSet:
		if !notSetAllowed {
			return cqlerr.Unsupported("NOT_SET values require a newer protocol negotiation")
		}
		primitive.WriteInt(valueNotSetLength, dest)
		return nil
	case ValueRegular:
		primitive.WriteBytes(v.Contents, dest)
		return nil
	default:
		return cqlerr.Unsupported(fmt.Sprintf("unknown value kind %d", v.Kind))
	}
}

func ReadValue(c *primitive.Cursor) (Value, error) {
	length, err := c.ReadInt()
	if err != nil {
		return Value{}, err
	}
	switch {
	case length == valueNullLength:
		return NullValue(), nil
	case length == valueNotSetLength:
		return NotSetValue(), nil
	case length < 0:
		return Value{}, cqlerr.BadData(fmt.Sprintf("invalid [value] length %d", length))
	default:
		b, err := c.Sub(int(length))
		if err != nil {
			return Value{}, err
		}
		return RegularValue(b.Remaining()), nil
	}
}

// Flag bits of the per-request options flag byte.
type Flag uint8

const (
	FlagValues            Flag = 0x01
	FlagSkipMetadata      Flag = 0x02
	FlagPageSize          Flag = 0x04
	FlagPagingState       Flag = 0x08
	FlagSerialConsistency Flag = 0x10
	FlagDefaultTimestamp  Flag = 0x20
	FlagValueNames        Flag = 0x40
)

func (f Flag) Contains(other Flag) bool { return f&other != 0 }

// ConsistencyLevel mirrors the CQL [short] consistency level enumeration.
type ConsistencyLevel uint16

const (
	ConsistencyAny         ConsistencyLevel = 0x0000
	ConsistencyOne         ConsistencyLevel = 0x0001
	ConsistencyTwo         ConsistencyLevel = 0x0002
	ConsistencyThree       ConsistencyLevel = 0x0003
	ConsistencyQuorum      ConsistencyLevel = 0x0004
	ConsistencyAll         ConsistencyLevel = 0x0005
	ConsistencyLocalQuorum ConsistencyLevel = 0x0006
	ConsistencyEachQuorum  ConsistencyLevel = 0x0007
	ConsistencySerial      ConsistencyLevel = 0x0008
	ConsistencyLocalSerial ConsistencyLevel = 0x0009
	ConsistencyLocalOne    ConsistencyLevel = 0x000A
)

// QueryOptions is the option block shared by QUERY and EXECUTE requests.
type QueryOptions struct {
	Consistency ConsistencyLevel

	// Exactly one of PositionalValues/NamedValues should be set; if both
	// are, positional values win and named values are ignored, mirroring
	// the wire format's inability to express both at once.
	PositionalValues []Value
	NamedValues      map[string]Value

	SkipMetadata      bool
	PageSize          int32
	PagingState       []byte
	SerialConsistency *ConsistencyLevel
	DefaultTimestamp  *int64

	// NotSetAllowed gates whether ValueNotSet may appear in
	// PositionalValues/NamedValues; see WriteValue.
	NotSetAllowed bool
}

func (o *QueryOptions) flags() Flag {
	var f Flag
	if o.PositionalValues != nil {
		f |= FlagValues
	} else if o.NamedValues != nil {
		f |= FlagValues | FlagValueNames
	}
	if o.SkipMetadata {
		f |= FlagSkipMetadata
	}
	if o.PageSize > 0 {
		f |= FlagPageSize
	}
	if o.PagingState != nil {
		f |= FlagPagingState
	}
	if o.SerialConsistency != nil {
		f |= FlagSerialConsistency
	}
	if o.DefaultTimestamp != nil {
		f |= FlagDefaultTimestamp
	}
	return f
}

func EncodeQueryOptions(o *QueryOptions, dest *bytes.Buffer) error {
	if o == nil {
		o = &QueryOptions{}
	}
	primitive.WriteShort(uint16(o.Consistency), dest)
	flags := o.flags()
	primitive.WriteByte(uint8(flags), dest)
	if flags.Contains(FlagValues) {
		if flags.Contains(FlagValueNames) {
			if err := writeNamedValues(o.NamedValues, o.NotSetAllowed, dest); err != nil {
				return err
			}
		} else {
			if err := writePositionalValues(o.PositionalValues, o.NotSetAllowed, dest); err != nil {
				return err
			}
		}
	}
	if flags.Contains(FlagPageSize) {
		primitive.WriteInt(o.PageSize, dest)
	}
	if flags.Contains(FlagPagingState) {
		primitive.WriteBytes(o.PagingState, dest)
	}
	if flags.Contains(FlagSerialConsistency) {
		primitive.WriteShort(uint16(*o.SerialConsistency), dest)
	}
	if flags.Contains(FlagDefaultTimestamp) {
		primitive.WriteLong(*o.DefaultTimestamp, dest)
	}
	return nil
}

func writePositionalValues(values []Value, notSetAllowed bool, dest *bytes.Buffer) error {
	primitive.WriteShort(uint16(len(values)), dest)
	for i, v := range values {
		if err := WriteValue(v, notSetAllowed, dest); err != nil {
			return fmt.Errorf("positional value %d: %w", i, err)
		}
	}
	return nil
}

func writeNamedValues(values map[string]Value, notSetAllowed bool, dest *bytes.Buffer) error {
	primitive.WriteShort(uint16(len(values)), dest)
	for name, v := range values {
		primitive.WriteString(name, dest)
		if err := WriteValue(v, notSetAllowed, dest); err != nil {
			return fmt.Errorf("named value %q: %w", name, err)
		}
	}
	return nil
}

func DecodeQueryOptions(c *primitive.Cursor) (*QueryOptions, error) {
	o := &QueryOptions{}
	consistency, err := c.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("cannot read consistency: %w", err)
	}
	o.Consistency = ConsistencyLevel(consistency)
	rawFlags, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("cannot read flags: %w", err)
	}
	flags := Flag(rawFlags)
	if flags.Contains(FlagValues) {
		if flags.Contains(FlagValueNames) {
			if o.NamedValues, err = readNamedValues(c); err != nil {
				return nil, err
			}
		} else {
			if o.PositionalValues, err = readPositionalValues(c); err != nil {
				return nil, err
			}
		}
	}
	o.SkipMetadata = flags.Contains(FlagSkipMetadata)
	if flags.Contains(FlagPageSize) {
		if o.PageSize, err = c.ReadInt(); err != nil {
			return nil, fmt.Errorf("cannot read page size: %w", err)
		}
	}
	if flags.Contains(FlagPagingState) {
		if o.PagingState, err = c.ReadBytes(); err != nil {
			return nil, fmt.Errorf("cannot read paging state: %w", err)
		}
	}
	if flags.Contains(FlagSerialConsistency) {
		sc, err := c.ReadShort()
		if err != nil {
			return nil, fmt.Errorf("cannot read serial consistency: %w", err)
		}
		level := ConsistencyLevel(sc)
		o.SerialConsistency = &level
	}
	if flags.Contains(FlagDefaultTimestamp) {
		ts, err := c.ReadLong()
		if err != nil {
			return nil, fmt.Errorf("cannot read default timestamp: %w", err)
		}
		o.DefaultTimestamp = &ts
	}
	return o, nil
}

func readPositionalValues(c *primitive.Cursor) ([]Value, error) {
	count, err := c.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("cannot read positional value count: %w", err)
	}
	values := make([]Value, count)
	for i := range values {
		if values[i], err = ReadValue(c); err != nil {
			return nil, fmt.Errorf("positional value %d: %w", i, err)
		}
	}
	return values, nil
}

func readNamedValues(c *primitive.Cursor) (map[string]Value, error) {
	count, err := c.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("cannot read named value count: %w", err)
	}
	values := make(map[string]Value, count)
	for i := 0; i < int(count); i++ {
		name, err := c.ReadString()
		if err != nil {
			return nil, fmt.Errorf("named value %d name: %w", i, err)
		}
		v, err := ReadValue(c)
		if err != nil {
			return nil, fmt.Errorf("named value %q: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

// Query is the QUERY request body.
type Query struct {
	QueryString string
	Options     *QueryOptions
}

func EncodeQuery(q *Query, dest *bytes.Buffer) error {
	primitive.WriteLongString(q.QueryString, dest)
	return EncodeQueryOptions(q.Options, dest)
}

func DecodeQuery(c *primitive.Cursor) (*Query, error) {
	queryString, err := c.ReadLongString()
	if err != nil {
		return nil, fmt.Errorf("cannot read QUERY query string: %w", err)
	}
	options, err := DecodeQueryOptions(c)
	if err != nil {
		return nil, fmt.Errorf("cannot read QUERY options: %w", err)
	}
	return &Query{QueryString: queryString, Options: options}, nil
}

// Prepare is the PREPARE request body.
type Prepare struct {
	QueryString string
}

func EncodePrepare(p *Prepare, dest *bytes.Buffer) error {
	if p.QueryString == "" {
		return cqlerr.BadData("cannot PREPARE an empty query string")
	}
	primitive.WriteLongString(p.QueryString, dest)
	return nil
}

func DecodePrepare(c *primitive.Cursor) (*Prepare, error) {
	queryString, err := c.ReadLongString()
	if err != nil {
		return nil, fmt.Errorf("cannot read PREPARE query string: %w", err)
	}
	return &Prepare{QueryString: queryString}, nil
}

// Execute is the EXECUTE request body: run the prepared statement
// identified by QueryID, bound to Options' values.
type Execute struct {
	QueryID []byte
	Options *QueryOptions
}

func EncodeExecute(e *Execute, dest *bytes.Buffer) error {
	if len(e.QueryID) == 0 {
		return cqlerr.BadData("EXECUTE missing query id")
	}
	primitive.WriteShortBytes(e.QueryID, dest)
	return EncodeQueryOptions(e.Options, dest)
}

func DecodeExecute(c *primitive.Cursor) (*Execute, error) {
	queryID, err := c.ReadShortBytes()
	if err != nil {
		return nil, fmt.Errorf("cannot read EXECUTE query id: %w", err)
	}
	if len(queryID) == 0 {
		return nil, cqlerr.BadData("EXECUTE missing query id")
	}
	options, err := DecodeQueryOptions(c)
	if err != nil {
		return nil, fmt.Errorf("cannot read EXECUTE options: %w", err)
	}
	return &Execute{QueryID: queryID, Options: options}, nil
}
